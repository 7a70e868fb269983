package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategoryString(t *testing.T) {
	tests := map[string]struct {
		category ErrorCategory
		expected string
	}{
		"argument":      {Argument, "Argument Error"},
		"configuration": {Configuration, "Configuration Error"},
		"not found":     {NotFound, "Not Found"},
		"invalid state": {InvalidState, "Invalid State"},
		"transport":     {Transport, "Transport Error"},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.category.String())
		})
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := Wrap(cause, Transport)

	require.NotNil(t, err)
	assert.Equal(t, "connection refused", err.Error())
	assert.True(t, stderrors.Is(err, cause))
	assert.True(t, IsCategory(err, Transport))
}

func TestWrapNilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, Transport))
	assert.Nil(t, WrapWithMessage(nil, Transport, "context"))
}

func TestIsCategoryThroughWrapping(t *testing.T) {
	inner := NewNotFoundError("release 1.2.0 missing")
	outer := fmt.Errorf("resolving range: %w", inner)

	assert.True(t, IsCategory(outer, NotFound))
	assert.False(t, IsCategory(outer, Transport))
	assert.False(t, IsCategory(stderrors.New("plain"), NotFound))
}

func TestAsCLIError(t *testing.T) {
	inner := NewInvalidStateError("unplaceable section")
	outer := fmt.Errorf("reconciling: %w", inner)

	cliErr := AsCLIError(outer)
	require.NotNil(t, cliErr)
	assert.Equal(t, InvalidState, cliErr.Category)

	assert.Nil(t, AsCLIError(stderrors.New("plain")))
}

func TestFormatErrorPlain(t *testing.T) {
	err := &CLIError{
		Category:    Argument,
		Message:     "not a semantic version",
		Usage:       "chronicle generate [version]",
		Remediation: []string{"pass a version like 1.2.0"},
	}

	out := FormatErrorPlain(err)
	assert.Contains(t, out, "Error [Argument Error]: not a semantic version")
	assert.Contains(t, out, "Usage: chronicle generate [version]")
	assert.Contains(t, out, "To fix this:")
	assert.Contains(t, out, "  • pass a version like 1.2.0")
}

func TestFormatErrorNil(t *testing.T) {
	assert.Empty(t, FormatError(nil))
	assert.Empty(t, FormatErrorPlain(nil))
}
