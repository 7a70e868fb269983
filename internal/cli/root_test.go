package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/changelog-tools/chronicle/internal/errors"
)

func TestRootCmdMetadata(t *testing.T) {
	assert.Equal(t, "chronicle", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
	assert.NotEmpty(t, rootCmd.Example)
	assert.True(t, rootCmd.SilenceUsage)
}

func TestRootCmdPersistentFlags(t *testing.T) {
	tests := map[string]struct {
		flagName     string
		defaultValue string
	}{
		"repo defaults to cwd": {flagName: "repo", defaultValue: "."},
		"debug defaults off":   {flagName: "debug", defaultValue: "false"},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			flag := rootCmd.PersistentFlags().Lookup(tt.flagName)
			require.NotNil(t, flag)
			assert.Equal(t, tt.defaultValue, flag.DefValue)
		})
	}
}

func TestCommandRegistration(t *testing.T) {
	expected := map[string]bool{
		"generate [version]": false,
		"releases":           false,
		"version":            false,
	}

	for _, cmd := range rootCmd.Commands() {
		if _, ok := expected[cmd.Use]; ok {
			expected[cmd.Use] = true
		}
	}

	for use, found := range expected {
		assert.True(t, found, "command %q should be registered", use)
	}
}

func TestExitCodeFor(t *testing.T) {
	tests := map[string]struct {
		err      error
		expected int
	}{
		"nil":           {err: nil, expected: ExitSuccess},
		"plain error":   {err: assert.AnError, expected: ExitRuntime},
		"argument":      {err: errors.NewArgumentError("bad arg"), expected: ExitInvalidArguments},
		"configuration": {err: errors.NewConfigError("bad config"), expected: ExitInvalidArguments},
		"not found":     {err: errors.NewNotFoundError("missing"), expected: ExitNotFound},
		"invalid state": {err: errors.NewInvalidStateError("stale"), expected: ExitInvalidState},
		"transport":     {err: errors.NewTransportError("unreachable"), expected: ExitTransport},
		"explicit code": {err: NewExitError(ExitNotFound), expected: ExitNotFound},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.expected, exitCodeFor(tt.err))
		})
	}
}

func TestVersionCmdOutput(t *testing.T) {
	var buf bytes.Buffer
	versionCmd.SetOut(&buf)
	defer versionCmd.SetOut(nil)

	versionCmd.Run(versionCmd, nil)

	assert.Contains(t, buf.String(), "chronicle dev")
	assert.Contains(t, buf.String(), "commit:")
}
