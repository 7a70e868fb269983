// Package config provides configuration management for chronicle using
// koanf. Configuration is loaded with priority: environment variables >
// project config (.chronicle/config.yml) > defaults. Each repository in a
// project graph carries its own config file; a missing file yields the
// defaults with an empty subproject set.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// ConfigDir is the per-repository directory holding the chronicle config.
const ConfigDir = ".chronicle"

// ConfigFile is the config file name inside ConfigDir.
const ConfigFile = "config.yml"

// ConfigFileJSON is the JSON alternative, consulted when ConfigFile is
// absent.
const ConfigFileJSON = "config.json"

// SubProject declares a dependency of a project that is tracked with its
// own changelog and pulled into the parent changelog.
type SubProject struct {
	// Name is the project name used for per-project notes addressing.
	Name string `koanf:"name"`
	// Dependency is the key under which the parent's manifest pins this
	// subproject's version. Defaults to Name.
	Dependency string `koanf:"dependency"`
	Owner      string `koanf:"owner"`
	Repo       string `koanf:"repo"`
	// Path is the local clone of the subproject repository, relative to
	// the parent repository root.
	Path string `koanf:"path"`
	// IncludeByDefault controls whether this subproject's changes appear
	// in the parent changelog absent an explicit per-project note.
	// Unset means true.
	IncludeByDefault *bool `koanf:"include_by_default"`
	// MirrorVersion declares the subproject's version to always equal
	// the parent's, bypassing dependency-version lookup.
	MirrorVersion bool `koanf:"mirror_version"`
}

// Included returns the effective include-by-default policy.
func (s SubProject) Included() bool {
	return s.IncludeByDefault == nil || *s.IncludeByDefault
}

// DependencyName returns the manifest key for this subproject.
func (s SubProject) DependencyName() string {
	if s.Dependency != "" {
		return s.Dependency
	}
	return s.Name
}

// Config is the per-repository chronicle configuration.
type Config struct {
	Name          string       `koanf:"name"`
	Owner         string       `koanf:"owner"`
	Repo          string       `koanf:"repo"`
	Changelog     string       `koanf:"changelog"`
	Manifest      string       `koanf:"manifest"`
	DevelopBranch string       `koanf:"develop_branch"`
	Token         string       `koanf:"token"`
	APIURL        string       `koanf:"api_url"`
	Debug         bool         `koanf:"debug"`
	SubProjects   []SubProject `koanf:"subprojects"`
}

// GetDefaults returns the default configuration values.
func GetDefaults() map[string]any {
	return map[string]any{
		"changelog":      "CHANGELOG.md",
		"manifest":       "project.yml",
		"develop_branch": "develop",
		"api_url":        "https://api.github.com",
	}
}

// Load loads the configuration for the repository rooted at repoPath.
// Priority: environment variables (CHRONICLE_*) > .chronicle/config.yml
// (or config.json) > defaults. A missing config file is not an error.
func Load(repoPath string) (*Config, error) {
	k := koanf.New(".")

	for key, value := range GetDefaults() {
		k.Set(key, value)
	}

	yamlPath := filepath.Join(repoPath, ConfigDir, ConfigFile)
	jsonPath := filepath.Join(repoPath, ConfigDir, ConfigFileJSON)
	switch {
	case fileExists(yamlPath):
		if err := k.Load(file.Provider(yamlPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config %s: %w", yamlPath, err)
		}
	case fileExists(jsonPath):
		if err := k.Load(file.Provider(jsonPath), json.Parser()); err != nil {
			return nil, fmt.Errorf("loading config %s: %w", jsonPath, err)
		}
	}

	if err := k.Load(env.Provider("CHRONICLE_", ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("loading environment config: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// GITHUB_TOKEN is honored when no chronicle-specific token is set.
	if cfg.Token == "" {
		cfg.Token = os.Getenv("GITHUB_TOKEN")
	}

	return &cfg, nil
}

// LoadSubProjects loads only the subproject declarations of the
// repository at repoPath. An absent or unreadable config file yields an
// empty subproject set, not an error.
func LoadSubProjects(repoPath string) []SubProject {
	cfg, err := Load(repoPath)
	if err != nil {
		return nil
	}
	return cfg.SubProjects
}

// envTransform converts environment variable names to config keys.
// Example: CHRONICLE_DEVELOP_BRANCH -> develop_branch
func envTransform(s string) string {
	return strings.ToLower(strings.TrimPrefix(s, "CHRONICLE_"))
}

// fileExists returns true if the file exists and is readable.
func fileExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}
