// Package config loads and validates the optional .triage YAML file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the config file looked up in the versions root.
const FileName = ".triage"

// Default values for triage configuration.
const (
	DefaultTimeout    = 2 * time.Second
	DefaultGitTimeout = time.Minute
	DefaultMaxOutput  = 8 << 20 // 8 MB
	DefaultExecutable = "cppcheck"
	DefaultGit        = "git"
)

// DefaultExclude are directory names skipped when entries are commit
// hashes. Bisect scripts leave the repository checkout next to the builds.
var DefaultExclude = []string{"cppcheck"}

// DefaultNoise are line prefixes dropped before outputs are compared.
var DefaultNoise = []string{"[*]: (information) Unmatched suppression:"}

// Config holds the parsed .triage configuration.
// All fields are optional; zero values represent defaults.
type Config struct {
	Version       int               `yaml:"version"`
	RawTimeout    string            `yaml:"timeout"`     // e.g. "2s"
	RawGitTimeout string            `yaml:"git_timeout"` // e.g. "1m"
	RawMaxOutput  int               `yaml:"max_output"`  // bytes per stream
	Executable    string            `yaml:"executable"`  // binary inside each version folder
	Git           string            `yaml:"git"`         // git binary
	Exclude       []string          `yaml:"exclude"`
	Noise         []string          `yaml:"noise"`
	Thresholds    map[string]string `yaml:"thresholds"` // feature -> minimum version
}

// Timeout returns the configured per-version timeout or the default.
func (c *Config) Timeout() time.Duration {
	return parseDuration(c.RawTimeout, DefaultTimeout)
}

// GitTimeout returns the configured timeout for git queries or the default.
func (c *Config) GitTimeout() time.Duration {
	return parseDuration(c.RawGitTimeout, DefaultGitTimeout)
}

func parseDuration(raw string, def time.Duration) time.Duration {
	if raw != "" {
		d, err := time.ParseDuration(raw)
		if err == nil && d > 0 {
			return d
		}
	}
	return def
}

// MaxOutputBytes returns the configured max output size or the default.
func (c *Config) MaxOutputBytes() int {
	if c.RawMaxOutput > 0 {
		return c.RawMaxOutput
	}
	return DefaultMaxOutput
}

// ExecutableName returns the analyser binary name inside each version folder.
func (c *Config) ExecutableName() string {
	if c.Executable != "" {
		return c.Executable
	}
	return DefaultExecutable
}

// GitBinary returns the git binary used to order commit hashes.
func (c *Config) GitBinary() string {
	if c.Git != "" {
		return c.Git
	}
	return DefaultGit
}

// ExcludeDirs returns the directories skipped in commit-hash mode.
func (c *Config) ExcludeDirs() []string {
	if c.Exclude != nil {
		return c.Exclude
	}
	return DefaultExclude
}

// NoisePrefixes returns the line prefixes dropped before comparing.
func (c *Config) NoisePrefixes() []string {
	if c.Noise != nil {
		return c.Noise
	}
	return DefaultNoise
}

// Load reads the .triage file from dir. If it does not exist, a default
// Config is returned.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("reading %s: %w", FileName, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", FileName, err)
	}
	return cfg, nil
}
