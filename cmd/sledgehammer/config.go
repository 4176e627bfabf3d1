// config.go loads the optional project configuration file.
package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// configFileName is looked up in the working directory of every command.
const configFileName = "sledgehammer.yaml"

// projectConfig holds tool defaults read from sledgehammer.yaml.
//
// It configures the preprocessing tool only; the format and destination of
// trace lines are fixed.
//
// Example:
//
//	output: build/traced
//	build_flags: ["-tags", "dev"]
//	exclude: ["*_gen.go", "zz_*.go"]
//	verbose: true
type projectConfig struct {
	// Output is the default -o directory for rewrite and watch.
	Output string `yaml:"output"`

	// BuildFlags are passed to go build/test before command-line flags.
	BuildFlags []string `yaml:"build_flags"`

	// Exclude lists filepath.Match patterns; matching source files are
	// never instrumented. Patterns match the base name, or the path
	// relative to the working directory when they contain a separator.
	Exclude []string `yaml:"exclude"`

	// Verbose enables per-file statistics, as -v does.
	Verbose bool `yaml:"verbose"`
}

// loadProjectConfig reads sledgehammer.yaml from workDir.
//
// A missing or empty file yields the zero configuration. Unknown keys are
// an error, so typos do not go unnoticed.
func loadProjectConfig(workDir string) (*projectConfig, error) {
	path := filepath.Join(workDir, configFileName)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &projectConfig{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	cfg := &projectConfig{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	for _, pattern := range cfg.Exclude {
		if _, err := filepath.Match(pattern, ""); err != nil {
			return nil, fmt.Errorf("%s: bad exclude pattern %q: %w", path, pattern, err)
		}
	}

	return cfg, nil
}

// excluded reports whether path (absolute) matches an exclude pattern.
func (c *projectConfig) excluded(path, workDir string) bool {
	if c == nil {
		return false
	}
	rel, err := filepath.Rel(workDir, path)
	if err != nil {
		rel = path
	}
	for _, pattern := range c.Exclude {
		name := filepath.Base(path)
		if containsSeparator(pattern) {
			name = filepath.ToSlash(rel)
			pattern = filepath.ToSlash(pattern)
		}
		if ok, _ := filepath.Match(pattern, name); ok {
			return true
		}
	}
	return false
}

func containsSeparator(pattern string) bool {
	for _, r := range pattern {
		if r == '/' || r == filepath.Separator {
			return true
		}
	}
	return false
}
