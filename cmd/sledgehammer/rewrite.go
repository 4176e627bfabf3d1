// rewrite.go implements the 'sledgehammer rewrite' command.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/kolkov/sledgehammer/cmd/sledgehammer/gomod"
	"github.com/kolkov/sledgehammer/cmd/sledgehammer/instrument"
)

// rewriteConfig holds configuration for the rewrite command.
type rewriteConfig struct {
	// Source files, directories or patterns to rewrite
	sources []string

	// Output directory (from -o flag or sledgehammer.yaml); empty means stdout
	outputDir string

	// Working directory
	workDir string

	// Verbose output flag (-v)
	verbose bool

	// Project configuration from sledgehammer.yaml
	project *projectConfig
}

// rewriteCommand implements the 'sledgehammer rewrite' command.
//
// Without -o the rewritten sources are printed to stdout. With -o every
// source file is written into the output directory next to a go.mod
// derived from the source module, so the directory builds on its own.
//
// Example:
//
//	sledgehammer rewrite main.go
//	sledgehammer rewrite -o /tmp/traced ./cmd/app
func rewriteCommand(args []string) {
	config, err := parseRewriteArgs(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := config.applyProject(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := rewriteSources(config, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// parseRewriteArgs parses arguments shared by rewrite and watch.
func parseRewriteArgs(args []string) (*rewriteConfig, error) {
	config := &rewriteConfig{}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	config.workDir = cwd

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch {
		case arg == "-o":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("-o flag requires an argument")
			}
			i++
			config.outputDir = args[i]
		case strings.HasPrefix(arg, "-o="):
			config.outputDir = strings.TrimPrefix(arg, "-o=")
		case arg == "-v":
			config.verbose = true
		case strings.HasPrefix(arg, "-"):
			return nil, fmt.Errorf("unknown flag: %s", arg)
		default:
			config.sources = append(config.sources, arg)
		}
	}

	if len(config.sources) == 0 {
		config.sources = []string{"."}
	}

	return config, nil
}

// applyProject fills unset options from sledgehammer.yaml.
func (c *rewriteConfig) applyProject() error {
	project, err := loadProjectConfig(c.workDir)
	if err != nil {
		return err
	}
	c.project = project
	if c.outputDir == "" {
		c.outputDir = project.Output
	}
	if project.Verbose {
		c.verbose = true
	}
	if c.outputDir != "" && !filepath.IsAbs(c.outputDir) {
		c.outputDir = filepath.Join(c.workDir, c.outputDir)
	}
	return nil
}

// rewriteSources rewrites every collected file. Nothing is written to the
// output directory unless all files instrument cleanly.
func rewriteSources(config *rewriteConfig, stdout io.Writer) error {
	goFiles, err := collectGoFiles(config.sources, config.workDir, false, config.project)
	if err != nil {
		return fmt.Errorf("failed to collect source files: %w", err)
	}
	if len(goFiles) == 0 {
		return fmt.Errorf("no Go source files found")
	}

	results := make([]*instrument.InstrumentResult, len(goFiles))
	for i, srcPath := range goFiles {
		result, err := instrument.InstrumentFile(srcPath, nil)
		if err != nil {
			return fmt.Errorf("failed to instrument %s: %w", srcPath, err)
		}
		results[i] = result
	}

	if config.outputDir == "" {
		for i, result := range results {
			if len(results) > 1 {
				fmt.Fprintf(stdout, "// File: %s\n", goFiles[i])
			}
			fmt.Fprint(stdout, result.Code)
		}
		return nil
	}

	if err := checkFlatten(goFiles); err != nil {
		return err
	}
	if err := os.MkdirAll(config.outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	for i, result := range results {
		outPath, err := writeRewritten(goFiles[i], config.outputDir, result.Code)
		if err != nil {
			return err
		}
		if result.Changed {
			fmt.Printf("Instrumented: %s -> %s\n", goFiles[i], outPath)
		}
		if config.verbose {
			printStats(result.Stats)
		}
	}

	modPath, err := gomod.WriteModFile(config.outputDir, filepath.Dir(goFiles[0]))
	if err != nil {
		return err
	}
	if config.verbose {
		fmt.Printf("Wrote %s\n", modPath)
	}
	return nil
}

// checkFlatten rejects sources that would overwrite each other once
// written into a single output directory.
func checkFlatten(goFiles []string) error {
	seen := make(map[string]string)
	for _, f := range goFiles {
		base := filepath.Base(f)
		if prev, ok := seen[base]; ok {
			return fmt.Errorf("%s and %s both map to %s in the output directory", prev, f, base)
		}
		seen[base] = f
	}
	return nil
}

// writeRewritten stores code as outDir/<base name of srcPath>.
func writeRewritten(srcPath, outDir, code string) (string, error) {
	outPath := filepath.Join(outDir, filepath.Base(srcPath))
	if err := os.WriteFile(outPath, []byte(code), 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", outPath, err)
	}
	return outPath, nil
}
