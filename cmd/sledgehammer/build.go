// build.go implements the 'sledgehammer build' command.
package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// buildCommand implements the 'sledgehammer build' command.
//
// This command traces marked functions and builds the program with the
// standard go command. It acts as a drop-in replacement for 'go build',
// supporting all standard flags.
//
// Flow:
//  1. Parse arguments (source files + go build flags)
//  2. Create temporary workspace
//  3. Instrument source files containing //sledgehammer:trace markers
//  4. Write a go build overlay mapping originals to instrumented copies
//  5. Call 'go build -overlay' in the original directory
//  6. Cleanup temporary files
//
// Example:
//
//	sledgehammer build main.go
//	sledgehammer build -o myapp main.go helper.go
//	sledgehammer build -ldflags="-s -w" ./...
func buildCommand(args []string) {
	config, err := parseBuildArgs(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := config.applyProject(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := buildInstrumented(config); err != nil {
		fmt.Fprintf(os.Stderr, "Build failed: %v\n", err)
		os.Exit(1)
	}

	if config.outputFile != "" {
		fmt.Printf("Built successfully: %s\n", config.outputFile)
	}
}

// buildConfig holds configuration for the build command.
type buildConfig struct {
	// Source files to instrument and build
	sourceFiles []string

	// Output binary name (from -o flag)
	outputFile string

	// Additional go build flags
	buildFlags []string

	// Working directory for build
	workDir string

	// Verbose output flag (-v)
	verbose bool

	// Project configuration from sledgehammer.yaml
	project *projectConfig
}

// parseBuildArgs parses command-line arguments for 'sledgehammer build'.
//
// It separates:
//   - Source files (.go files, directories or ./... patterns)
//   - Output file (-o flag)
//   - Go build flags (everything else)
//
// Returns buildConfig with parsed arguments.
func parseBuildArgs(args []string) (*buildConfig, error) {
	config := &buildConfig{
		sourceFiles: []string{},
		buildFlags:  []string{},
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	config.workDir = cwd

	expectingValue := false
	for i := 0; i < len(args); i++ {
		arg := args[i]

		// If previous flag expects a value, this is it (even if it starts with -)
		// Example: -ldflags "-s -w"
		if expectingValue {
			config.buildFlags = append(config.buildFlags, arg)
			expectingValue = false
			continue
		}

		if arg == "-o" {
			if i+1 >= len(args) {
				return nil, fmt.Errorf("-o flag requires an argument")
			}
			i++
			config.outputFile = args[i]
			continue
		}

		if strings.HasPrefix(arg, "-o=") {
			config.outputFile = strings.TrimPrefix(arg, "-o=")
			continue
		}

		if arg == "-v" {
			config.verbose = true
			continue
		}

		// -overlay is ours; two overlays cannot be combined
		if arg == "-overlay" || strings.HasPrefix(arg, "-overlay=") {
			return nil, fmt.Errorf("-overlay cannot be used with sledgehammer")
		}

		if strings.HasPrefix(arg, "-") {
			config.buildFlags = append(config.buildFlags, arg)
			expectingValue = needsValue(arg)
			continue
		}

		config.sourceFiles = append(config.sourceFiles, arg)
	}

	// Default: build current directory if no sources specified
	if len(config.sourceFiles) == 0 {
		config.sourceFiles = []string{"."}
	}

	return config, nil
}

// applyProject merges sledgehammer.yaml into the configuration. Command-line
// flags come after the file's build_flags so they win.
func (c *buildConfig) applyProject() error {
	project, err := loadProjectConfig(c.workDir)
	if err != nil {
		return err
	}
	c.project = project
	if project.Verbose {
		c.verbose = true
	}
	if len(project.BuildFlags) > 0 {
		flags := append([]string{}, project.BuildFlags...)
		c.buildFlags = append(flags, c.buildFlags...)
	}
	return nil
}

// needsValue returns true if the flag expects a following value.
func needsValue(flag string) bool {
	valueFlags := []string{
		"-ldflags", "-gcflags", "-asmflags", "-gccgoflags",
		"-tags", "-installsuffix", "-buildmode", "-mod",
		"-modfile", "-pkgdir", "-toolexec", "-C", "-p",
	}

	for _, vf := range valueFlags {
		// Already has = format (e.g., -ldflags=-s)
		if strings.HasPrefix(flag, vf+"=") {
			return false
		}
		if flag == vf {
			return true
		}
	}

	return false
}

// buildInstrumented instruments config's sources and runs go build.
func buildInstrumented(config *buildConfig) error {
	ws, err := createWorkspace()
	if err != nil {
		return fmt.Errorf("creating workspace: %w", err)
	}
	defer ws.cleanup()

	if err := instrumentSources(config, ws); err != nil {
		return err
	}

	return ws.build(config)
}

// build runs 'go build -overlay' for the original packages.
func (w *workspace) build(config *buildConfig) error {
	args := []string{"build", "-overlay", w.overlayPath()}

	if config.outputFile != "" {
		outputPath := config.outputFile
		if !filepath.IsAbs(outputPath) {
			outputPath = filepath.Join(config.workDir, outputPath)
		}
		args = append(args, "-o", outputPath)
	}

	args = append(args, config.buildFlags...)
	args = append(args, config.sourceFiles...)

	cmd := exec.Command("go", args...)
	cmd.Dir = config.workDir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	return cmd.Run()
}

// instrumentSources instruments all source files and records them in the
// workspace overlay.
func instrumentSources(config *buildConfig, ws *workspace) error {
	goFiles, err := collectGoFiles(config.sourceFiles, config.workDir, false, config.project)
	if err != nil {
		return fmt.Errorf("failed to collect source files: %w", err)
	}

	if len(goFiles) == 0 {
		return fmt.Errorf("no Go source files found")
	}

	_, err = instrumentIntoOverlay(goFiles, ws, instrumentOptions{verbose: config.verbose})
	if err != nil {
		return fmt.Errorf("instrumenting sources: %w", err)
	}
	return nil
}
