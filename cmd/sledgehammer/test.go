// test.go implements the 'sledgehammer test' command.
package main

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// testConfig holds configuration for the test command.
type testConfig struct {
	// Package patterns to test (e.g., "./...", "./internal/...")
	packages []string

	// Test flags to pass to go test (-v, -run, -bench, etc.)
	testFlags []string

	// Working directory
	workDir string

	// Verbose output flag (-v)
	verbose bool

	// Project configuration from sledgehammer.yaml
	project *projectConfig
}

// testCommand implements the 'sledgehammer test' command.
//
// This command instruments Go source files (including test files) and runs
// 'go test' over the original packages, with instrumented files substituted
// through an overlay.
//
// Flow:
//  1. Parse arguments (test flags + package patterns)
//  2. Create temporary workspace
//  3. Instrument source files (including _test.go)
//  4. Call 'go test -overlay' with instrumented code
//  5. Forward test output and exit code
//  6. Cleanup temporary files
//
// Example:
//
//	sledgehammer test ./...
//	sledgehammer test -v ./internal/...
//	sledgehammer test -run=TestMyFunction ./pkg/mypackage
func testCommand(args []string) {
	config, err := parseTestArgs(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	project, err := loadProjectConfig(config.workDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	config.project = project
	if project.Verbose {
		config.verbose = true
	}
	if len(project.BuildFlags) > 0 {
		config.testFlags = append(append([]string{}, project.BuildFlags...), config.testFlags...)
	}

	os.Exit(testInstrumented(config))
}

// testInstrumented instruments the packages and returns go test's exit code.
func testInstrumented(config *testConfig) int {
	ws, err := createWorkspace()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating workspace: %v\n", err)
		return 1
	}
	defer ws.cleanup()

	if err := instrumentTestSources(config, ws); err != nil {
		fmt.Fprintf(os.Stderr, "Error instrumenting sources: %v\n", err)
		return 1
	}

	return runTests(ws, config)
}

// parseTestArgs parses command-line arguments for 'sledgehammer test'.
//
// The 'go test' command format is:
//
//	go test [build/test flags] [packages] [test binary flags]
//
// We support:
//
//	sledgehammer test ./...
//	sledgehammer test -v ./internal/...
//	sledgehammer test -run=TestFoo -v ./pkg/...
//	sledgehammer test -cover -coverprofile=c.out ./...
//
// Returns testConfig with parsed arguments.
func parseTestArgs(args []string) (*testConfig, error) {
	config := &testConfig{
		packages:  []string{},
		testFlags: []string{},
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	config.workDir = cwd

	for i := 0; i < len(args); i++ {
		arg := args[i]

		// Handle -v flag specially (we use it too)
		if arg == "-v" {
			config.verbose = true
			config.testFlags = append(config.testFlags, arg)
			continue
		}

		if arg == "-overlay" || strings.HasPrefix(arg, "-overlay=") {
			return nil, fmt.Errorf("-overlay cannot be used with sledgehammer")
		}

		if strings.HasPrefix(arg, "-") {
			config.testFlags = append(config.testFlags, arg)

			// Check if this flag expects a value (next arg will be consumed)
			if testFlagNeedsValue(arg) && i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				i++
				config.testFlags = append(config.testFlags, args[i])
			}
			continue
		}

		config.packages = append(config.packages, arg)
	}

	// Default: test current directory if no packages specified
	if len(config.packages) == 0 {
		config.packages = []string{"."}
	}

	return config, nil
}

// testFlagNeedsValue returns true if the test flag expects a following value.
func testFlagNeedsValue(flag string) bool {
	// Already has = format (e.g., -run=TestFoo)
	if strings.Contains(flag, "=") {
		return false
	}

	valueFlags := []string{
		"-run", "-bench", "-benchtime", "-blockprofile", "-blockprofilerate",
		"-coverprofile", "-covermode", "-count", "-cpu", "-cpuprofile",
		"-memprofile", "-memprofilerate", "-mutexprofile", "-mutexprofilefraction",
		"-outputdir", "-parallel", "-timeout", "-trace", "-skip",
		// Build flags that may appear
		"-ldflags", "-gcflags", "-tags", "-mod", "-modfile",
	}

	for _, vf := range valueFlags {
		if flag == vf {
			return true
		}
	}

	return false
}

// instrumentTestSources instruments all source files including test files.
func instrumentTestSources(config *testConfig, ws *workspace) error {
	dirs, err := resolvePackagePatterns(config.packages, config.workDir)
	if err != nil {
		return fmt.Errorf("failed to resolve packages: %w", err)
	}

	if len(dirs) == 0 {
		return fmt.Errorf("no packages found matching patterns: %v", config.packages)
	}

	goFiles, err := collectGoFiles(dirs, config.workDir, true, config.project)
	if err != nil {
		return fmt.Errorf("failed to collect source files: %w", err)
	}

	if len(goFiles) == 0 {
		return fmt.Errorf("no Go source files found")
	}

	// go test output is noisy enough; report files only in verbose mode
	opts := instrumentOptions{verbose: config.verbose, quiet: !config.verbose}
	if _, err := instrumentIntoOverlay(goFiles, ws, opts); err != nil {
		return err
	}
	return nil
}

// runTests executes 'go test -overlay' over the original packages.
func runTests(ws *workspace, config *testConfig) int {
	args := []string{"test", "-overlay", ws.overlayPath()}
	args = append(args, config.testFlags...)
	args = append(args, config.packages...)

	cmd := exec.Command("go", args...)
	cmd.Dir = config.workDir
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode()
		}
		fmt.Fprintf(os.Stderr, "Error executing tests: %v\n", err)
		return 1
	}

	return 0
}
