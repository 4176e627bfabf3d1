// Package main implements the sledgehammer CLI tool.
//
// sledgehammer is printf debugging without the typing. Functions marked
// with a //sledgehammer:trace directive are rewritten so that every
// top-level statement prints its own source text to stderr before it runs:
//
//  1. Parsing Go source files using go/ast
//  2. Finding functions carrying the //sledgehammer:trace directive
//  3. Inserting a trace statement before every statement of their bodies
//  4. Building/running the rewritten code through a go build overlay
//
// Usage:
//
//	sledgehammer rewrite main.go        # Print the traced source
//	sledgehammer build main.go          # Build with tracing
//	sledgehammer run main.go            # Run with tracing
//	sledgehammer test ./...             # Test with tracing
//	sledgehammer watch -o out ./cmd/app # Keep a traced copy up to date
//
// Original sources are never modified.
package main

import (
	"fmt"
	"os"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "rewrite":
		rewriteCommand(os.Args[2:])
	case "build":
		buildCommand(os.Args[2:])
	case "run":
		runCommand(os.Args[2:])
	case "test":
		testCommand(os.Args[2:])
	case "watch":
		watchCommand(os.Args[2:])
	case "version", "--version":
		fmt.Printf("sledgehammer version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`sledgehammer - per-statement tracing for Go functions

USAGE:
    sledgehammer <command> [arguments]

COMMANDS:
    rewrite    Print or write traced sources
    build      Build Go program with tracing
    run        Run Go program with tracing
    test       Test Go packages with tracing
    watch      Re-trace a package directory whenever it changes
    version    Show version information
    help       Show this help message

MARKING FUNCTIONS:
    //sledgehammer:trace
    func work() {
        x := compute()
        for _, v := range items {
            use(v, x)
        }
    }

    prints, while running:
    [SLEDGEHAMMER work] x := compute()
    [SLEDGEHAMMER work] for _, v := range items {
    [SLEDGEHAMMER work] use(v, x)
    [SLEDGEHAMMER work] }

EXAMPLES:
    # Show what a file looks like after tracing
    sledgehammer rewrite main.go

    # Write a standalone traced copy of a package
    sledgehammer rewrite -o /tmp/traced ./cmd/app

    # Build or run with tracing
    sledgehammer build -o myapp .
    sledgehammer run main.go --flag=value

    # Test with tracing
    sledgehammer test -v ./...

CONFIGURATION:
    An optional sledgehammer.yaml in the working directory sets defaults:

        output: build/traced
        build_flags: ["-tags", "dev"]
        exclude: ["*_gen.go"]
        verbose: true

    Use 'sledgehammer-vet' to find misplaced or malformed markers.

`)
}
