// Package instrument - Custom error types for instrumentation.
//
// This file defines error handling for the rewrite engine. Errors include
// file position (file:line:column), the failure kind, and an optional
// suggestion.
//
// Example output:
//
//	main.go:12:1: var declaration cannot be traced: only function declarations can
//
//	Suggestion: Move the //sledgehammer:trace marker to a func declaration
package instrument

import (
	"errors"
	"fmt"
	"go/token"
)

var (
	// ErrMalformedInput reports that a marked item is not an instrumentable
	// function: a const/var/type declaration, a body-less function, or a
	// marker carrying options.
	ErrMalformedInput = errors.New("malformed input")

	// ErrUnrenderableStatement reports that a statement could not be
	// rendered back to source text for a trace message.
	ErrUnrenderableStatement = errors.New("unrenderable statement")
)

// InstrumentationError represents an error during instrumentation with context.
//
// Fields:
//   - File: Source file path where error occurred
//   - Line: Line number (1-indexed)
//   - Column: Column number (1-indexed)
//   - Message: Human-readable error description
//   - Suggestion: Optional hint for fixing the error
//   - Kind: ErrMalformedInput or ErrUnrenderableStatement
//
// errors.Is(err, ErrMalformedInput) matches an InstrumentationError of that kind.
//
// Thread Safety: Immutable after creation, safe for concurrent use.
type InstrumentationError struct {
	File       string // Source file path
	Line       int    // Line number (1-indexed)
	Column     int    // Column number (1-indexed)
	Message    string // Error message
	Suggestion string // Optional suggestion for fixing (empty if none)
	Kind       error  // Sentinel describing the failure class
}

// Error implements the error interface.
//
// Format: file:line:column: message
//
// If Suggestion is non-empty, it's appended on a new line with "Suggestion: " prefix.
// Errors without a known position render as just the message.
func (e *InstrumentationError) Error() string {
	result := e.Message
	if e.File != "" || e.Line > 0 {
		result = fmt.Sprintf("%s:%d:%d: %s", e.File, e.Line, e.Column, e.Message)
	}
	if e.Suggestion != "" {
		result += fmt.Sprintf("\n\nSuggestion: %s", e.Suggestion)
	}
	return result
}

// Unwrap exposes Kind so callers can use errors.Is against the sentinels.
func (e *InstrumentationError) Unwrap() error {
	return e.Kind
}

// NewInstrumentationError creates an error with file position from an AST node.
//
// A nil fset or token.NoPos yields an error without position.
//
// Example:
//
//	if _, ok := decl.(*ast.FuncDecl); !ok {
//	    return NewInstrumentationError(fset, decl.Pos(), ErrMalformedInput, "not a function")
//	}
func NewInstrumentationError(fset *token.FileSet, pos token.Pos, kind error, msg string) *InstrumentationError {
	err := &InstrumentationError{
		Message: msg,
		Kind:    kind,
	}
	if fset != nil && pos.IsValid() {
		position := fset.Position(pos)
		err.File = position.Filename
		err.Line = position.Line
		err.Column = position.Column
	}
	return err
}

// NewInstrumentationErrorWithSuggestion creates an error with suggestion.
//
// Use this when you can provide actionable guidance to the user.
func NewInstrumentationErrorWithSuggestion(fset *token.FileSet, pos token.Pos, kind error, msg, suggestion string) *InstrumentationError {
	err := NewInstrumentationError(fset, pos, kind, msg)
	err.Suggestion = suggestion
	return err
}
