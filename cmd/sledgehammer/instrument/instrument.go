// Package instrument implements AST-level rewriting of marked functions so
// that they trace every statement they execute.
//
// This package provides the core functionality for the sledgehammer tool.
// It parses Go source files, finds function declarations carrying the
// //sledgehammer:trace directive, and rewrites their bodies so that a
// diagnostic line is printed to stderr before each statement, and after
// each range loop.
//
// Algorithm:
//  1. Parse Go source file using go/parser
//  2. Find declarations documented with the marker directive
//  3. Rewrite each marked function body (Rewriter.RewriteDecl)
//  4. Inject the fmt and os imports used by trace statements
//  5. Generate instrumented code using go/printer
//
// Example Transformation:
//
//	// INPUT (original code):
//	//sledgehammer:trace
//	func f() {
//		println(1)
//		for i := range 3 {
//			println(i)
//		}
//	}
//
//	// OUTPUT (instrumented code, aliases shortened):
//	//sledgehammer:trace
//	func f() {
//		fmt.Fprintln(os.Stderr, "[SLEDGEHAMMER f] println(1)")
//		println(1)
//		fmt.Fprintln(os.Stderr, "[SLEDGEHAMMER f] for i := range 3 {")
//		for i := range 3 {
//			fmt.Fprintln(os.Stderr, "[SLEDGEHAMMER f] println(i)")
//			println(i)
//		}
//		fmt.Fprintln(os.Stderr, "[SLEDGEHAMMER f] }")
//	}
//
// The closing trace is emitted once, when the loop finishes, not per
// iteration. Only range loops are entered; if, switch, select, other for
// forms and function literals are traced as single statements.
//
// Thread Safety: This package is NOT thread-safe. Callers must ensure
// single-threaded access or use external synchronization.
package instrument

import (
	"bytes"
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io"
	"os"
)

// InstrumentResult holds the result of instrumentation.
//
//nolint:revive // InstrumentResult is clear and descriptive despite stuttering
type InstrumentResult struct {
	Code    string          // Instrumented source code
	Stats   InstrumentStats // Instrumentation statistics
	Changed bool            // Whether any function was rewritten
}

// InstrumentFile instruments a single Go source file.
//
// Parameters:
//   - filename: Path to the Go source file (used for error messages)
//   - src: Source code to instrument. Can be:
//   - nil: Read from filename
//   - []byte: Use provided bytes
//   - string: Use provided string
//   - io.Reader: Read from reader
//
// Returns:
//   - *InstrumentResult: Result containing code and statistics
//   - error: Parsing or instrumentation error, or nil on success
//
// A file without markers is returned re-printed and with Changed == false.
// Any error aborts the whole file: no partial output is produced.
//
// Example:
//
//	result, err := InstrumentFile("main.go", nil)
//	if err != nil {
//	    log.Fatalf("Instrumentation failed: %v", err)
//	}
//	fmt.Printf("Inserted %d trace statements\n", result.Stats.Total())
//
//nolint:revive // InstrumentFile is the standard API naming for this operation
func InstrumentFile(filename string, src interface{}) (*InstrumentResult, error) {
	content, err := readSource(filename, src)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", filename, err)
	}

	// We use parser.ParseComments to see directives and keep comments in the output.
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, filename, content, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("failed to parse file %s: %w", filename, err)
	}

	stats, err := InstrumentAST(fset, file)
	if err != nil {
		return nil, err
	}

	// The rewritten AST holds trace statements without positions, which the
	// printer cannot interleave with comments. The traces are spliced into
	// the original text instead and the result is parsed again.
	if stats.TracesInserted > 0 {
		edit := newSourceEdit(fset, content)
		for _, decl := range file.Decls {
			fn, ok := decl.(*ast.FuncDecl)
			if !ok {
				continue
			}
			if _, state := FindMarker(fn.Doc); state != ValidMarker {
				continue
			}
			if err := spliceTraces(edit, fn.Body); err != nil {
				return nil, err
			}
		}

		fset = token.NewFileSet()
		file, err = parser.ParseFile(fset, filename, edit.Bytes(), parser.ParseComments)
		if err != nil {
			return nil, fmt.Errorf("instrumented %s does not parse: %w", filename, err)
		}
		injectImports(fset, file, NewEmitter())
	}

	var buf bytes.Buffer
	if err := printerConfig.Fprint(&buf, fset, file); err != nil {
		return nil, fmt.Errorf("failed to generate code: %w", err)
	}

	return &InstrumentResult{
		Code:    buf.String(),
		Stats:   stats,
		Changed: stats.FunctionsRewritten > 0,
	}, nil
}

// readSource returns the content of src, or of filename when src is nil.
// It accepts the same source types as parser.ParseFile.
func readSource(filename string, src interface{}) ([]byte, error) {
	switch s := src.(type) {
	case nil:
		return os.ReadFile(filename)
	case string:
		return []byte(s), nil
	case []byte:
		return s, nil
	case *bytes.Buffer:
		if s != nil {
			return s.Bytes(), nil
		}
	case io.Reader:
		return io.ReadAll(s)
	}
	return nil, errors.New("invalid source")
}

// InstrumentAST rewrites every marked function of file in place.
//
// The inserted trace statements carry no source positions, so printing the
// rewritten file together with its comments misplaces them. Use
// InstrumentFile to get source text.
//
// Marked declarations that are not functions, functions without a body and
// markers with options are reported as ErrMalformedInput. On error, file
// is left unmodified.
//
// Thread Safety: NOT thread-safe (modifies AST in place).
func InstrumentAST(fset *token.FileSet, file *ast.File) (InstrumentStats, error) {
	emit := NewEmitter()
	rewriter := NewRewriter(fset, emit)

	// Rewrite into a side table first; file.Decls is only touched once all
	// marked functions have been rewritten successfully.
	rewritten := make(map[int]*ast.FuncDecl)
	for i, decl := range file.Decls {
		comment, state := declMarker(decl)
		switch state {
		case NoMarker:
			continue
		case MarkerWithOptions:
			return InstrumentStats{}, NewInstrumentationErrorWithSuggestion(fset, comment.Pos(), ErrMalformedInput,
				"sledgehammer:trace marker takes no options",
				"Use the bare directive "+MarkerDirective)
		}

		fn, err := rewriter.RewriteDecl(decl)
		if err != nil {
			return InstrumentStats{}, err
		}
		rewritten[i] = fn
	}

	for i, fn := range rewritten {
		file.Decls[i] = fn
	}

	stats := rewriter.Stats()
	if stats.TracesInserted > 0 {
		injectImports(fset, file, emit)
	}
	return stats, nil
}
