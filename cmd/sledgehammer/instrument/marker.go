// Package instrument - Activation marker.
package instrument

import (
	"go/ast"
	"strings"
)

// MarkerDirective is the directive comment that opts a function into
// tracing. It takes no options:
//
//	//sledgehammer:trace
//	func process(items []string) { ... }
const MarkerDirective = "//sledgehammer:trace"

// MarkerState classifies a comment with respect to MarkerDirective.
type MarkerState int

const (
	// NoMarker means the comment is not the directive.
	NoMarker MarkerState = iota
	// ValidMarker is exactly MarkerDirective.
	ValidMarker
	// MarkerWithOptions is MarkerDirective followed by arguments.
	MarkerWithOptions
)

// ParseMarker classifies a single comment.
//
// "//sledgehammer:tracex" is not a marker; "//sledgehammer:trace x" is a
// marker with options, which is an error wherever it appears.
func ParseMarker(c *ast.Comment) MarkerState {
	if c == nil || !strings.HasPrefix(c.Text, MarkerDirective) {
		return NoMarker
	}
	rest := c.Text[len(MarkerDirective):]
	switch {
	case strings.TrimRight(rest, " \t\r") == "":
		return ValidMarker
	case rest[0] == ' ' || rest[0] == '\t':
		return MarkerWithOptions
	}
	return NoMarker
}

// FindMarker returns the first marker comment of a doc comment group.
func FindMarker(doc *ast.CommentGroup) (*ast.Comment, MarkerState) {
	if doc == nil {
		return nil, NoMarker
	}
	for _, c := range doc.List {
		if state := ParseMarker(c); state != NoMarker {
			return c, state
		}
	}
	return nil, NoMarker
}

// declMarker finds a marker anywhere in the documentation of decl: the
// declaration's own doc, or the doc of any spec of a grouped declaration.
func declMarker(decl ast.Decl) (*ast.Comment, MarkerState) {
	switch d := decl.(type) {
	case *ast.FuncDecl:
		return FindMarker(d.Doc)
	case *ast.GenDecl:
		if c, state := FindMarker(d.Doc); state != NoMarker {
			return c, state
		}
		for _, spec := range d.Specs {
			var doc *ast.CommentGroup
			switch s := spec.(type) {
			case *ast.ValueSpec:
				doc = s.Doc
			case *ast.TypeSpec:
				doc = s.Doc
			case *ast.ImportSpec:
				doc = s.Doc
			}
			if c, state := FindMarker(doc); state != NoMarker {
				return c, state
			}
		}
	}
	return nil, NoMarker
}
