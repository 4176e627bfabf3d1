// Package markercheck defines an analyzer that reports //sledgehammer:trace
// markers the rewriter would reject or silently ignore.
//
// The rewriter fails a build on a marker with options or on a marker
// documenting something other than a function with a body. Markers that
// do not document any declaration, such as one inside a function body, are
// not seen by the rewriter at all. This analyzer reports all three so they
// surface in editors and CI before a traced build is attempted.
package markercheck

import (
	"go/ast"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/inspect"
	"golang.org/x/tools/go/ast/inspector"

	"github.com/kolkov/sledgehammer/cmd/sledgehammer/instrument"
)

const doc = `sledgehammer reports misplaced or malformed //sledgehammer:trace markers

A marker must be exactly "//sledgehammer:trace" and must be part of the
doc comment of a function declaration that has a body.`

// Analyzer is the marker checker.
var Analyzer = &analysis.Analyzer{
	Name:     "sledgehammer",
	Doc:      doc,
	Requires: []*analysis.Analyzer{inspect.Analyzer},
	Run:      run,
}

func run(pass *analysis.Pass) (any, error) {
	pector := pass.ResultOf[inspect.Analyzer].(*inspector.Inspector)

	// Doc groups of functions, mapped to their declaration.
	funcDocs := make(map[*ast.CommentGroup]*ast.FuncDecl)
	nodeFilter := []ast.Node{
		(*ast.FuncDecl)(nil),
	}
	pector.Preorder(nodeFilter, func(node ast.Node) {
		fn := node.(*ast.FuncDecl)
		if fn.Doc != nil {
			funcDocs[fn.Doc] = fn
		}
	})

	for _, file := range pass.Files {
		for _, group := range file.Comments {
			for _, c := range group.List {
				checkComment(pass, c, funcDocs[group])
			}
		}
	}

	return nil, nil
}

// checkComment reports c if it is a bad marker. fn is the function whose
// doc comment contains c, if any.
func checkComment(pass *analysis.Pass, c *ast.Comment, fn *ast.FuncDecl) {
	switch instrument.ParseMarker(c) {
	case instrument.NoMarker:
		return
	case instrument.MarkerWithOptions:
		pass.Report(analysis.Diagnostic{
			Pos:     c.Pos(),
			End:     c.End(),
			Message: "sledgehammer:trace marker takes no options",
			SuggestedFixes: []analysis.SuggestedFix{{
				Message: "Remove marker options",
				TextEdits: []analysis.TextEdit{{
					Pos:     c.Pos(),
					End:     c.End(),
					NewText: []byte(instrument.MarkerDirective),
				}},
			}},
		})
		return
	}

	switch {
	case fn == nil:
		pass.Reportf(c.Pos(), "sledgehammer:trace marker is not attached to a function declaration")
	case fn.Body == nil:
		pass.Reportf(c.Pos(), "function %s has no body and cannot be traced", fn.Name.Name)
	}
}
