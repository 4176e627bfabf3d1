// Package instrument - Function rewriting.
package instrument

import (
	"go/ast"
	"go/token"
)

// Rewriter instruments individual function declarations.
//
// Thread Safety: NOT thread-safe (accumulates Stats). Use one Rewriter per
// goroutine; rewrites of different functions are independent.
type Rewriter struct {
	fset  *token.FileSet
	emit  *Emitter
	stats InstrumentStats
}

// NewRewriter creates a Rewriter. fset is used to render statements and to
// position errors; emit may be nil to use NewEmitter().
func NewRewriter(fset *token.FileSet, emit *Emitter) *Rewriter {
	if emit == nil {
		emit = NewEmitter()
	}
	return &Rewriter{
		fset: fset,
		emit: emit,
	}
}

// Stats returns the statistics accumulated by all rewrites so far.
func (r *Rewriter) Stats() InstrumentStats {
	return r.stats
}

// RewriteDecl returns a copy of decl whose body traces every statement.
//
// Doc, receiver, name and signature are shared with decl unchanged; only
// Body is new. decl itself is not modified.
//
// Returns an error wrapping ErrMalformedInput if decl is not a function
// declaration or has no body, and ErrUnrenderableStatement if a statement
// cannot be printed for its trace message. On error nothing is returned.
func (r *Rewriter) RewriteDecl(decl ast.Decl) (*ast.FuncDecl, error) {
	fn, ok := decl.(*ast.FuncDecl)
	if !ok || fn == nil {
		pos := token.NoPos
		if !isNilNode(decl) {
			pos = decl.Pos()
		}
		return nil, NewInstrumentationErrorWithSuggestion(r.fset, pos, ErrMalformedInput,
			describeDecl(decl)+" cannot be traced: only function declarations can",
			"Move the "+MarkerDirective+" marker to a func declaration")
	}
	if fn.Body == nil {
		return nil, NewInstrumentationErrorWithSuggestion(r.fset, fn.Pos(), ErrMalformedInput,
			"function "+fn.Name.Name+" has no body",
			"Functions implemented in assembly or via linkname cannot be traced")
	}

	// Work on a local copy of the stats so a failed rewrite leaves no trace.
	stats := InstrumentStats{}
	t := &blockTransformer{
		fset:   r.fset,
		emit:   r.emit,
		fnName: fn.Name.Name,
		stats:  &stats,
	}
	body, err := t.transformBlock(fn.Body)
	if err != nil {
		return nil, err
	}

	stats.FunctionsRewritten = 1
	r.stats.add(stats)

	return &ast.FuncDecl{
		Doc:  fn.Doc,
		Recv: fn.Recv,
		Name: fn.Name,
		Type: fn.Type,
		Body: body,
	}, nil
}

// describeDecl names the kind of a declaration for error messages.
func describeDecl(decl ast.Decl) string {
	switch d := decl.(type) {
	case *ast.GenDecl:
		if d == nil {
			return "nil declaration"
		}
		return d.Tok.String() + " declaration"
	case *ast.BadDecl:
		return "malformed declaration"
	case nil:
		return "nil declaration"
	}
	return "declaration"
}
