// Package instrument - Block rewriting.
package instrument

import (
	"go/ast"
	"go/token"
)

// blockTransformer rewrites the statement lists of one traced function.
//
// For each statement s of a block, in order, the output holds:
//
//	trace(pre(s))
//	s             // range loops: a copy whose body is rewritten the same way
//	trace(post(s)) // range loops only
//
// Nothing is removed or reordered. Trace statements are never classified,
// so they are not traced themselves.
//
// Thread Safety: NOT thread-safe (accumulates stats).
type blockTransformer struct {
	fset   *token.FileSet
	emit   *Emitter
	fnName string
	stats  *InstrumentStats
}

// transformBlock returns a new block; block itself is left unchanged.
// A nil block yields nil.
func (t *blockTransformer) transformBlock(block *ast.BlockStmt) (*ast.BlockStmt, error) {
	if block == nil {
		return nil, nil
	}

	list := make([]ast.Stmt, 0, 2*len(block.List))
	for _, stmt := range block.List {
		classified := Classify(stmt)

		pre, err := classified.preText(t.fset)
		if err != nil {
			return nil, err
		}
		list = append(list, t.trace(pre))

		rewritten, err := classified.rewrite(t)
		if err != nil {
			return nil, err
		}
		list = append(list, rewritten)
		t.stats.StatementsTraced++

		if post, ok := classified.postText(); ok {
			list = append(list, t.trace(post))
		}
	}

	return &ast.BlockStmt{
		Lbrace: block.Lbrace,
		List:   list,
		Rbrace: block.Rbrace,
	}, nil
}

func (t *blockTransformer) trace(message string) ast.Stmt {
	t.stats.TracesInserted++
	return t.emit.Trace(t.fnName, message)
}

// spliceTraces inserts the source of every trace statement of a rewritten
// block into edit, next to the original statement it belongs to.
//
// Trace statements are the ones without a position. A trace that follows
// a bracketing loop is its closing trace and goes right after the loop;
// every other trace goes right before the next original statement. Both
// land on the same source line as that statement, joined by a semicolon.
func spliceTraces(edit *sourceEdit, block *ast.BlockStmt) error {
	if block == nil {
		return nil
	}

	for i, stmt := range block.List {
		if stmt.Pos().IsValid() {
			if loop, ok := Classify(stmt).(*BracketingLoop); ok {
				if err := spliceTraces(edit, loop.Loop.Body); err != nil {
					return err
				}
			}
			continue
		}

		src, err := renderNode(nil, stmt)
		if err != nil {
			return err
		}

		if i > 0 && block.List[i-1].Pos().IsValid() {
			if loop, ok := Classify(block.List[i-1]).(*BracketingLoop); ok {
				edit.Insert(loop.node().End(), "; "+src)
				continue
			}
		}

		next := nextPositioned(block.List[i+1:])
		if next == nil {
			return NewInstrumentationError(nil, token.NoPos, ErrUnrenderableStatement,
				"trace statement has no statement to precede")
		}
		edit.Insert(next.Pos(), src+"; ")
	}
	return nil
}

// nextPositioned returns the first statement of list that comes from the
// source file.
func nextPositioned(list []ast.Stmt) ast.Stmt {
	for _, stmt := range list {
		if stmt.Pos().IsValid() {
			return stmt
		}
	}
	return nil
}
