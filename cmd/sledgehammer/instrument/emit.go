// Package instrument - Trace statement construction.
package instrument

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"go/ast"
	"go/token"
	"strconv"
)

// TracePrefix is the tag every trace line starts with.
const TracePrefix = "SLEDGEHAMMER"

// Emitter builds trace statements. The generated call is
//
//	<fmt>.Fprintln(<os>.Stderr, "[SLEDGEHAMMER fn] message")
//
// where <fmt> and <os> are the local names under which the file imports
// the two packages. The call's results are discarded; a failed write is
// the print primitive's business.
type Emitter struct {
	FmtName string // local name of package "fmt"
	OSName  string // local name of package "os"
}

// NewEmitter returns an Emitter using the mangled import aliases that
// injectImports adds to rewritten files.
func NewEmitter() *Emitter {
	return &Emitter{
		FmtName: importAlias("fmt"),
		OSName:  importAlias("os"),
	}
}

// TraceLine formats the diagnostic line printed for message in function fnName.
func TraceLine(fnName, message string) string {
	return fmt.Sprintf("[%s %s] %s", TracePrefix, fnName, message)
}

// Trace returns a statement that prints TraceLine(fnName, message).
//
// The statement has no positions. Trace statements are told apart from
// the statements of the source by that.
func (e *Emitter) Trace(fnName, message string) ast.Stmt {
	return &ast.ExprStmt{
		X: &ast.CallExpr{
			Fun: &ast.SelectorExpr{
				X:   ast.NewIdent(e.FmtName),
				Sel: ast.NewIdent("Fprintln"),
			},
			Args: []ast.Expr{
				&ast.SelectorExpr{
					X:   ast.NewIdent(e.OSName),
					Sel: ast.NewIdent("Stderr"),
				},
				&ast.BasicLit{
					Kind:  token.STRING,
					Value: strconv.Quote(TraceLine(fnName, message)),
				},
			},
		},
	}
}

// importAlias derives a deterministic local name for an injected import.
// The hash suffix keeps it clear of identifiers a user would write.
func importAlias(importPath string) string {
	hash := sha256.Sum256([]byte(importPath))
	return "__sledgehammer_" + importPath + "_" + hex.EncodeToString(hash[:4])
}
