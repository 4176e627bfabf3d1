// Package instrument - Statement classification.
//
// Every statement in a traced block is classified into one of a closed set
// of kinds. Each concern (text traced before, text traced after, recursion
// into children) is a single method dispatched over that set, so adding a
// new specialized kind does not touch the existing ones.
package instrument

import (
	"bytes"
	"go/ast"
	"go/printer"
	"go/token"
	"reflect"
	"strings"
)

// Statement is a classified statement of a traced block.
//
// Implementations: Simple, BracketingLoop.
type Statement interface {
	// node returns the statement as it appears in the block.
	node() ast.Stmt

	// preText renders the message traced immediately before the statement.
	preText(fset *token.FileSet) (string, error)

	// postText returns the message traced immediately after the statement,
	// if any.
	postText() (string, bool)

	// rewrite returns the statement to place in the output block, with
	// nested blocks rewritten by t where the kind allows it.
	rewrite(t *blockTransformer) (ast.Stmt, error)
}

// Simple is any statement that is not a bracketing loop. It is traced once,
// before it runs, and its interior (branches, closures, nested loops) is
// left untouched.
type Simple struct {
	Stmt ast.Stmt
}

// BracketingLoop is a range loop. It is traced with its header before it
// starts and with a closing brace after it ends, and its body is rewritten
// recursively.
type BracketingLoop struct {
	Label *ast.LabeledStmt // enclosing label, nil for unlabeled loops
	Loop  *ast.RangeStmt
}

// Classify maps a statement to its kind. Range loops, labeled or not, are
// BracketingLoop; every other statement is Simple.
func Classify(stmt ast.Stmt) Statement {
	switch s := stmt.(type) {
	case *ast.RangeStmt:
		return &BracketingLoop{Loop: s}
	case *ast.LabeledStmt:
		if loop, ok := s.Stmt.(*ast.RangeStmt); ok {
			return &BracketingLoop{Label: s, Loop: loop}
		}
	}
	return &Simple{Stmt: stmt}
}

func (s *Simple) node() ast.Stmt { return s.Stmt }

func (s *Simple) preText(fset *token.FileSet) (string, error) {
	return renderNode(fset, s.Stmt)
}

func (s *Simple) postText() (string, bool) { return "", false }

func (s *Simple) rewrite(_ *blockTransformer) (ast.Stmt, error) {
	return s.Stmt, nil
}

func (l *BracketingLoop) node() ast.Stmt {
	if l.Label != nil {
		return l.Label
	}
	return l.Loop
}

// preText reconstructs the loop header, "for k, v := range xs {".
// The label is not part of the header.
func (l *BracketingLoop) preText(fset *token.FileSet) (string, error) {
	x, err := renderNode(fset, l.Loop.X)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("for ")
	if l.Loop.Key != nil {
		key, err := renderNode(fset, l.Loop.Key)
		if err != nil {
			return "", err
		}
		sb.WriteString(key)
		if l.Loop.Value != nil {
			value, err := renderNode(fset, l.Loop.Value)
			if err != nil {
				return "", err
			}
			sb.WriteString(", ")
			sb.WriteString(value)
		}
		sb.WriteString(" ")
		sb.WriteString(l.Loop.Tok.String())
		sb.WriteString(" ")
	}
	sb.WriteString("range ")
	sb.WriteString(x)
	sb.WriteString(" {")
	return sb.String(), nil
}

func (l *BracketingLoop) postText() (string, bool) { return "}", true }

// rewrite returns a shallow copy of the loop (and its label) with the body
// replaced. The original nodes are not modified.
func (l *BracketingLoop) rewrite(t *blockTransformer) (ast.Stmt, error) {
	body, err := t.transformBlock(l.Loop.Body)
	if err != nil {
		return nil, err
	}

	loop := *l.Loop
	loop.Body = body
	t.stats.LoopsBracketed++

	if l.Label == nil {
		return &loop, nil
	}
	label := *l.Label
	label.Stmt = &loop
	return &label, nil
}

// printerConfig matches the configuration used to print whole files.
var printerConfig = &printer.Config{
	Mode:     printer.UseSpaces | printer.TabIndent,
	Tabwidth: 8,
}

// renderNode prints a statement or expression back to Go source.
//
// Nodes produced by a failed parse (BadStmt, BadExpr, BadDecl) have no
// source form and are rejected with ErrUnrenderableStatement.
func renderNode(fset *token.FileSet, node ast.Node) (string, error) {
	if isNilNode(node) {
		return "", NewInstrumentationError(nil, token.NoPos, ErrUnrenderableStatement,
			"cannot render nil statement")
	}

	var bad ast.Node
	ast.Inspect(node, func(n ast.Node) bool {
		switch n.(type) {
		case *ast.BadStmt, *ast.BadExpr, *ast.BadDecl:
			bad = n
			return false
		}
		return bad == nil
	})
	if bad != nil {
		return "", NewInstrumentationErrorWithSuggestion(fset, bad.Pos(), ErrUnrenderableStatement,
			"cannot render statement containing a syntax error",
			"Fix the syntax error before tracing the function")
	}

	if fset == nil {
		fset = token.NewFileSet()
	}
	var buf bytes.Buffer
	if err := printerConfig.Fprint(&buf, fset, node); err != nil {
		return "", NewInstrumentationError(fset, node.Pos(), ErrUnrenderableStatement,
			"cannot render statement: "+err.Error())
	}
	return buf.String(), nil
}

// isNilNode reports whether node is nil, including a typed nil pointer.
func isNilNode(node ast.Node) bool {
	if node == nil {
		return true
	}
	v := reflect.ValueOf(node)
	return v.Kind() == reflect.Ptr && v.IsNil()
}
