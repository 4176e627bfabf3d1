package instrument

import (
	"bytes"
	"errors"
	"go/ast"
	"go/parser"
	"go/printer"
	"go/token"
	"strconv"
	"testing"
)

// parseFunc parses src and returns its first function declaration.
func parseFunc(t *testing.T, src string) (*token.FileSet, *ast.FuncDecl) {
	t.Helper()
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "test.go", src, parser.ParseComments)
	if err != nil {
		t.Fatalf("Failed to parse source: %v", err)
	}
	for _, decl := range file.Decls {
		if fn, ok := decl.(*ast.FuncDecl); ok {
			return fset, fn
		}
	}
	t.Fatal("No function declaration in source")
	return nil, nil
}

// traceMessage returns the line printed by stmt if it is a trace statement.
func traceMessage(stmt ast.Stmt) (string, bool) {
	expr, ok := stmt.(*ast.ExprStmt)
	if !ok {
		return "", false
	}
	call, ok := expr.X.(*ast.CallExpr)
	if !ok || len(call.Args) != 2 {
		return "", false
	}
	sel, ok := call.Fun.(*ast.SelectorExpr)
	if !ok || sel.Sel.Name != "Fprintln" {
		return "", false
	}
	pkg, ok := sel.X.(*ast.Ident)
	if !ok || pkg.Name != NewEmitter().FmtName {
		return "", false
	}
	lit, ok := call.Args[1].(*ast.BasicLit)
	if !ok {
		return "", false
	}
	line, err := strconv.Unquote(lit.Value)
	if err != nil {
		return "", false
	}
	return line, true
}

// stripTraces removes trace statements from a rewritten block, recursing
// into range loop bodies.
func stripTraces(block *ast.BlockStmt) *ast.BlockStmt {
	out := &ast.BlockStmt{Lbrace: block.Lbrace, Rbrace: block.Rbrace}
	for _, stmt := range block.List {
		if _, ok := traceMessage(stmt); ok {
			continue
		}
		switch s := stmt.(type) {
		case *ast.RangeStmt:
			loop := *s
			loop.Body = stripTraces(s.Body)
			stmt = &loop
		case *ast.LabeledStmt:
			if inner, ok := s.Stmt.(*ast.RangeStmt); ok {
				loop := *inner
				loop.Body = stripTraces(inner.Body)
				label := *s
				label.Stmt = &loop
				stmt = &label
			}
		}
		out.List = append(out.List, stmt)
	}
	return out
}

func render(t *testing.T, fset *token.FileSet, node ast.Node) string {
	t.Helper()
	var buf bytes.Buffer
	if err := printer.Fprint(&buf, fset, node); err != nil {
		t.Fatalf("printer.Fprint: %v", err)
	}
	return buf.String()
}

// expectTraces checks that list is exactly the expected sequence, where a
// string entry is a trace message and a nil entry is any non-trace statement.
func expectTraces(t *testing.T, fnName string, list []ast.Stmt, want []*string) {
	t.Helper()
	if len(list) != len(want) {
		t.Fatalf("Block has %d statements, want %d", len(list), len(want))
	}
	for i, w := range want {
		got, isTrace := traceMessage(list[i])
		switch {
		case w == nil && isTrace:
			t.Errorf("Statement %d is trace %q, want original statement", i, got)
		case w != nil && !isTrace:
			t.Errorf("Statement %d is not a trace, want %q", i, *w)
		case w != nil && got != TraceLine(fnName, *w):
			t.Errorf("Statement %d = %q, want %q", i, got, TraceLine(fnName, *w))
		}
	}
}

func msg(s string) *string { return &s }

// TestRewriteDecl_Example tests the worked example from the package docs.
func TestRewriteDecl_Example(t *testing.T) {
	fset, fn := parseFunc(t, `package main

func f() {
	print(1)
	for i := range 3 {
		print(i)
	}
}
`)

	out, err := NewRewriter(fset, nil).RewriteDecl(fn)
	if err != nil {
		t.Fatalf("RewriteDecl failed: %v", err)
	}

	list := out.Body.List
	expectTraces(t, "f", list, []*string{
		msg("print(1)"),
		nil,
		msg("for i := range 3 {"),
		nil,
		msg("}"),
	})

	loop, ok := list[3].(*ast.RangeStmt)
	if !ok {
		t.Fatalf("Statement 3 is %T, want *ast.RangeStmt", list[3])
	}
	expectTraces(t, "f", loop.Body.List, []*string{
		msg("print(i)"),
		nil,
	})
}

// TestRewriteDecl_OrderPreservation tests that removing traces gives back the input.
func TestRewriteDecl_OrderPreservation(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{
			name: "straight line",
			src: `package p
func f(a, b int) int {
	c := a + b
	c *= 2
	if c > 10 {
		c = 10
	}
	return c
}`,
		},
		{
			name: "nested loops",
			src: `package p
func f(m map[string][]int) (n int) {
	for k, vs := range m {
		_ = k
		for _, v := range vs {
			n += v
		}
	}
	return
}`,
		},
		{
			name: "labeled loop",
			src: `package p
func f(xs []int) {
outer:
	for i := range xs {
		for j := range xs {
			if i == j {
				continue outer
			}
		}
	}
}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fset, fn := parseFunc(t, tt.src)
			before := render(t, fset, fn.Body)

			out, err := NewRewriter(fset, nil).RewriteDecl(fn)
			if err != nil {
				t.Fatalf("RewriteDecl failed: %v", err)
			}

			after := render(t, fset, stripTraces(out.Body))
			if after != before {
				t.Errorf("Stripped body differs:\n%s\n--- want ---\n%s", after, before)
			}

			// The input tree is not modified.
			if render(t, fset, fn.Body) != before {
				t.Errorf("Input body was modified")
			}
		})
	}
}

// TestRewriteDecl_SimpleShape tests one trace before each non-loop statement and none after.
func TestRewriteDecl_SimpleShape(t *testing.T) {
	fset, fn := parseFunc(t, `package p
func f() int {
	x := 1
	x++
	defer println(x)
	go func() {}()
	switch x {
	case 1:
	}
	return x
}`)

	out, err := NewRewriter(fset, nil).RewriteDecl(fn)
	if err != nil {
		t.Fatalf("RewriteDecl failed: %v", err)
	}

	if len(out.Body.List) != 2*len(fn.Body.List) {
		t.Fatalf("Got %d statements, want %d", len(out.Body.List), 2*len(fn.Body.List))
	}
	for i, orig := range fn.Body.List {
		pre, ok := traceMessage(out.Body.List[2*i])
		if !ok {
			t.Fatalf("Statement %d is not a trace", 2*i)
		}
		text, err := renderNode(fset, orig)
		if err != nil {
			t.Fatal(err)
		}
		if pre != TraceLine("f", text) {
			t.Errorf("Trace %d = %q, want %q", i, pre, TraceLine("f", text))
		}
		if out.Body.List[2*i+1] != orig {
			t.Errorf("Statement %d is not the original node", i)
		}
	}
}

// TestRewriteDecl_LoopBracketing tests header/close traces at every nesting depth.
func TestRewriteDecl_LoopBracketing(t *testing.T) {
	fset, fn := parseFunc(t, `package p
func g(grid [][]int) {
	for y, row := range grid {
		for x := range row {
			for range x {
				println(y)
			}
		}
	}
}`)

	out, err := NewRewriter(fset, nil).RewriteDecl(fn)
	if err != nil {
		t.Fatalf("RewriteDecl failed: %v", err)
	}

	expectTraces(t, "g", out.Body.List, []*string{msg("for y, row := range grid {"), nil, msg("}")})
	l1 := out.Body.List[1].(*ast.RangeStmt)
	expectTraces(t, "g", l1.Body.List, []*string{msg("for x := range row {"), nil, msg("}")})
	l2 := l1.Body.List[1].(*ast.RangeStmt)
	expectTraces(t, "g", l2.Body.List, []*string{msg("for range x {"), nil, msg("}")})
	l3 := l2.Body.List[1].(*ast.RangeStmt)
	expectTraces(t, "g", l3.Body.List, []*string{msg("println(y)"), nil})

	stats := NewRewriter(fset, nil)
	if _, err := stats.RewriteDecl(fn); err != nil {
		t.Fatal(err)
	}
	if got := stats.Stats().LoopsBracketed; got != 3 {
		t.Errorf("LoopsBracketed = %d, want 3", got)
	}
}

// TestRewriteDecl_AssignRange tests headers of range loops assigning to existing variables.
func TestRewriteDecl_AssignRange(t *testing.T) {
	fset, fn := parseFunc(t, `package p
func h(m map[string]int) {
	var k string
	var v int
	for k, v = range m {
	}
	_, _ = k, v
}`)

	out, err := NewRewriter(fset, nil).RewriteDecl(fn)
	if err != nil {
		t.Fatalf("RewriteDecl failed: %v", err)
	}
	got, _ := traceMessage(out.Body.List[4])
	if want := TraceLine("h", "for k, v = range m {"); got != want {
		t.Errorf("Header trace = %q, want %q", got, want)
	}

	// Empty loop body stays empty.
	loop := out.Body.List[5].(*ast.RangeStmt)
	if len(loop.Body.List) != 0 {
		t.Errorf("Empty loop body got %d statements", len(loop.Body.List))
	}
}

// TestRewriteDecl_Opacity tests that loops inside other constructs are not entered.
func TestRewriteDecl_Opacity(t *testing.T) {
	fset, fn := parseFunc(t, `package p
func f(xs []int, ok bool) {
	if ok {
		for _, x := range xs {
			println(x)
		}
	}
	func() {
		for range xs {
		}
	}()
	for i := 0; i < len(xs); i++ {
		for range xs {
		}
	}
}`)

	out, err := NewRewriter(fset, nil).RewriteDecl(fn)
	if err != nil {
		t.Fatalf("RewriteDecl failed: %v", err)
	}

	if len(out.Body.List) != 6 {
		t.Fatalf("Got %d statements, want 6 (3 traces + 3 originals)", len(out.Body.List))
	}
	for i := 1; i < len(out.Body.List); i += 2 {
		if out.Body.List[i] != fn.Body.List[i/2] {
			t.Errorf("Statement %d was rewritten, want original node", i)
		}
	}

	// The traced text of the if statement includes its nested loop verbatim.
	got, _ := traceMessage(out.Body.List[0])
	want, _ := renderNode(fset, fn.Body.List[0])
	if got != TraceLine("f", want) {
		t.Errorf("If trace = %q, want %q", got, TraceLine("f", want))
	}
}

// TestRewriteDecl_LabeledLoop tests that labels survive and are kept out of the header.
func TestRewriteDecl_LabeledLoop(t *testing.T) {
	fset, fn := parseFunc(t, `package p
func f(xs []int) {
outer:
	for _, x := range xs {
		if x > 0 {
			break outer
		}
	}
}`)

	out, err := NewRewriter(fset, nil).RewriteDecl(fn)
	if err != nil {
		t.Fatalf("RewriteDecl failed: %v", err)
	}

	expectTraces(t, "f", out.Body.List, []*string{msg("for _, x := range xs {"), nil, msg("}")})
	labeled, ok := out.Body.List[1].(*ast.LabeledStmt)
	if !ok {
		t.Fatalf("Statement 1 is %T, want *ast.LabeledStmt", out.Body.List[1])
	}
	if labeled.Label.Name != "outer" {
		t.Errorf("Label = %q, want outer", labeled.Label.Name)
	}
	loop := labeled.Stmt.(*ast.RangeStmt)
	expectTraces(t, "f", loop.Body.List, []*string{msg("if x > 0 {\n\tbreak outer\n}"), nil})
}

// TestRewriteDecl_MetadataPassThrough tests that everything but the body is unchanged.
func TestRewriteDecl_MetadataPassThrough(t *testing.T) {
	fset, fn := parseFunc(t, `package p

// Sum adds things.
//
//sledgehammer:trace
func (s *Set[T]) Sum(xs ...T) (total T, err error) {
	for _, x := range xs {
		total += x
	}
	return
}`)

	sig := render(t, fset, fn.Type)
	recv := render(t, fset, fn.Recv.List[0].Type)

	out, err := NewRewriter(fset, nil).RewriteDecl(fn)
	if err != nil {
		t.Fatalf("RewriteDecl failed: %v", err)
	}

	if out == fn {
		t.Errorf("RewriteDecl returned the input declaration")
	}
	if out.Doc != fn.Doc || out.Recv != fn.Recv || out.Name != fn.Name || out.Type != fn.Type {
		t.Errorf("Metadata nodes not passed through")
	}
	if got := render(t, fset, out.Type); got != sig {
		t.Errorf("Signature = %q, want %q", got, sig)
	}
	if got := render(t, fset, out.Recv.List[0].Type); got != recv {
		t.Errorf("Receiver = %q, want %q", got, recv)
	}
}

// TestRewriteDecl_MalformedInput tests the fatal cases.
func TestRewriteDecl_MalformedInput(t *testing.T) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "test.go", `package p
const c = 1
type T int
func external()
`, 0)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		decl ast.Decl
	}{
		{"const", file.Decls[0]},
		{"type", file.Decls[1]},
		{"no body", file.Decls[2]},
		{"nil", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRewriter(fset, nil)
			out, err := r.RewriteDecl(tt.decl)
			if out != nil {
				t.Errorf("Expected no output, got %v", out)
			}
			if !errors.Is(err, ErrMalformedInput) {
				t.Errorf("Expected ErrMalformedInput, got %v", err)
			}
			if r.Stats().FunctionsRewritten != 0 {
				t.Errorf("Stats changed by failed rewrite")
			}
		})
	}
}

// TestRewriteDecl_Unrenderable tests statements that cannot be printed.
func TestRewriteDecl_Unrenderable(t *testing.T) {
	fset, fn := parseFunc(t, `package p
func f() {
	println(1)
	for range 3 {
		println(2)
	}
}`)

	// Simulate a front end that produced a broken node deep inside a loop.
	loop := fn.Body.List[1].(*ast.RangeStmt)
	loop.Body.List = append(loop.Body.List, &ast.BadStmt{From: loop.Pos(), To: loop.End()})

	r := NewRewriter(fset, nil)
	out, err := r.RewriteDecl(fn)
	if out != nil {
		t.Errorf("Expected no output on error")
	}
	if !errors.Is(err, ErrUnrenderableStatement) {
		t.Fatalf("Expected ErrUnrenderableStatement, got %v", err)
	}
	if r.Stats().TracesInserted != 0 {
		t.Errorf("Stats changed by failed rewrite")
	}
}

// TestSpliceTraces tests where trace source lands in the original text.
func TestSpliceTraces(t *testing.T) {
	src := `package p
func f(xs []int) {
outer:
	for _, x := range xs {
		println(x)
	}
	println()
}`
	fset, fn := parseFunc(t, src)

	out, err := NewRewriter(fset, nil).RewriteDecl(fn)
	if err != nil {
		t.Fatalf("RewriteDecl failed: %v", err)
	}

	edit := newSourceEdit(fset, []byte(src))
	if err := spliceTraces(edit, out.Body); err != nil {
		t.Fatalf("spliceTraces failed: %v", err)
	}

	emit := NewEmitter()
	call := func(m string) string {
		return emit.FmtName + ".Fprintln(" + emit.OSName + ".Stderr, " + strconv.Quote(TraceLine("f", m)) + ")"
	}
	want := `package p
func f(xs []int) {
` + call("for _, x := range xs {") + `; outer:
	for _, x := range xs {
		` + call("println(x)") + `; println(x)
	}; ` + call("}") + `
	` + call("println()") + `; println()
}`
	if got := string(edit.Bytes()); got != want {
		t.Errorf("Spliced source:\n%s\nwant:\n%s", got, want)
	}
}
