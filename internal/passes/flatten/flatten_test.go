package flatten

import (
	"math/rand"
	"testing"

	"github.com/jsobf/jsobf/internal/ast"
	"github.com/jsobf/jsobf/internal/astutil"
	"github.com/jsobf/jsobf/internal/probability"
	"github.com/jsobf/jsobf/internal/test"
	"github.com/jsobf/jsobf/internal/transform"
	"github.com/jsobf/jsobf/internal/walk"
)

func newTestContext(seed int64) *transform.Context {
	return transform.NewContext(rand.New(rand.NewSource(seed)), transform.ModeMangled, nil)
}

func exprPtrT(e ast.Expr) *ast.Expr { return &e }

// buildOuter constructs function outer(){ var x=10; function inner(){return
// x;} return inner(); }, scenario 3 from spec.md §8.
func buildOuter() *ast.Program {
	innerName := "inner"
	inner := astutil.NewFunctionDeclaration(ast.Fn{
		Name: &innerName,
		Body: []ast.Stmt{astutil.Return(exprPtrT(astutil.Ident("x")))},
	})

	outerBody := []ast.Stmt{
		astutil.VarDecl(ast.VarVar, astutil.Declarator("x", exprPtrT(astutil.Num(10)))),
		inner,
		astutil.Return(exprPtrT(astutil.Call(astutil.Ident("inner")))),
	}

	outerName := "outer"
	outer := astutil.NewFunctionDeclaration(ast.Fn{Name: &outerName, Body: outerBody})
	return &ast.Program{Body: []ast.Stmt{outer}}
}

func findFlatDecl(body []ast.Stmt, suffix string) *ast.SFunctionDecl {
	for i := range body {
		fd, ok := body[i].Data.(*ast.SFunctionDecl)
		if !ok || fd.Fn.Name == nil {
			continue
		}
		name := *fd.Fn.Name
		if len(name) <= 14 {
			continue
		}
		if transform.IsPlaceholder(name[:14]) && name[14:] == suffix {
			return fd
		}
	}
	return nil
}

// scenario 3 from spec.md §8: Flatten only, on function outer(){ var x=10;
// function inner(){return x;} return inner(); }, must introduce a
// top-level var __p_…_flat_inner declaration (a new top-level function
// named with a NamePool placeholder plus the "_flat_inner" suffix) while
// preserving behavior (outer still returns 10 at runtime, which this test
// cannot execute but whose structural precondition it checks: inner's
// free variable x resolves to a declaration in outer's own body, so the
// rewrite is accepted rather than aborted).
func TestApplyExtractsFlatInner(t *testing.T) {
	prog := buildOuter()
	ctx := newTestContext(20)
	p := New(probability.Bool(true))
	err := p.Apply(prog, ctx)
	test.AssertTrue(t, err == nil, "Apply should not error")

	test.AssertTrue(t, len(prog.Body) >= 2, "a flat declaration should have been prepended to the program body")

	flatInner := findFlatDecl(prog.Body, "_flat_inner")
	test.AssertTrue(t, flatInner != nil, "a top-level *_flat_inner function should have been extracted")
	test.AssertTrue(t, len(flatInner.Fn.Params) == 3, "the extracted flat function should take (inputArray, paramArray, result)")

	// outer itself may or may not also have been flattened (it is an
	// equally eligible candidate); either way its declaration must still
	// be present somewhere in the program body.
	var sawOuter bool
	for _, s := range prog.Body {
		if fd, ok := s.Data.(*ast.SFunctionDecl); ok && fd.Fn.Name != nil && *fd.Fn.Name == "outer" {
			sawOuter = true
		}
	}
	test.AssertTrue(t, sawOuter, "outer's own declaration must still be present")
}

type identFinder struct {
	walk.Base
	name  string
	found bool
}

func (f *identFinder) EnterExpr(e *ast.Expr, _ []ast.Node) walk.Action {
	if id, ok := e.Data.(*ast.EIdentifier); ok && id.Name == f.name {
		f.found = true
		return walk.Exit
	}
	return walk.Continue
}

func containsIdent(body []ast.Stmt, name string) bool {
	f := &identFinder{name: name}
	walk.Stmts(body, f)
	return f.found
}

// A function containing `this` must be skipped by Flatten (spec.md §8's
// scenario 6): function m(){return this.x;} must survive completely
// unrewritten, its sole return still reading this.x directly.
func TestEligibleRejectsThisUsage(t *testing.T) {
	mName := "m"
	m := astutil.NewFunctionDeclaration(ast.Fn{
		Name: &mName,
		Body: []ast.Stmt{astutil.Return(exprPtrT(astutil.Member(astutil.This(), "x")))},
	})
	prog := &ast.Program{Body: []ast.Stmt{m}}

	ctx := newTestContext(21)
	p := New(probability.Bool(true))
	err := p.Apply(prog, ctx)
	test.AssertTrue(t, err == nil, "Apply should not error")

	test.AssertTrue(t, len(prog.Body) == 1, "no flat function should have been extracted")

	fd, ok := prog.Body[0].Data.(*ast.SFunctionDecl)
	test.AssertTrue(t, ok, "m's declaration should remain a plain function declaration")

	test.AssertTrue(t, len(fd.Fn.Body) == 1, "m's body should be untouched")
	ret, ok := fd.Fn.Body[0].Data.(*ast.SReturn)
	test.AssertTrue(t, ok, "m's sole statement should remain a return")
	test.AssertTrue(t, ret.Value != nil, "the return should still carry a value")

	member, ok := ret.Value.Data.(*ast.EMember)
	test.AssertTrue(t, ok, "the returned value should still be a member expression")
	_, ok = member.Object.Data.(*ast.EThis)
	test.AssertTrue(t, ok, "the member's object should still be this")
}

// A free variable with no declaring ancestor (not even a global) must
// abort the candidacy entirely rather than silently emitting an
// undefined-reference bug: function reads a name that is neither declared
// above it nor registered as a global.
func TestTryFlattenAbortsWithoutDefinedAbove(t *testing.T) {
	fName := "f"
	f := astutil.NewFunctionDeclaration(ast.Fn{
		Name: &fName,
		Body: []ast.Stmt{astutil.Return(exprPtrT(astutil.Ident("undeclaredFree")))},
	})
	prog := &ast.Program{Body: []ast.Stmt{f}}

	ctx := newTestContext(22)
	p := New(probability.Bool(true))
	err := p.Apply(prog, ctx)
	test.AssertTrue(t, err == nil, "Apply should not error")

	test.AssertTrue(t, len(prog.Body) == 1, "no flat function should have been extracted")
	test.AssertTrue(t, containsIdent(prog.Body, "undeclaredFree"), "the original free-variable reference should remain untouched")
}
