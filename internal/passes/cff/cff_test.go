package cff

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

// scenario 1 from spec.md §8: function f(){ var a=1; var b=2; var c=3;
// return a+b+c; } with CFF only must produce a body containing exactly one
// while + labeled switch with >=3 cases and >=2 state variables declared.
func TestFlattenBodyScenario1(t *testing.T) {
	body := []ast.Stmt{
		astutil.VarDecl(ast.VarVar, astutil.Declarator("a", exprPtrT(astutil.Num(1)))),
		astutil.VarDecl(ast.VarVar, astutil.Declarator("b", exprPtrT(astutil.Num(2)))),
		astutil.VarDecl(ast.VarVar, astutil.Declarator("c", exprPtrT(astutil.Num(3)))),
		astutil.Return(exprPtrT(astutil.Bin(ast.BinOpAdd,
			astutil.Bin(ast.BinOpAdd, astutil.Ident("a"), astutil.Ident("b")),
			astutil.Ident("c"),
		))),
	}

	ctx := newTestContext(1)
	out := flattenBody(body, ctx)

	test.AssertTrue(t, len(out) >= 2, "expected at least a state-var decl and the dispatch loop")

	varDecl, ok := out[0].Data.(*ast.SVarDecl)
	test.AssertTrue(t, ok, "first statement should be the state variable declaration")
	test.AssertTrue(t, len(varDecl.Decls) >= 2, "expected at least two state variables")

	labeled, ok := out[len(out)-1].Data.(*ast.SLabeled)
	test.AssertTrue(t, ok, "last statement should be the labeled dispatch loop")

	while, ok := labeled.Body.Data.(*ast.SWhile)
	test.AssertTrue(t, ok, "labeled statement should wrap a while loop")

	block, ok := while.Body.Data.(*ast.SBlock)
	test.AssertTrue(t, ok, "while body should be a block")
	test.AssertTrue(t, len(block.Body) == 1, "while block should contain exactly the dispatch switch")

	sw, ok := block.Body[0].Data.(*ast.SSwitch)
	test.AssertTrue(t, ok, "while block's only statement should be the dispatch switch")
	test.AssertTrue(t, len(sw.Cases) >= 3, "expected at least 3 chunks/cases")
}

// scenario 5 from spec.md §8: a labeled switch whose cases each end in a
// matching break must disappear as a switch node entirely — re-expressed
// as an if/goto chain plus one chunk per case — with CFF.
func TestFlattenBodySwitchStructural(t *testing.T) {
	sw := &ast.SSwitch{
		Discriminant: astutil.Ident("k"),
		Cases: []ast.SwitchCase{
			{Test: exprPtrT(astutil.Num(1)), Body: []ast.Stmt{
				astutil.ExprStmt(astutil.Call(astutil.Ident("a"))),
				astutil.Break("L"),
			}},
			{Test: exprPtrT(astutil.Num(2)), Body: []ast.Stmt{
				astutil.ExprStmt(astutil.Call(astutil.Ident("b"))),
				astutil.Break("L"),
			}},
		},
	}
	labeledSwitch := astutil.Labeled("L", ast.Stmt{Data: sw})

	body := []ast.Stmt{
		astutil.ExprStmt(astutil.Call(astutil.Ident("setup"))),
		labeledSwitch,
		astutil.Return(nil),
	}

	ctx := newTestContext(2)
	out := flattenBody(body, ctx)

	test.AssertTrue(t, !containsOriginalSwitch(out), "original switch discriminant must not survive CFF")
}

type switchFinder struct {
	walk.Base
	found bool
}

func (f *switchFinder) EnterStmt(s *ast.Stmt, _ []ast.Node) walk.Action {
	if sw, ok := s.Data.(*ast.SSwitch); ok {
		if id, ok := sw.Discriminant.Data.(*ast.EIdentifier); ok && id.Name == "k" {
			f.found = true
			return walk.Exit
		}
	}
	return walk.Continue
}

func containsOriginalSwitch(body []ast.Stmt) bool {
	f := &switchFinder{}
	walk.Stmts(body, f)
	return f.found
}

// spec.md §4.E's loop-structure rule: a labeled for-loop with a block body
// must disappear as a for node entirely, with its break/continue rewritten
// into the surrounding dispatch rather than left referencing a loop that no
// longer exists.
func TestFlattenBodyLoopStructural(t *testing.T) {
	loop := astutil.Labeled("L", ast.Stmt{Data: &ast.SFor{
		Init: stmtPtrT(astutil.VarDecl(ast.VarVar, astutil.Declarator("i", exprPtrT(astutil.Num(0))))),
		Test: exprPtrT(astutil.Bin(ast.BinOpLt, astutil.Ident("i"), astutil.Num(3))),
		Update: exprPtrT(astutil.Assign(ast.AssignOpAdd, astutil.Ident("i"), astutil.Num(1))),
		Body: ast.Stmt{Data: &ast.SBlock{Body: []ast.Stmt{
			astutil.ExprStmt(astutil.Call(astutil.Ident("visit"), astutil.Ident("i"))),
			astutil.Continue("L"),
		}}},
	}})

	body := []ast.Stmt{
		astutil.ExprStmt(astutil.Call(astutil.Ident("setup"))),
		loop,
		astutil.Return(nil),
	}

	ctx := newTestContext(6)
	out := flattenBody(body, ctx)

	test.AssertTrue(t, !containsOriginalLoop(out), "original for node must not survive CFF")
}

type loopFinder struct {
	walk.Base
	found bool
}

func (f *loopFinder) EnterStmt(s *ast.Stmt, _ []ast.Node) walk.Action {
	if _, ok := s.Data.(*ast.SFor); ok {
		f.found = true
		return walk.Exit
	}
	return walk.Continue
}

func containsOriginalLoop(body []ast.Stmt) bool {
	f := &loopFinder{}
	walk.Stmts(body, f)
	return f.found
}

func stmtPtrT(s ast.Stmt) *ast.Stmt { return &s }

// CFF must no-op on blocks with fewer than 3 statements (spec.md §8's
// boundary property), enforced by the pass's eligibility gate rather than
// flattenBody itself — exercised here through the full Pass.Apply path.
func TestCFFBoundarySkipsSmallBlocks(t *testing.T) {
	prog := &ast.Program{Body: []ast.Stmt{
		astutil.VarDecl(ast.VarVar, astutil.Declarator("a", exprPtrT(astutil.Num(1)))),
		astutil.Return(exprPtrT(astutil.Ident("a"))),
	}}
	ctx := newTestContext(3)
	p := New(probability.Bool(true))
	err := p.Apply(prog, ctx)
	test.AssertTrue(t, err == nil, "Apply should not error")
	_, stillPlain := prog.Body[0].Data.(*ast.SVarDecl)
	test.AssertTrue(t, stillPlain, "a 2-statement program body should be left untouched")
}

// CFF must no-op on blocks containing let/const (spec.md §8's boundary
// property).
func TestCFFBoundarySkipsLexicalBindings(t *testing.T) {
	body := []ast.Stmt{
		astutil.VarDecl(ast.VarLet, astutil.Declarator("a", exprPtrT(astutil.Num(1)))),
		astutil.VarDecl(ast.VarVar, astutil.Declarator("b", exprPtrT(astutil.Num(2)))),
		astutil.Return(exprPtrT(astutil.Ident("a"))),
	}
	test.AssertTrue(t, containsLexicalBindings(body), "let declaration should be detected as lexical")
	test.AssertTrue(t, !eligibleBody(body, nil, newTestContext(4), probability.Bool(true)),
		"a block with a let binding must never be eligible")
}

// Scenario 1 driven through the full Pass.Apply path against a named
// function declaration, confirming the visitor finds a function's own
// body (stored as a bare statement list, not an SBlock) rather than only
// literal nested blocks.
func TestApplyFlattensFunctionDeclarationBody(t *testing.T) {
	fnName := "f"
	fn := ast.Fn{
		Name: &fnName,
		Body: []ast.Stmt{
			astutil.VarDecl(ast.VarVar, astutil.Declarator("a", exprPtrT(astutil.Num(1)))),
			astutil.VarDecl(ast.VarVar, astutil.Declarator("b", exprPtrT(astutil.Num(2)))),
			astutil.VarDecl(ast.VarVar, astutil.Declarator("c", exprPtrT(astutil.Num(3)))),
			astutil.Return(exprPtrT(astutil.Bin(ast.BinOpAdd,
				astutil.Bin(ast.BinOpAdd, astutil.Ident("a"), astutil.Ident("b")),
				astutil.Ident("c"),
			))),
		},
	}
	prog := &ast.Program{Body: []ast.Stmt{astutil.NewFunctionDeclaration(fn)}}

	ctx := newTestContext(5)
	p := New(probability.Bool(true))
	err := p.Apply(prog, ctx)
	test.AssertTrue(t, err == nil, "Apply should not error")

	fd, ok := prog.Body[0].Data.(*ast.SFunctionDecl)
	test.AssertTrue(t, ok, "program body should still be the function declaration")
	test.AssertTrue(t, len(fd.Fn.Body) >= 2, "function body should now hold the state decl and dispatch loop")

	_, hasLabeled := fd.Fn.Body[len(fd.Fn.Body)-1].Data.(*ast.SLabeled)
	test.AssertTrue(t, hasLabeled, "function body's last statement should be the labeled dispatch loop")
}
