package dispatcher

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

// buildG constructs function g(){ function h(x){return x*2;} return
// h(3)+h(4); }, scenario 2 from spec.md §8.
func buildG() *ast.Program {
	hName := "h"
	h := astutil.NewFunctionDeclaration(ast.Fn{
		Name:   &hName,
		Params: []ast.Expr{astutil.Ident("x")},
		Body: []ast.Stmt{
			astutil.Return(exprPtrT(astutil.Bin(ast.BinOpMul, astutil.Ident("x"), astutil.Num(2)))),
		},
	})

	gBody := []ast.Stmt{
		h,
		astutil.Return(exprPtrT(astutil.Bin(ast.BinOpAdd,
			astutil.Call(astutil.Ident("h"), astutil.Num(3)),
			astutil.Call(astutil.Ident("h"), astutil.Num(4)),
		))),
	}

	gName := "g"
	g := astutil.NewFunctionDeclaration(ast.Fn{Name: &gName, Body: gBody})
	return &ast.Program{Body: []ast.Stmt{g}}
}

type namedFnDeclFinder struct {
	walk.Base
	name  string
	found bool
}

func (f *namedFnDeclFinder) EnterStmt(s *ast.Stmt, _ []ast.Node) walk.Action {
	if fd, ok := s.Data.(*ast.SFunctionDecl); ok && fd.Fn.Name != nil && *fd.Fn.Name == f.name {
		f.found = true
		return walk.Exit
	}
	return walk.Continue
}

func containsFnDecl(body []ast.Stmt, name string) bool {
	f := &namedFnDeclFinder{name: name}
	walk.Stmts(body, f)
	return f.found
}

type identCallFinder struct {
	walk.Base
	name  string
	found bool
}

func (f *identCallFinder) EnterExpr(e *ast.Expr, _ []ast.Node) walk.Action {
	if call, ok := e.Data.(*ast.ECall); ok {
		if id, ok := call.Callee.Data.(*ast.EIdentifier); ok && id.Name == f.name {
			f.found = true
			return walk.Exit
		}
	}
	return walk.Continue
}

func containsIdentCall(body []ast.Stmt, name string) bool {
	f := &identCallFinder{name: name}
	walk.Stmts(body, f)
	return f.found
}

// scenario 2 from spec.md §8: Dispatcher only, on
// function g(){ function h(x){return x*2;} return h(3)+h(4); }, must leave
// the source without a "function h" declaration while preserving behavior
// (g still returns 14 at runtime, which this test cannot execute but whose
// structural precondition — h's body survives, relocated into the table,
// and every call site goes through the shared dispatcher — it checks).
func TestApplyRemovesDispatchedDeclaration(t *testing.T) {
	prog := buildG()
	ctx := newTestContext(10)
	p := New(probability.Bool(true))
	err := p.Apply(prog, ctx)
	test.AssertTrue(t, err == nil, "Apply should not error")

	fd, ok := prog.Body[0].Data.(*ast.SFunctionDecl)
	test.AssertTrue(t, ok, "program body should still hold g's declaration")

	test.AssertTrue(t, !containsFnDecl(fd.Fn.Body, "h"), "h must no longer appear as a function declaration")
	test.AssertTrue(t, !containsIdentCall(fd.Fn.Body, "h"), "no remaining call site should reference h by name")

	var sawTable bool
	for _, s := range fd.Fn.Body {
		decl, ok := s.Data.(*ast.SVarDecl)
		if !ok {
			continue
		}
		for _, d := range decl.Decls {
			if d.Init == nil {
				continue
			}
			obj, ok := d.Init.Data.(*ast.EObject)
			if !ok {
				continue
			}
			// The dispatcher's getter cache is also declared as an
			// object literal, but an empty one; only the table has entries.
			if len(obj.Properties) == 0 {
				continue
			}
			test.AssertTrue(t, len(obj.Properties) == 1, "dispatch table should hold exactly one relocated function")
			sawTable = true
		}
	}
	test.AssertTrue(t, sawTable, "a dispatch table object literal should have been installed in g's body")

	var sawDispatcherFn bool
	for _, s := range fd.Fn.Body {
		if fnDecl, ok := s.Data.(*ast.SFunctionDecl); ok && fnDecl.Fn.Name != nil && len(fnDecl.Fn.Params) == 3 {
			sawDispatcherFn = true
		}
	}
	test.AssertTrue(t, sawDispatcherFn, "the shared dispatcher(x, y, z) function should have been installed")
}

// Dispatcher must no-op inside AwaitExpression (spec.md §8's boundary
// property): a candidate's sole call site, when it is itself the direct
// operand of an await, must be left completely untouched even though the
// candidate's declaration is still relocated into the dispatch table.
func TestDispatcherBoundarySkipsAwaitOperand(t *testing.T) {
	hName := "h"
	h := astutil.NewFunctionDeclaration(ast.Fn{
		Name:   &hName,
		Params: []ast.Expr{astutil.Ident("x")},
		Body: []ast.Stmt{
			astutil.Return(exprPtrT(astutil.Bin(ast.BinOpMul, astutil.Ident("x"), astutil.Num(2)))),
		},
	})

	awaitedCall := astutil.Await(astutil.Call(astutil.Ident("h"), astutil.Num(3)))
	outerBody := []ast.Stmt{h, astutil.Return(exprPtrT(awaitedCall))}

	outerName := "outer"
	outer := astutil.NewFunctionDeclaration(ast.Fn{Name: &outerName, IsAsync: true, Body: outerBody})
	prog := &ast.Program{Body: []ast.Stmt{outer}}

	ctx := newTestContext(11)
	p := New(probability.Bool(true))
	err := p.Apply(prog, ctx)
	test.AssertTrue(t, err == nil, "Apply should not error")

	fd, ok := prog.Body[0].Data.(*ast.SFunctionDecl)
	test.AssertTrue(t, ok, "program body should still hold outer's declaration")

	ret, ok := fd.Fn.Body[len(fd.Fn.Body)-1].Data.(*ast.SReturn)
	test.AssertTrue(t, ok, "last statement should remain the return")
	test.AssertTrue(t, ret.Value != nil, "return should still carry a value")

	await, ok := ret.Value.Data.(*ast.EAwait)
	test.AssertTrue(t, ok, "returned value should still be an await expression")

	call, ok := await.Argument.Data.(*ast.ECall)
	test.AssertTrue(t, ok, "await's operand must remain an untouched call expression")

	id, ok := call.Callee.Data.(*ast.EIdentifier)
	test.AssertTrue(t, ok, "await's call callee must remain a plain identifier")
	test.AssertTrue(t, id.Name == "h", "the awaited call must still reference h by its original name")
}

// A function named only once but reassigned elsewhere in the same context
// is not eligible (criterion (e)): it must survive as an ordinary
// declaration.
func TestCollectCandidatesExcludesReassignedNames(t *testing.T) {
	hName := "h"
	h := astutil.NewFunctionDeclaration(ast.Fn{Name: &hName, Body: []ast.Stmt{astutil.Return(nil)}})
	reassign := astutil.AssignStmt(ast.AssignOpAssign, astutil.Ident("h"), astutil.Ident("h"))
	candidates := collectCandidates([]ast.Stmt{h, reassign}, newTestContext(10))
	test.AssertTrue(t, len(candidates) == 0, "a reassigned function name must not be a candidate")
}

// Two declarations sharing a name are mutually disqualifying, since there
// is no single unambiguous call site rewrite for an ambiguous name.
func TestCollectCandidatesExcludesDuplicateNames(t *testing.T) {
	hName := "h"
	h1 := astutil.NewFunctionDeclaration(ast.Fn{Name: &hName, Body: []ast.Stmt{astutil.Return(nil)}})
	h2 := astutil.NewFunctionDeclaration(ast.Fn{Name: &hName, Body: []ast.Stmt{astutil.Return(nil)}})
	candidates := collectCandidates([]ast.Stmt{h1, h2}, newTestContext(11))
	test.AssertTrue(t, len(candidates) == 0, "a duplicated declaration name must not be a candidate")
}

// A function that reads arguments/this/super in its own body is not
// eligible (criterion (d)).
func TestCollectCandidatesExcludesOwnThisUsage(t *testing.T) {
	hName := "h"
	h := astutil.NewFunctionDeclaration(ast.Fn{
		Name: &hName,
		Body: []ast.Stmt{astutil.Return(exprPtrT(astutil.Member(astutil.This(), "x")))},
	})
	candidates := collectCandidates([]ast.Stmt{h}, newTestContext(12))
	test.AssertTrue(t, len(candidates) == 0, "a function referencing this must not be a candidate")
}
