package rgf

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/jsobf/jsobf/internal/ast"
	"github.com/jsobf/jsobf/internal/astutil"
	"github.com/jsobf/jsobf/internal/config"
	"github.com/jsobf/jsobf/internal/test"
	"github.com/jsobf/jsobf/internal/transform"
	"github.com/jsobf/jsobf/internal/walk"
)

// stubGenerate stands in for the module's injected GenerateFunc: it never
// ships a real printer (spec.md leaves parsing/printing to the caller), so
// tests exercising RunChildPipeline fake a deterministic, recognizable
// "source" string rather than actually serializing the synthetic program.
func stubGenerate(prog *ast.Program) (string, error) {
	return fmt.Sprintf("/*synthetic:%d*/", len(prog.Body)), nil
}

func newTestContext(seed int64) *transform.Context {
	ctx := transform.NewContext(rand.New(rand.NewSource(seed)), transform.ModeMangled, nil)
	ctx.RunChildPipeline = func(prog *ast.Program, extraGlobals map[string]bool) (string, error) {
		return stubGenerate(prog)
	}
	return ctx
}

func exprPtrT(e ast.Expr) *ast.Expr { return &e }

// buildCounter constructs var z=0; function p(){ z++; return z; } p(); p();
// scenario 4 from spec.md §8.
func buildCounter() *ast.Program {
	pName := "p"
	p := astutil.NewFunctionDeclaration(ast.Fn{
		Name: &pName,
		Body: []ast.Stmt{
			astutil.ExprStmt(astutil.Unary(ast.UnOpPostInc, astutil.Ident("z"))),
			astutil.Return(exprPtrT(astutil.Ident("z"))),
		},
	})

	body := []ast.Stmt{
		astutil.VarDecl(ast.VarVar, astutil.Declarator("z", exprPtrT(astutil.Num(0)))),
		p,
		astutil.ExprStmt(astutil.Call(astutil.Ident("p"))),
		astutil.ExprStmt(astutil.Call(astutil.Ident("p"))),
	}
	return &ast.Program{Body: body}
}

func containsNewFunctionCall(prog *ast.Program) bool {
	f := &newFunctionFinder{}
	walk.Program(prog, f)
	return f.found
}

type newFunctionFinder struct {
	walk.Base
	found bool
}

func (f *newFunctionFinder) EnterExpr(e *ast.Expr, _ []ast.Node) walk.Action {
	if n, ok := e.Data.(*ast.ENew); ok {
		if id, ok := n.Callee.Data.(*ast.EIdentifier); ok && id.Name == "Function" {
			f.found = true
			return walk.Exit
		}
	}
	return walk.Continue
}

func hasReferenceArrayDecl(body []ast.Stmt) bool {
	for _, s := range body {
		decl, ok := s.Data.(*ast.SVarDecl)
		if !ok {
			continue
		}
		for _, d := range decl.Decls {
			if d.Init == nil {
				continue
			}
			if _, ok := d.Init.Data.(*ast.EArray); ok {
				return true
			}
		}
	}
	return false
}

func containsFnDecl(body []ast.Stmt, name string) bool {
	for _, s := range body {
		if fd, ok := s.Data.(*ast.SFunctionDecl); ok && fd.Fn.Name != nil && *fd.Fn.Name == name {
			return true
		}
	}
	return false
}

// scenario 4 from spec.md §8: RGF in "all" mode on
// var z=0; function p(){ z++; return z; } p(); p(); must extract p (z is
// a real top-level global, reachable from inside a new Function value
// with no closure needed) — the rewritten program must no longer declare
// p directly, must contain a reference-array declaration and a new
// Function( call, and the arithmetic p performs on the shared global z is
// preserved structurally (p's own body, now living inside the nested
// synthetic program, still reads and increments the same name).
func TestApplyExtractsGlobalOnlyFunction(t *testing.T) {
	prog := buildCounter()
	ctx := newTestContext(30)
	p := New(config.RGFOptions{Mode: config.RGFAll}, "")
	err := p.Apply(prog, ctx)
	test.AssertTrue(t, err == nil, "Apply should not error")

	test.AssertTrue(t, !containsFnDecl(prog.Body, "p"), "p must no longer appear as a function declaration")
	test.AssertTrue(t, hasReferenceArrayDecl(prog.Body), "a reference-array declaration should have been installed")
	test.AssertTrue(t, containsNewFunctionCall(prog), "a new Function( call should appear in the rewritten program")
}

// RGF must no-op on arrow functions (spec.md §8's boundary property): an
// arrow function's body is never treated as a context to extract
// candidates from, even when it contains an otherwise-eligible named
// inner function declaration, since no var-context visitor ever looks
// inside an EArrow's own Fn at all.
func TestRGFSkipsArrowBody(t *testing.T) {
	innerName := "inner"
	inner := astutil.NewFunctionDeclaration(ast.Fn{
		Name: &innerName,
		Body: []ast.Stmt{astutil.Return(exprPtrT(astutil.Num(1)))},
	})

	arrowFn := ast.Fn{IsArrow: true, Body: []ast.Stmt{inner, astutil.Return(exprPtrT(astutil.Call(astutil.Ident("inner"))))}}
	arrow := ast.Expr{Data: &ast.EArrow{Fn: arrowFn}}

	holderName := "holder"
	holder := astutil.NewFunctionDeclaration(ast.Fn{
		Name: &holderName,
		// holder itself must stay ineligible for extraction too, so this
		// test isolates the arrow's own boundary behavior rather than
		// holder's: externalMarker is a genuine unresolvable free
		// variable, keeping holder out of the zero-reference queue.
		Body: []ast.Stmt{
			astutil.ExprStmt(astutil.Ident("externalMarker")),
			astutil.Return(exprPtrT(arrow)),
		},
	})
	prog := &ast.Program{Body: []ast.Stmt{holder}}

	ctx := newTestContext(31)
	pass := New(config.RGFOptions{Mode: config.RGFAll}, "")
	err := pass.Apply(prog, ctx)
	test.AssertTrue(t, err == nil, "Apply should not error")

	fd, ok := prog.Body[0].Data.(*ast.SFunctionDecl)
	test.AssertTrue(t, ok, "holder's own declaration must remain")
	ret, ok := fd.Fn.Body[1].Data.(*ast.SReturn)
	test.AssertTrue(t, ok, "holder's body should still end in the original return")
	arrowExpr, ok := ret.Value.Data.(*ast.EArrow)
	test.AssertTrue(t, ok, "the returned value should still be the arrow")
	test.AssertTrue(t, containsFnDecl(arrowExpr.Fn.Body, "inner"), "inner must remain an untouched declaration inside the arrow's own body")
}

// A candidate whose free variables include a genuine outer-scope closure
// dependency (not a global, not a sibling candidate) never reaches the
// zero-reference queue and is left untouched.
func TestResolveZeroReferenceRejectsClosureDependency(t *testing.T) {
	qName := "q"
	q := astutil.NewFunctionDeclaration(ast.Fn{
		Name: &qName,
		Body: []ast.Stmt{astutil.Return(exprPtrT(astutil.Ident("localOnly")))},
	})
	// outer itself must stay ineligible for extraction too (it would
	// otherwise have zero free variables of its own — every name besides
	// trulyExternal is declared inside it — and this test wants to isolate
	// q's rejection, not outer's).
	outerBody := []ast.Stmt{
		astutil.VarDecl(ast.VarVar, astutil.Declarator("localOnly", exprPtrT(astutil.Num(5)))),
		q,
		astutil.ExprStmt(astutil.Ident("trulyExternal")),
		astutil.Return(exprPtrT(astutil.Call(astutil.Ident("q")))),
	}
	outerName := "outer"
	outer := astutil.NewFunctionDeclaration(ast.Fn{Name: &outerName, Body: outerBody})
	prog := &ast.Program{Body: []ast.Stmt{outer}}

	ctx := newTestContext(32)
	pass := New(config.RGFOptions{Mode: config.RGFAll}, "")
	err := pass.Apply(prog, ctx)
	test.AssertTrue(t, err == nil, "Apply should not error")

	fd, ok := prog.Body[0].Data.(*ast.SFunctionDecl)
	test.AssertTrue(t, ok, "outer's own declaration must remain")
	test.AssertTrue(t, containsFnDecl(fd.Fn.Body, "q"), "q must remain an ordinary declaration, never extracted")
}
