package astutil

import "github.com/jsobf/jsobf/internal/ast"

// Usage is the result of classifying every identifier occurrence reachable
// from a subtree. It is deliberately flat and scope-blind: Declared collects
// every binding introduced anywhere in the subtree (including inside nested
// functions), Referenced every read, Assigned every write. This is the
// direct-AST-walk analysis SPEC_FULL.md calls for in place of a standing
// symbol table — passes that need "is this function self-contained" ask for
// FreeVariables: a name is only "free" if it's read or written somewhere
// without being declared anywhere in the same subtree. A shadowing inner
// declaration therefore removes the name from the free set, even when an
// outer read of it is a real capture of the enclosing scope.
type Usage struct {
	Declared   map[string]bool
	Referenced map[string]bool
	Assigned   map[string]bool
}

func newUsage() *Usage {
	return &Usage{Declared: map[string]bool{}, Referenced: map[string]bool{}, Assigned: map[string]bool{}}
}

// FreeVariables returns names read or written but never declared within the
// classified subtree — the names a function body depends on from its
// enclosing scope. Flatten and RGF both gate eligibility on this being
// disjoint from "anything the pass can't safely relocate."
func (u *Usage) FreeVariables() map[string]bool {
	free := map[string]bool{}
	for n := range u.Referenced {
		if !u.Declared[n] {
			free[n] = true
		}
	}
	for n := range u.Assigned {
		if !u.Declared[n] {
			free[n] = true
		}
	}
	return free
}

// ClassifyFn classifies a function's parameters and body together, since a
// parameter name is a declaration as far as free-variable analysis of the
// function's own body is concerned.
func ClassifyFn(fn *ast.Fn) *Usage {
	u := newUsage()
	for _, p := range fn.Params {
		declarePattern(u, p)
	}
	if fn.Name != nil {
		u.Declared[*fn.Name] = true
	}
	classifyStmts(u, fn.Body)
	return u
}

func ClassifyStmts(body []ast.Stmt) *Usage {
	u := newUsage()
	classifyStmts(u, body)
	return u
}

func classifyStmts(u *Usage, body []ast.Stmt) {
	for _, s := range body {
		classifyStmt(u, s)
	}
}

func declarePattern(u *Usage, target ast.Expr) {
	switch d := target.Data.(type) {
	case *ast.EIdentifier:
		u.Declared[d.Name] = true
	case *ast.EArrayPattern:
		for _, el := range d.Elements {
			if el.Data != nil {
				declarePattern(u, el)
			}
		}
		if d.Rest != nil {
			declarePattern(u, *d.Rest)
		}
	case *ast.ERest:
		declarePattern(u, d.Target)
	}
}

func classifyStmt(u *Usage, s ast.Stmt) {
	switch d := s.Data.(type) {
	case *ast.Program:
		classifyStmts(u, d.Body)
	case *ast.SBlock:
		classifyStmts(u, d.Body)
	case *ast.SIf:
		classifyExpr(u, d.Test)
		classifyStmt(u, d.Consequent)
		if d.Alternate != nil {
			classifyStmt(u, *d.Alternate)
		}
	case *ast.SSwitch:
		classifyExpr(u, d.Discriminant)
		for _, c := range d.Cases {
			if c.Test != nil {
				classifyExpr(u, *c.Test)
			}
			classifyStmts(u, c.Body)
		}
	case *ast.SWhile:
		classifyExpr(u, d.Test)
		classifyStmt(u, d.Body)
	case *ast.SDoWhile:
		classifyStmt(u, d.Body)
		classifyExpr(u, d.Test)
	case *ast.SFor:
		if d.Init != nil {
			classifyStmt(u, *d.Init)
		}
		if d.Test != nil {
			classifyExpr(u, *d.Test)
		}
		if d.Update != nil {
			classifyExpr(u, *d.Update)
		}
		classifyStmt(u, d.Body)
	case *ast.SFunctionDecl:
		if d.Fn.Name != nil {
			u.Declared[*d.Fn.Name] = true
		}
		for _, p := range d.Fn.Params {
			declarePattern(u, p)
		}
		classifyStmts(u, d.Fn.Body)
	case *ast.SVarDecl:
		for _, decl := range d.Decls {
			declarePattern(u, decl.ID)
			if decl.Init != nil {
				classifyExpr(u, *decl.Init)
			}
		}
	case *ast.SReturn:
		if d.Value != nil {
			classifyExpr(u, *d.Value)
		}
	case *ast.SLabeled:
		classifyStmt(u, d.Body)
	case *ast.SExpr:
		classifyExpr(u, d.Value)
	case *ast.STry:
		classifyStmts(u, d.Block)
		if d.Catch != nil {
			if d.Catch.Param != nil {
				declarePattern(u, *d.Catch.Param)
			}
			classifyStmts(u, d.Catch.Body)
		}
		classifyStmts(u, d.Finally)
	case *ast.SThrow:
		classifyExpr(u, d.Value)
	case *ast.SBreak, *ast.SContinue, *ast.SGoto, *ast.SEmpty:
		// no identifiers
	}
}

func classifyExpr(u *Usage, e ast.Expr) {
	if e.Data == nil {
		return
	}
	switch d := e.Data.(type) {
	case *ast.EIdentifier:
		u.Referenced[d.Name] = true
	case *ast.ELiteral, *ast.EThis, *ast.ESuper, *ast.EMetaProperty:
		// no identifiers
	case *ast.EUnary:
		if d.Op.IsUpdate() {
			markWrite(u, d.Argument)
		}
		classifyExpr(u, d.Argument)
	case *ast.EAwait:
		classifyExpr(u, d.Argument)
	case *ast.EBinary:
		classifyExpr(u, d.Left)
		classifyExpr(u, d.Right)
	case *ast.ELogical:
		classifyExpr(u, d.Left)
		classifyExpr(u, d.Right)
	case *ast.EAssign:
		markWrite(u, d.Target)
		if d.Op.IsUpdate() {
			classifyExpr(u, d.Target)
		}
		classifyExpr(u, d.Value)
	case *ast.ECond:
		classifyExpr(u, d.Test)
		classifyExpr(u, d.Consequent)
		classifyExpr(u, d.Alternate)
	case *ast.ESequence:
		for _, x := range d.Exprs {
			classifyExpr(u, x)
		}
	case *ast.EMember:
		classifyExpr(u, d.Object)
		if d.Computed {
			classifyExpr(u, d.Property)
		}
	case *ast.ECall:
		classifyExpr(u, d.Callee)
		for _, a := range d.Args {
			classifyExpr(u, a)
		}
	case *ast.ENew:
		classifyExpr(u, d.Callee)
		for _, a := range d.Args {
			classifyExpr(u, a)
		}
	case *ast.EArray:
		for _, el := range d.Elements {
			if el.Data != nil {
				classifyExpr(u, el)
			}
		}
	case *ast.EObject:
		for _, p := range d.Properties {
			classifyExpr(u, p)
		}
	case *ast.EProperty:
		if d.Computed {
			classifyExpr(u, d.Key)
		}
		classifyExpr(u, d.Value)
	case *ast.ERest:
		declarePattern(u, d.Target)
	case *ast.ESpread:
		classifyExpr(u, d.Value)
	case *ast.EArrayPattern:
		declarePattern(u, e)
	case *ast.EFunctionExpr:
		if d.Fn.Name != nil {
			u.Declared[*d.Fn.Name] = true
		}
		for _, p := range d.Fn.Params {
			declarePattern(u, p)
		}
		classifyStmts(u, d.Fn.Body)
	case *ast.EArrow:
		for _, p := range d.Fn.Params {
			declarePattern(u, p)
		}
		classifyStmts(u, d.Fn.Body)
	case *ast.EMethodDef:
		for _, p := range d.Fn.Params {
			declarePattern(u, p)
		}
		classifyStmts(u, d.Fn.Body)
	}
}

// markWrite records an assignment target as Assigned if it's a plain
// identifier, or recurses into the pattern's sub-targets for destructuring
// assignment. Member-expression targets (obj.prop = x) aren't identifier
// writes at all: obj is a read, not an assignment.
func markWrite(u *Usage, target ast.Expr) {
	switch d := target.Data.(type) {
	case *ast.EIdentifier:
		u.Assigned[d.Name] = true
	case *ast.EMember:
		classifyExpr(u, target)
	case *ast.EArrayPattern:
		for _, el := range d.Elements {
			if el.Data != nil {
				markWrite(u, el)
			}
		}
		if d.Rest != nil {
			markWrite(u, *d.Rest)
		}
	case *ast.ERest:
		markWrite(u, d.Target)
	}
}
