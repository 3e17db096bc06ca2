package astutil

import "github.com/jsobf/jsobf/internal/ast"

// ComputeFnUsage reports whether fn's own body reads arguments, this, or
// super — the syntactic gate Dispatcher, Flatten and RGF all apply before
// treating a function as relocatable. Scanning stops at any nested
// non-arrow function-like boundary (FunctionDeclaration, FunctionExpression,
// MethodDefinition): those introduce their own this/arguments/super
// bindings, so a reference inside one says nothing about fn's own. Arrow
// functions are the one exception the ECMAScript grammar carves out: they
// have no this/arguments/super of their own, so scanning recurses straight
// through them.
func ComputeFnUsage(fn *ast.Fn) ast.FnUsage {
	var u ast.FnUsage
	scanFnUsageStmts(fn.Body, &u)
	return u
}

func scanFnUsageStmts(body []ast.Stmt, u *ast.FnUsage) {
	for _, s := range body {
		scanFnUsageStmt(s, u)
	}
}

func scanFnUsageStmt(s ast.Stmt, u *ast.FnUsage) {
	switch d := s.Data.(type) {
	case *ast.Program:
		scanFnUsageStmts(d.Body, u)
	case *ast.SBlock:
		scanFnUsageStmts(d.Body, u)
	case *ast.SIf:
		scanFnUsageExpr(d.Test, u)
		scanFnUsageStmt(d.Consequent, u)
		if d.Alternate != nil {
			scanFnUsageStmt(*d.Alternate, u)
		}
	case *ast.SSwitch:
		scanFnUsageExpr(d.Discriminant, u)
		for _, c := range d.Cases {
			if c.Test != nil {
				scanFnUsageExpr(*c.Test, u)
			}
			scanFnUsageStmts(c.Body, u)
		}
	case *ast.SWhile:
		scanFnUsageExpr(d.Test, u)
		scanFnUsageStmt(d.Body, u)
	case *ast.SDoWhile:
		scanFnUsageStmt(d.Body, u)
		scanFnUsageExpr(d.Test, u)
	case *ast.SFor:
		if d.Init != nil {
			scanFnUsageStmt(*d.Init, u)
		}
		if d.Test != nil {
			scanFnUsageExpr(*d.Test, u)
		}
		if d.Update != nil {
			scanFnUsageExpr(*d.Update, u)
		}
		scanFnUsageStmt(d.Body, u)
	case *ast.SFunctionDecl:
		// own this/arguments/super binding; don't recurse
	case *ast.SVarDecl:
		for _, decl := range d.Decls {
			if decl.Init != nil {
				scanFnUsageExpr(*decl.Init, u)
			}
		}
	case *ast.SReturn:
		if d.Value != nil {
			scanFnUsageExpr(*d.Value, u)
		}
	case *ast.SLabeled:
		scanFnUsageStmt(d.Body, u)
	case *ast.SExpr:
		scanFnUsageExpr(d.Value, u)
	case *ast.STry:
		scanFnUsageStmts(d.Block, u)
		if d.Catch != nil {
			scanFnUsageStmts(d.Catch.Body, u)
		}
		scanFnUsageStmts(d.Finally, u)
	case *ast.SThrow:
		scanFnUsageExpr(d.Value, u)
	}
}

func scanFnUsageExpr(e ast.Expr, u *ast.FnUsage) {
	if e.Data == nil {
		return
	}
	switch d := e.Data.(type) {
	case *ast.EIdentifier:
		if d.Name == "arguments" {
			u.UsesArguments = true
		}
	case *ast.EThis:
		u.UsesThis = true
	case *ast.ESuper:
		u.UsesSuper = true
	case *ast.EUnary:
		scanFnUsageExpr(d.Argument, u)
	case *ast.EAwait:
		scanFnUsageExpr(d.Argument, u)
	case *ast.EBinary:
		scanFnUsageExpr(d.Left, u)
		scanFnUsageExpr(d.Right, u)
	case *ast.ELogical:
		scanFnUsageExpr(d.Left, u)
		scanFnUsageExpr(d.Right, u)
	case *ast.EAssign:
		scanFnUsageExpr(d.Target, u)
		scanFnUsageExpr(d.Value, u)
	case *ast.ECond:
		scanFnUsageExpr(d.Test, u)
		scanFnUsageExpr(d.Consequent, u)
		scanFnUsageExpr(d.Alternate, u)
	case *ast.ESequence:
		for _, x := range d.Exprs {
			scanFnUsageExpr(x, u)
		}
	case *ast.EMember:
		scanFnUsageExpr(d.Object, u)
		if d.Computed {
			scanFnUsageExpr(d.Property, u)
		}
	case *ast.ECall:
		scanFnUsageExpr(d.Callee, u)
		for _, a := range d.Args {
			scanFnUsageExpr(a, u)
		}
	case *ast.ENew:
		scanFnUsageExpr(d.Callee, u)
		for _, a := range d.Args {
			scanFnUsageExpr(a, u)
		}
	case *ast.EArray:
		for _, el := range d.Elements {
			if el.Data != nil {
				scanFnUsageExpr(el, u)
			}
		}
	case *ast.EObject:
		for _, p := range d.Properties {
			scanFnUsageExpr(p, u)
		}
	case *ast.EProperty:
		if d.Computed {
			scanFnUsageExpr(d.Key, u)
		}
		scanFnUsageExpr(d.Value, u)
	case *ast.ESpread:
		scanFnUsageExpr(d.Value, u)
	case *ast.EArrow:
		scanFnUsageStmts(d.Fn.Body, u)
	case *ast.EFunctionExpr, *ast.EMethodDef:
		// own this/arguments/super binding; don't recurse
	}
}
