package astutil

import "github.com/jsobf/jsobf/internal/ast"

// CloneExpr and CloneStmt deep-copy a subtree into fresh slice backing so a
// pass can duplicate code (Dispatcher's call-site rewriting, RGF's body
// relocation) without two nodes in the tree ever sharing a slice or a
// pointer. Annotations are copied by value: a clone starts with the same
// flags as its source but never aliases the source's *Annotations, so
// setting DispatcherSkip on the clone can never leak back onto the original.
func CloneExpr(e ast.Expr) ast.Expr {
	out := ast.Expr{Loc: e.Loc, LeadingComments: cloneComments(e.LeadingComments)}
	out.Ann = cloneAnn(e.Ann)
	if e.Data != nil {
		out.Data = cloneExprData(e.Data)
	}
	return out
}

func CloneStmt(s ast.Stmt) ast.Stmt {
	out := ast.Stmt{Loc: s.Loc, LeadingComments: cloneComments(s.LeadingComments)}
	out.Ann = cloneAnn(s.Ann)
	if s.Data != nil {
		out.Data = cloneStmtData(s.Data)
	}
	return out
}

func CloneExprs(in []ast.Expr) []ast.Expr {
	if in == nil {
		return nil
	}
	out := make([]ast.Expr, len(in))
	for i, e := range in {
		out[i] = CloneExpr(e)
	}
	return out
}

func CloneStmts(in []ast.Stmt) []ast.Stmt {
	if in == nil {
		return nil
	}
	out := make([]ast.Stmt, len(in))
	for i, s := range in {
		out[i] = CloneStmt(s)
	}
	return out
}

func cloneAnn(a *ast.Annotations) *ast.Annotations {
	if a == nil {
		return nil
	}
	copy := *a
	return &copy
}

func cloneComments(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func cloneExprPtr(e *ast.Expr) *ast.Expr {
	if e == nil {
		return nil
	}
	out := CloneExpr(*e)
	return &out
}

func cloneFn(fn ast.Fn) ast.Fn {
	out := fn
	out.Params = CloneExprs(fn.Params)
	out.Body = CloneStmts(fn.Body)
	if fn.Name != nil {
		name := *fn.Name
		out.Name = &name
	}
	return out
}

func cloneExprData(d ast.ExprData) ast.ExprData {
	switch n := d.(type) {
	case *ast.EIdentifier:
		c := *n
		return &c
	case *ast.ELiteral:
		c := *n
		return &c
	case *ast.EThis:
		return &ast.EThis{}
	case *ast.ESuper:
		return &ast.ESuper{}
	case *ast.EMetaProperty:
		c := *n
		return &c
	case *ast.EUnary:
		return &ast.EUnary{Op: n.Op, Argument: CloneExpr(n.Argument)}
	case *ast.EBinary:
		return &ast.EBinary{Op: n.Op, Left: CloneExpr(n.Left), Right: CloneExpr(n.Right)}
	case *ast.ELogical:
		return &ast.ELogical{Op: n.Op, Left: CloneExpr(n.Left), Right: CloneExpr(n.Right)}
	case *ast.EAssign:
		return &ast.EAssign{Op: n.Op, Target: CloneExpr(n.Target), Value: CloneExpr(n.Value)}
	case *ast.ECond:
		return &ast.ECond{Test: CloneExpr(n.Test), Consequent: CloneExpr(n.Consequent), Alternate: CloneExpr(n.Alternate)}
	case *ast.ESequence:
		return &ast.ESequence{Exprs: CloneExprs(n.Exprs)}
	case *ast.EMember:
		return &ast.EMember{Object: CloneExpr(n.Object), Property: CloneExpr(n.Property), Computed: n.Computed}
	case *ast.ECall:
		return &ast.ECall{Callee: CloneExpr(n.Callee), Args: CloneExprs(n.Args), Optional: n.Optional}
	case *ast.ENew:
		return &ast.ENew{Callee: CloneExpr(n.Callee), Args: CloneExprs(n.Args)}
	case *ast.EArray:
		return &ast.EArray{Elements: CloneExprs(n.Elements)}
	case *ast.EObject:
		return &ast.EObject{Properties: CloneExprs(n.Properties)}
	case *ast.EProperty:
		return &ast.EProperty{Key: CloneExpr(n.Key), Value: CloneExpr(n.Value), Computed: n.Computed, Shorthand: n.Shorthand, Kind: n.Kind}
	case *ast.ERest:
		return &ast.ERest{Target: CloneExpr(n.Target)}
	case *ast.ESpread:
		return &ast.ESpread{Value: CloneExpr(n.Value)}
	case *ast.EArrayPattern:
		return &ast.EArrayPattern{Elements: CloneExprs(n.Elements), Rest: cloneExprPtr(n.Rest)}
	case *ast.EFunctionExpr:
		return &ast.EFunctionExpr{Fn: cloneFn(n.Fn)}
	case *ast.EArrow:
		return &ast.EArrow{Fn: cloneFn(n.Fn)}
	case *ast.EMethodDef:
		return &ast.EMethodDef{Key: CloneExpr(n.Key), Fn: cloneFn(n.Fn), Kind: n.Kind, Static: n.Static}
	default:
		panic("astutil: unhandled ExprData kind in CloneExpr")
	}
}

func cloneStmtData(d ast.StmtData) ast.StmtData {
	switch n := d.(type) {
	case *ast.Program:
		return &ast.Program{Body: CloneStmts(n.Body)}
	case *ast.SBlock:
		return &ast.SBlock{Body: CloneStmts(n.Body)}
	case *ast.SIf:
		return &ast.SIf{Test: CloneExpr(n.Test), Consequent: CloneStmt(n.Consequent), Alternate: cloneStmtPtr(n.Alternate)}
	case *ast.SSwitch:
		cases := make([]ast.SwitchCase, len(n.Cases))
		for i, c := range n.Cases {
			cases[i] = ast.SwitchCase{Test: cloneExprPtr(c.Test), Body: CloneStmts(c.Body)}
		}
		return &ast.SSwitch{Discriminant: CloneExpr(n.Discriminant), Cases: cases}
	case *ast.SWhile:
		return &ast.SWhile{Test: CloneExpr(n.Test), Body: CloneStmt(n.Body)}
	case *ast.SDoWhile:
		return &ast.SDoWhile{Body: CloneStmt(n.Body), Test: CloneExpr(n.Test)}
	case *ast.SFor:
		return &ast.SFor{Init: cloneStmtPtr(n.Init), Test: cloneExprPtr(n.Test), Update: cloneExprPtr(n.Update), Body: CloneStmt(n.Body)}
	case *ast.SFunctionDecl:
		return &ast.SFunctionDecl{Fn: cloneFn(n.Fn)}
	case *ast.SVarDecl:
		decls := make([]ast.VariableDeclarator, len(n.Decls))
		for i, d := range n.Decls {
			decls[i] = ast.VariableDeclarator{ID: CloneExpr(d.ID), Init: cloneExprPtr(d.Init)}
		}
		return &ast.SVarDecl{Kind: n.Kind, Decls: decls}
	case *ast.SReturn:
		return &ast.SReturn{Value: cloneExprPtr(n.Value)}
	case *ast.SLabeled:
		return &ast.SLabeled{Label: n.Label, Body: CloneStmt(n.Body)}
	case *ast.SBreak:
		c := *n
		return &c
	case *ast.SContinue:
		c := *n
		return &c
	case *ast.SExpr:
		return &ast.SExpr{Value: CloneExpr(n.Value)}
	case *ast.STry:
		var catch *ast.CatchClause
		if n.Catch != nil {
			catch = &ast.CatchClause{Param: cloneExprPtr(n.Catch.Param), Body: CloneStmts(n.Catch.Body)}
		}
		return &ast.STry{Block: CloneStmts(n.Block), Catch: catch, Finally: CloneStmts(n.Finally)}
	case *ast.SThrow:
		return &ast.SThrow{Value: CloneExpr(n.Value)}
	case *ast.SGoto:
		c := *n
		return &c
	case *ast.SEmpty:
		return &ast.SEmpty{}
	default:
		panic("astutil: unhandled StmtData kind in CloneStmt")
	}
}

func cloneStmtPtr(s *ast.Stmt) *ast.Stmt {
	if s == nil {
		return nil
	}
	out := CloneStmt(*s)
	return &out
}
