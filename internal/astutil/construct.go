// Package astutil provides the side-effect-free AST helpers every pass
// shares: node constructors, deep cloning, block/var-context access and
// identifier-usage classification — small, composable "build me an
// Expr/Stmt" functions rather than requiring every pass to write out
// struct literals.
package astutil

import "github.com/jsobf/jsobf/internal/ast"

func Ident(name string) ast.Expr {
	return ast.Expr{Data: &ast.EIdentifier{Name: name}}
}

func Num(v float64) ast.Expr {
	return ast.Expr{Data: &ast.ELiteral{Kind: ast.LitNumber, Num: v}}
}

func Str(v string) ast.Expr {
	return ast.Expr{Data: &ast.ELiteral{Kind: ast.LitString, Str: v}}
}

func Bool(v bool) ast.Expr {
	return ast.Expr{Data: &ast.ELiteral{Kind: ast.LitBoolean, Bool: v}}
}

func Null() ast.Expr {
	return ast.Expr{Data: &ast.ELiteral{Kind: ast.LitNull}}
}

func This() ast.Expr { return ast.Expr{Data: &ast.EThis{}} }

func Bin(op ast.BinOp, left, right ast.Expr) ast.Expr {
	return ast.Expr{Data: &ast.EBinary{Op: op, Left: left, Right: right}}
}

func Logical(op ast.LogicalOp, left, right ast.Expr) ast.Expr {
	return ast.Expr{Data: &ast.ELogical{Op: op, Left: left, Right: right}}
}

func Unary(op ast.UnaryOp, arg ast.Expr) ast.Expr {
	return ast.Expr{Data: &ast.EUnary{Op: op, Argument: arg}}
}

func Await(arg ast.Expr) ast.Expr {
	return ast.Expr{Data: &ast.EAwait{Argument: arg}}
}

func Assign(op ast.AssignOp, target, value ast.Expr) ast.Expr {
	return ast.Expr{Data: &ast.EAssign{Op: op, Target: target, Value: value}}
}

func AssignStmt(op ast.AssignOp, target, value ast.Expr) ast.Stmt {
	return ExprStmt(Assign(op, target, value))
}

func Seq(exprs ...ast.Expr) ast.Expr {
	if len(exprs) == 1 {
		return exprs[0]
	}
	return ast.Expr{Data: &ast.ESequence{Exprs: exprs}}
}

func Cond(test, cons, alt ast.Expr) ast.Expr {
	return ast.Expr{Data: &ast.ECond{Test: test, Consequent: cons, Alternate: alt}}
}

func Member(obj ast.Expr, name string) ast.Expr {
	return ast.Expr{Data: &ast.EMember{Object: obj, Property: Ident(name), Computed: false}}
}

func Index(obj, prop ast.Expr) ast.Expr {
	return ast.Expr{Data: &ast.EMember{Object: obj, Property: prop, Computed: true}}
}

func Call(callee ast.Expr, args ...ast.Expr) ast.Expr {
	return ast.Expr{Data: &ast.ECall{Callee: callee, Args: args}}
}

func New(callee ast.Expr, args ...ast.Expr) ast.Expr {
	return ast.Expr{Data: &ast.ENew{Callee: callee, Args: args}}
}

func Array(elems ...ast.Expr) ast.Expr {
	return ast.Expr{Data: &ast.EArray{Elements: elems}}
}

func Spread(v ast.Expr) ast.Expr { return ast.Expr{Data: &ast.ESpread{Value: v}} }

func Object(props ...ast.Expr) ast.Expr {
	return ast.Expr{Data: &ast.EObject{Properties: props}}
}

func Prop(key string, value ast.Expr) ast.Expr {
	return ast.Expr{Data: &ast.EProperty{Key: Ident(key), Value: value, Kind: ast.PropertyValue}}
}

func ComputedProp(key, value ast.Expr) ast.Expr {
	return ast.Expr{Data: &ast.EProperty{Key: key, Value: value, Computed: true, Kind: ast.PropertyValue}}
}

// Statements

func Block(body ...ast.Stmt) ast.Stmt {
	return ast.Stmt{Data: &ast.SBlock{Body: body}}
}

func ExprStmt(v ast.Expr) ast.Stmt {
	return ast.Stmt{Data: &ast.SExpr{Value: v}}
}

func If(test ast.Expr, cons ast.Stmt, alt *ast.Stmt) ast.Stmt {
	return ast.Stmt{Data: &ast.SIf{Test: test, Consequent: cons, Alternate: alt}}
}

func Return(v *ast.Expr) ast.Stmt {
	return ast.Stmt{Data: &ast.SReturn{Value: v}}
}

func Throw(v ast.Expr) ast.Stmt {
	return ast.Stmt{Data: &ast.SThrow{Value: v}}
}

func Break(label string) ast.Stmt { return ast.Stmt{Data: &ast.SBreak{Label: label}} }

func Continue(label string) ast.Stmt { return ast.Stmt{Data: &ast.SContinue{Label: label}} }

func Labeled(label string, body ast.Stmt) ast.Stmt {
	return ast.Stmt{Data: &ast.SLabeled{Label: label, Body: body}}
}

func Goto(label string) ast.Stmt { return ast.Stmt{Data: &ast.SGoto{Label: label}} }

// VarDecl builds a single-kind declaration list, e.g. VarDecl(ast.VarVar,
// VarDeclarator("x", nil)).
func VarDecl(kind ast.VarKind, decls ...ast.VariableDeclarator) ast.Stmt {
	return ast.Stmt{Data: &ast.SVarDecl{Kind: kind, Decls: decls}}
}

func Declarator(name string, init *ast.Expr) ast.VariableDeclarator {
	return ast.VariableDeclarator{ID: Ident(name), Init: init}
}

// NewFunctionDeclaration wraps Fn in the statement kind that introduces a
// var-context-scoped function binding.
func NewFunctionDeclaration(fn ast.Fn) ast.Stmt {
	return ast.Stmt{Data: &ast.SFunctionDecl{Fn: fn}}
}

func NewFunctionExpr(fn ast.Fn) ast.Expr {
	return ast.Expr{Data: &ast.EFunctionExpr{Fn: fn}}
}
