package astutil

import "github.com/jsobf/jsobf/internal/ast"

// IsBlock reports whether s is a statement kind whose body is a plain
// statement list addressable via GetBlockBody/SetBlockBody — currently
// Program and SBlock. IfStatement/WhileStatement/etc. bodies are a single
// Stmt that may or may not itself be a block; callers that need "the body
// as a list regardless of whether braces were written" should wrap with
// EnsureBlock first.
func IsBlock(s ast.Stmt) bool {
	_, ok := s.Data.(ast.BlockLike)
	return ok
}

func GetBlockBody(s ast.Stmt) []ast.Stmt {
	if bl, ok := s.Data.(ast.BlockLike); ok {
		return bl.Stmts()
	}
	return nil
}

func SetBlockBody(s ast.Stmt, body []ast.Stmt) {
	if bl, ok := s.Data.(ast.BlockLike); ok {
		bl.SetStmts(body)
	}
}

// EnsureBlock returns s unchanged if it is already a block, otherwise wraps
// it in a synthetic SBlock containing just s. Passes that need to splice
// extra statements next to a single-statement if/while/for body call this
// first so the splice has somewhere to live.
func EnsureBlock(s ast.Stmt) ast.Stmt {
	if IsBlock(s) {
		return s
	}
	return ast.Stmt{Loc: s.Loc, Data: &ast.SBlock{Body: []ast.Stmt{s}}}
}

// IsVarContext reports whether n is a node that introduces a new var-scope
// boundary: the program root or any function (declaration, expression,
// arrow, or method). Ordinary blocks, if/while/for bodies, switch cases and
// try blocks are not var contexts — a "var" declared inside one hoists up
// to the nearest node for which this returns true.
func IsVarContext(n ast.Node) bool {
	switch v := n.(type) {
	case *ast.Stmt:
		switch v.Data.(type) {
		case *ast.Program, *ast.SFunctionDecl:
			return true
		}
	case *ast.Expr:
		switch v.Data.(type) {
		case *ast.EFunctionExpr, *ast.EArrow, *ast.EMethodDef:
			return true
		}
	}
	return false
}

// GetVarContext walks ancestors from innermost to outermost and returns the
// nearest one for which IsVarContext is true. ancestors is expected in
// root-to-parent order, as produced by the walk package. If no ancestor
// qualifies the outermost entry is returned; walk.Program never pushes the
// Program itself, so for a full-program walk that is a top-level statement.
func GetVarContext(ancestors []ast.Node) ast.Node {
	for i := len(ancestors) - 1; i >= 0; i-- {
		if IsVarContext(ancestors[i]) {
			return ancestors[i]
		}
	}
	if len(ancestors) > 0 {
		return ancestors[0]
	}
	return nil
}

// VarContextBody returns the mutable statement list owned by a var-context
// node: Program.Body, or a Fn's Body reached through whichever node kind
// embeds it.
func VarContextBody(n ast.Node) []ast.Stmt {
	switch v := n.(type) {
	case *ast.Stmt:
		switch d := v.Data.(type) {
		case *ast.Program:
			return d.Body
		case *ast.SFunctionDecl:
			return d.Fn.Body
		}
	case *ast.Expr:
		switch d := v.Data.(type) {
		case *ast.EFunctionExpr:
			return d.Fn.Body
		case *ast.EArrow:
			return d.Fn.Body
		case *ast.EMethodDef:
			return d.Fn.Body
		}
	}
	return nil
}

func SetVarContextBody(n ast.Node, body []ast.Stmt) {
	switch v := n.(type) {
	case *ast.Stmt:
		switch d := v.Data.(type) {
		case *ast.Program:
			d.Body = body
			return
		case *ast.SFunctionDecl:
			d.Fn.Body = body
			return
		}
	case *ast.Expr:
		switch d := v.Data.(type) {
		case *ast.EFunctionExpr:
			d.Fn.Body = body
			return
		case *ast.EArrow:
			d.Fn.Body = body
			return
		case *ast.EMethodDef:
			d.Fn.Body = body
			return
		}
	}
}

// FnOf returns the Fn embedded in n, and ok=false if n isn't a function-like
// node. Shared by Dispatcher/Flatten/RGF eligibility checks, which all need
// to inspect params/body/async/generator flags uniformly regardless of
// whether the candidate is a declaration, expression, arrow, or method.
func FnOf(n ast.Node) (*ast.Fn, bool) {
	switch v := n.(type) {
	case *ast.Stmt:
		if d, ok := v.Data.(*ast.SFunctionDecl); ok {
			return &d.Fn, true
		}
	case *ast.Expr:
		switch d := v.Data.(type) {
		case *ast.EFunctionExpr:
			return &d.Fn, true
		case *ast.EArrow:
			return &d.Fn, true
		case *ast.EMethodDef:
			return &d.Fn, true
		}
	}
	return nil, false
}
