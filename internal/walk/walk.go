// Package walk implements the traversal framework every pass runs on top
// of: a single recursive descent over the AST that calls a Visitor before
// and after each node, carrying a borrowed ancestor slice rather than a
// parent pointer on the node itself. It is grounded on the enter/leave
// shape of whit3rabbit/phpmixer's custom_traverser.go (EnterNode returning
// a bool, a per-kind switch over children, LeaveNode on the way back out),
// adapted from that tree's *ast.Node single-interface model onto this
// module's Stmt/Expr envelope pair.
package walk

import "github.com/jsobf/jsobf/internal/ast"

// Action is returned by a Visitor to control how the walk proceeds past the
// node it was just given.
type Action int

const (
	// Continue descends into the node's children as usual.
	Continue Action = iota
	// SkipChildren visits the node's Leave callback but never its children.
	SkipChildren
	// Exit stops the entire walk immediately; no further nodes are visited,
	// including the exit (post-order) callback for nodes already entered.
	Exit
)

// Visitor is called once per node on the way down (Enter) and, unless Enter
// returned Exit, again on the way back up (Leave). ancestors
// is valid only for the duration of the call: it is the same backing array
// on every call in one Walk, grown and shrunk in place, so a Visitor that
// wants to keep it past the call must copy it.
type Visitor interface {
	EnterStmt(s *ast.Stmt, ancestors []ast.Node) Action
	LeaveStmt(s *ast.Stmt, ancestors []ast.Node)
	EnterExpr(e *ast.Expr, ancestors []ast.Node) Action
	LeaveExpr(e *ast.Expr, ancestors []ast.Node)
}

// Base gives a Visitor implementation every method as a no-op override, the
// way most passes only care about one or two node kinds and want to embed
// Base rather than write four empty methods.
type Base struct{}

func (Base) EnterStmt(*ast.Stmt, []ast.Node) Action { return Continue }
func (Base) LeaveStmt(*ast.Stmt, []ast.Node)        {}
func (Base) EnterExpr(*ast.Expr, []ast.Node) Action { return Continue }
func (Base) LeaveExpr(*ast.Expr, []ast.Node)        {}

type walker struct {
	visitor   Visitor
	ancestors []ast.Node
	exited    bool
}

// Program walks every statement in prog.Body. It is the entry point every
// pass calls; it's a thin wrapper over Stmts so a pass can also walk an
// arbitrary detached statement list (e.g. RGF re-walking a relocated
// function body) without fabricating a Program around it.
func Program(prog *ast.Program, v Visitor) {
	w := &walker{visitor: v}
	w.stmts(prog.Body)
}

// Stmts walks a free-standing statement list with no enclosing node pushed
// onto the ancestor stack.
func Stmts(body []ast.Stmt, v Visitor) {
	w := &walker{visitor: v}
	w.stmts(body)
}

// Stmt walks a single statement (and its descendants) with no ancestors.
func Stmt(s *ast.Stmt, v Visitor) {
	w := &walker{visitor: v}
	w.stmt(s)
}

// Expr walks a single expression (and its descendants) with no ancestors.
func Expr(e *ast.Expr, v Visitor) {
	w := &walker{visitor: v}
	w.expr(e)
}

func (w *walker) push(n ast.Node) {
	w.ancestors = append(w.ancestors, n)
}

func (w *walker) pop() {
	w.ancestors = w.ancestors[:len(w.ancestors)-1]
}

func (w *walker) stmts(list []ast.Stmt) {
	for i := range list {
		if w.exited {
			return
		}
		w.stmt(&list[i])
	}
}

func (w *walker) stmt(s *ast.Stmt) {
	if w.exited || s.Data == nil {
		return
	}
	action := w.visitor.EnterStmt(s, w.ancestors)
	if action == Exit {
		w.exited = true
		return
	}
	if action != SkipChildren {
		w.push(s)
		w.stmtChildren(s)
		w.pop()
	}
	if w.exited {
		return
	}
	w.visitor.LeaveStmt(s, w.ancestors)
}

func (w *walker) expr(e *ast.Expr) {
	if w.exited || e.Data == nil {
		return
	}
	action := w.visitor.EnterExpr(e, w.ancestors)
	if action == Exit {
		w.exited = true
		return
	}
	if action != SkipChildren {
		w.push(e)
		w.exprChildren(e)
		w.pop()
	}
	if w.exited {
		return
	}
	w.visitor.LeaveExpr(e, w.ancestors)
}

func (w *walker) exprPtr(e *ast.Expr) {
	if e == nil || e.Data == nil {
		return
	}
	w.expr(e)
}

func (w *walker) exprs(list []ast.Expr) {
	for i := range list {
		if w.exited {
			return
		}
		if list[i].Data == nil {
			continue
		}
		w.expr(&list[i])
	}
}

func (w *walker) fn(fn *ast.Fn) {
	w.exprs(fn.Params)
	w.stmts(fn.Body)
}

func (w *walker) stmtChildren(s *ast.Stmt) {
	switch d := s.Data.(type) {
	case *ast.Program:
		w.stmts(d.Body)
	case *ast.SBlock:
		w.stmts(d.Body)
	case *ast.SIf:
		w.expr(&d.Test)
		w.stmt(&d.Consequent)
		if !w.exited && d.Alternate != nil {
			w.stmt(d.Alternate)
		}
	case *ast.SSwitch:
		w.expr(&d.Discriminant)
		for i := range d.Cases {
			if w.exited {
				return
			}
			c := &d.Cases[i]
			if c.Test != nil {
				w.expr(c.Test)
			}
			w.stmts(c.Body)
		}
	case *ast.SWhile:
		w.expr(&d.Test)
		if !w.exited {
			w.stmt(&d.Body)
		}
	case *ast.SDoWhile:
		w.stmt(&d.Body)
		if !w.exited {
			w.expr(&d.Test)
		}
	case *ast.SFor:
		if d.Init != nil {
			w.stmt(d.Init)
		}
		if !w.exited && d.Test != nil {
			w.expr(d.Test)
		}
		if !w.exited && d.Update != nil {
			w.expr(d.Update)
		}
		if !w.exited {
			w.stmt(&d.Body)
		}
	case *ast.SFunctionDecl:
		w.fn(&d.Fn)
	case *ast.SVarDecl:
		for i := range d.Decls {
			if w.exited {
				return
			}
			decl := &d.Decls[i]
			w.expr(&decl.ID)
			if !w.exited && decl.Init != nil {
				w.expr(decl.Init)
			}
		}
	case *ast.SReturn:
		w.exprPtr(d.Value)
	case *ast.SLabeled:
		w.stmt(&d.Body)
	case *ast.SExpr:
		w.expr(&d.Value)
	case *ast.STry:
		w.stmts(d.Block)
		if !w.exited && d.Catch != nil {
			if d.Catch.Param != nil {
				w.expr(d.Catch.Param)
			}
			if !w.exited {
				w.stmts(d.Catch.Body)
			}
		}
		if !w.exited {
			w.stmts(d.Finally)
		}
	case *ast.SThrow:
		w.expr(&d.Value)
	case *ast.SBreak, *ast.SContinue, *ast.SGoto, *ast.SEmpty:
		// leaves
	}
}

func (w *walker) exprChildren(e *ast.Expr) {
	switch d := e.Data.(type) {
	case *ast.EIdentifier, *ast.ELiteral, *ast.EThis, *ast.ESuper, *ast.EMetaProperty:
		// leaves
	case *ast.EUnary:
		w.expr(&d.Argument)
	case *ast.EAwait:
		w.expr(&d.Argument)
	case *ast.EBinary:
		w.expr(&d.Left)
		if !w.exited {
			w.expr(&d.Right)
		}
	case *ast.ELogical:
		w.expr(&d.Left)
		if !w.exited {
			w.expr(&d.Right)
		}
	case *ast.EAssign:
		w.expr(&d.Target)
		if !w.exited {
			w.expr(&d.Value)
		}
	case *ast.ECond:
		w.expr(&d.Test)
		if !w.exited {
			w.expr(&d.Consequent)
		}
		if !w.exited {
			w.expr(&d.Alternate)
		}
	case *ast.ESequence:
		w.exprs(d.Exprs)
	case *ast.EMember:
		w.expr(&d.Object)
		if !w.exited && d.Computed {
			w.expr(&d.Property)
		}
	case *ast.ECall:
		w.expr(&d.Callee)
		w.exprs(d.Args)
	case *ast.ENew:
		w.expr(&d.Callee)
		w.exprs(d.Args)
	case *ast.EArray:
		w.exprs(d.Elements)
	case *ast.EObject:
		w.exprs(d.Properties)
	case *ast.EProperty:
		if d.Computed {
			w.expr(&d.Key)
		}
		if !w.exited {
			w.expr(&d.Value)
		}
	case *ast.ERest:
		w.expr(&d.Target)
	case *ast.ESpread:
		w.expr(&d.Value)
	case *ast.EArrayPattern:
		w.exprs(d.Elements)
		if !w.exited && d.Rest != nil {
			w.expr(d.Rest)
		}
	case *ast.EFunctionExpr:
		w.fn(&d.Fn)
	case *ast.EArrow:
		w.fn(&d.Fn)
	case *ast.EMethodDef:
		w.expr(&d.Key)
		if !w.exited {
			w.fn(&d.Fn)
		}
	}
}
