package ast

// Expr and Stmt are the envelope types every expression and statement node
// is wrapped in: a "Loc + Data" pattern where the envelope carries
// position and annotations, and the interface field carries the
// tagged-variant payload. This keeps the sum type open to new node kinds
// without forcing every call site to juggle a type switch over Node itself.
type (
	ExprData interface{ isExpr() }
	StmtData interface{ isStmt() }

	Expr struct {
		Loc             Loc
		Data            ExprData
		Ann             *Annotations
		LeadingComments []string
	}

	Stmt struct {
		Loc             Loc
		Data            StmtData
		Ann             *Annotations
		LeadingComments []string
	}
)

func (e *Expr) Anns() *Annotations {
	if e.Ann == nil {
		e.Ann = &Annotations{}
	}
	return e.Ann
}

func (s *Stmt) Anns() *Annotations {
	if s.Ann == nil {
		s.Ann = &Annotations{}
	}
	return s.Ann
}

// Program is the root of the tree. It is a block-like node (per isBlock) but
// kept distinct from SBlock because nothing may label, break out of, or
// re-enter it the way an ordinary block can.
type Program struct {
	Body []Stmt
}

func (*Program) isStmt() {}

// BlockLike is implemented by every statement kind whose body is a plain
// statement list reachable via GetBlockBody/IsBlock (see astutil).
type BlockLike interface {
	StmtData
	Stmts() []Stmt
	SetStmts([]Stmt)
}

func (p *Program) Stmts() []Stmt     { return p.Body }
func (p *Program) SetStmts(b []Stmt) { p.Body = b }
