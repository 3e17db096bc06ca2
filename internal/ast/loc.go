package ast

// Loc is a byte offset into the source the node was parsed from. The core
// never reads source text itself (parsing is an external collaborator) but
// keeps this field so a real parser/generator pair can round-trip positions
// through passes that don't care about them.
type Loc struct {
	Start int32
}

// Annotations is the inter-pass signaling bag described for every AST node.
// It is a fixed struct rather than a dynamic map: the only annotations any
// pass in this module ever reads or writes are the ones named below, so a
// map would just add an allocation and a string-typo failure mode.
type Annotations struct {
	// DispatcherSkip marks a subtree Dispatcher must not touch.
	DispatcherSkip bool

	// ControlFlowFlattening marks a block CFF has already rewritten, read
	// by SwitchCaseObfuscation (see passes/cff).
	ControlFlowFlattening bool

	// RequiresEval marks a function whose body reads its enclosing lexical
	// scope dynamically; excludes it from RGF and Dispatcher.
	RequiresEval bool

	// Eval is a deferred callback installed on a node to run after the
	// subtree has been re-processed (used by RGF's nested-pipeline hookup).
	Eval func(Node)

	// Transform names the last pass that rewrote this node. Diagnostic only.
	Transform string

	// Hidden marks a declaration inserted synthetically by a pass, excluded
	// from several identifier-classification analyses.
	Hidden bool
}

// Node is satisfied by *Stmt and *Expr so the traversal framework can carry
// a single ancestor list across statement and expression boundaries.
type Node interface {
	Anns() *Annotations
}
