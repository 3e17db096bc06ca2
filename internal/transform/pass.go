package transform

import "github.com/jsobf/jsobf/internal/ast"

// Pass is the interface the pipeline driver (internal/obfuscator) schedules.
// Each concrete pass — CFF, Dispatcher, Flatten, RGF — implements Apply
// as a walk over the program with its own walk.Visitor, which checks each
// node's eligibility and rewrites it in place (CFF, for example, assembles
// a block's dispatch loop inside flattenBody as soon as it reaches that
// block). There are no separate setup or teardown stages. This mirrors the
// enter/match/rewrite/leave shape of whit3rabbit/phpmixer's
// ReplaceTraverser.
type Pass interface {
	Name() string

	// Priority orders passes within one obfuscator run; lower runs first.
	// CFF runs before Dispatcher and Flatten so later passes see the
	// flattened control flow rather than racing it.
	Priority() int

	Apply(prog *ast.Program, ctx *Context) error
}

// Base is embedded by concrete passes to avoid repeating Name/Priority
// boilerplate.
type Base struct {
	PassName     string
	PassPriority int
}

func (b Base) Name() string     { return b.PassName }
func (b Base) Priority() int    { return b.PassPriority }
