package transform

import (
	"fmt"
	"math/rand"

	"github.com/jsobf/jsobf/internal/ast"
	"github.com/jsobf/jsobf/internal/logger"
)

// Context is the set of shared, mutable resources every pass threads
// through a single obfuscator run: the one seeded RNG (per spec.md's
// single-seedable-RNG design note), the identifier generator and name
// pool built from it, and the set of already-generated names a pass must
// never hand back out. A nested obfuscator built for RGF gets a Context
// built from its own derived RNG and its own empty Generated set — see
// internal/obfuscator.Obfuscator.Child.
type Context struct {
	Rand            *rand.Rand
	Idents          *IdentGenerator
	Names           *NamePool
	GlobalVariables map[string]bool
	Verbose         bool
	DebugComments   bool

	// Log receives every recoverable-skip diagnostic a pass reports
	// (spec.md §7's third error kind) — internal/obfuscator.Obfuscator
	// builds it per run, an stderr-writing logger.NewStderrLog when
	// Verbose is set and a silent logger.NewDeferLog otherwise, so a pass
	// can always call Log.AddInfo/AddWarning unconditionally rather than
	// check Verbose itself at every call site. Nil for any Context a pass
	// constructs on its own, same as RunChildPipeline; NoteSkip guards
	// against that case.
	Log logger.Log

	// RunChildPipeline serializes a synthetic, self-contained Program
	// through a nested obfuscator run — every pass besides RGF itself
	// (RGF is disabled on the child via config.Options.WithoutRGF, so the
	// synthetic program never tries to re-extract its own renamed
	// function), with extraGlobals merged into the run's own global set —
	// and the module's injected generator, returning the resulting source
	// text. internal/obfuscator.Obfuscator wires this in before running
	// the pipeline; it is nil for any Context a pass constructs on its
	// own (as every *_test.go in this module does), so only RGF, the one
	// pass that needs it, reads this field. See DESIGN.md's Component H
	// entry for why this differs from a literal reading of "priority
	// greater than RGF".
	RunChildPipeline func(prog *ast.Program, extraGlobals map[string]bool) (string, error)
}

func NewContext(rng *rand.Rand, mode Mode, globals map[string]bool) *Context {
	generated := map[string]bool{}
	return &Context{
		Rand:            rng,
		Idents:          NewIdentGenerator(mode, rng, generated, globals),
		Names:           NewNamePool(rng),
		GlobalVariables: globals,
	}
}

// IsReserved is a thin convenience forward so passes don't need to import
// internal/ast separately just to check a name against this context's
// configured globals.
func (c *Context) IsReserved(name string) bool {
	return ast.IsReserved(name, c.GlobalVariables)
}

// NoteSkip records one of spec.md §7's "recoverable skips" — a pass
// determined a subtree is ineligible and is leaving it unchanged. Skipping
// itself is never an error (per §7, it must never be propagated as one);
// this only surfaces the reason through c.Log so --verbose has something
// to show. Safe to call on a Context a pass built for its own tests, where
// Log is the zero value and every field is nil.
func (c *Context) NoteSkip(id logger.MsgID, pass string, detail string, reason string) {
	if c.Log.AddMsg == nil {
		return
	}
	c.Log.AddInfo(id, pass, detail, reason)
}

// AnnotateDebug prepends "<pass>: <note>" to s's leading comments when
// DebugComments is enabled, so a --debug-comments run can show which pass
// produced a rewritten node directly in the generated source rather than
// only on stderr.
func (c *Context) AnnotateDebug(s *ast.Stmt, pass string, note string) {
	if !c.DebugComments {
		return
	}
	s.LeadingComments = append(s.LeadingComments, fmt.Sprintf("%s: %s", pass, note))
}
