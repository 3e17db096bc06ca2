// Package obfuscator is Component I: the pipeline driver that owns one
// run's configuration and RNG, builds the ordered list of transform passes
// an options set turns on, and applies them in priority order against a
// single parsed program. It also builds the nested, fully independent
// Obfuscator a Component H (RGF) extraction runs its synthetic program
// through, via Child.
package obfuscator

import (
	"fmt"
	"math/rand"

	"github.com/jsobf/jsobf/internal/ast"
	"github.com/jsobf/jsobf/internal/config"
	"github.com/jsobf/jsobf/internal/logger"
	"github.com/jsobf/jsobf/internal/obferr"
	"github.com/jsobf/jsobf/internal/passes/cff"
	"github.com/jsobf/jsobf/internal/passes/dispatcher"
	"github.com/jsobf/jsobf/internal/passes/flatten"
	"github.com/jsobf/jsobf/internal/passes/rgf"
	"github.com/jsobf/jsobf/internal/probability"
	"github.com/jsobf/jsobf/internal/transform"
)

// GenerateFunc mirrors pkg/api.GenerateFunc's signature structurally — Go
// allows passing a pkg/api.GenerateFunc value wherever this type is wanted
// without either package importing the other, so the pipeline driver and
// the public facade stay decoupled.
type GenerateFunc func(prog *ast.Program) (string, error)

// Obfuscator owns everything one obfuscation run (or one RGF nested
// sub-run) needs beyond the program itself: the resolved options, a single
// seeded RNG, the name-dedup set every identifier-producing pass shares,
// and the ordered pass list built from those options.
type Obfuscator struct {
	Options   config.Options
	Rand      *rand.Rand
	Generated map[string]bool
	Generate  GenerateFunc
	Passes    []transform.Pass
}

// New builds the top-level Obfuscator for one pkg/api.Transform call.
// Seed == 0 means the caller didn't ask for reproducibility; pkg/api is
// responsible for replacing it with a crypto/rand-sourced value before
// construction, since this package has no business deciding that policy.
func New(opts config.Options, generate GenerateFunc) *Obfuscator {
	rng := rand.New(rand.NewSource(opts.Seed))
	o := &Obfuscator{
		Options:   opts,
		Rand:      rng,
		Generated: map[string]bool{},
		Generate:  generate,
	}
	o.Passes = PassesForOptions(opts)
	return o
}

// Child builds the fully independent Obfuscator RGF's nested pipeline runs
// its synthetic program through: a deterministically derived RNG seed (so
// a reproducible parent run still reproduces every nested compile), a
// fresh Generated set (the nested program's identifiers live in their own
// global-ish namespace, not the parent's), and extra carried through
// config.Options.WithoutRGF by the caller already.
func (o *Obfuscator) Child(extra config.Options) *Obfuscator {
	childSeed := o.Rand.Int63()
	rng := rand.New(rand.NewSource(childSeed))
	c := &Obfuscator{
		Options:   extra,
		Rand:      rng,
		Generated: map[string]bool{},
		Generate:  o.Generate,
	}
	c.Passes = PassesForOptions(extra)
	return c
}

// PassesForOptions builds the ordered pass list for one options set,
// including only the passes whose gating option isn't unconditionally off,
// sorted by ascending Priority() (CFF, then Dispatcher, then Flatten, then
// RGF — each later pass sees the rewritten output of every earlier one).
func PassesForOptions(opts config.Options) []transform.Pass {
	var passes []transform.Pass
	if !isAlwaysOff(opts.ControlFlowFlattening) {
		passes = append(passes, cff.New(opts.ControlFlowFlattening))
	}
	if !isAlwaysOff(opts.Dispatcher) {
		passes = append(passes, dispatcher.New(opts.Dispatcher))
	}
	if !isAlwaysOff(opts.Flatten) {
		passes = append(passes, flatten.New(opts.Flatten))
	}
	if opts.RGF.Mode != config.RGFOff {
		passes = append(passes, rgf.New(opts.RGF, opts.Lock.Countermeasures))
	}

	for i := 1; i < len(passes); i++ {
		for j := i; j > 0 && passes[j-1].Priority() > passes[j].Priority(); j-- {
			passes[j-1], passes[j] = passes[j], passes[j-1]
		}
	}
	return passes
}

// isAlwaysOff recognizes exactly the one shape worth skipping a whole pass
// for — a literal false — so a run that never enables a concern doesn't
// pay for walking the tree with a pass that would Decide false at every
// single call site anyway. Anything else (a probability, a weighted list,
// a callable) still needs the pass present, since only the pass itself
// can evaluate it node by node.
func isAlwaysOff(spec probability.Spec) bool {
	return spec.Kind == probability.KindBool && !spec.Bool
}

// Apply runs every pass in this Obfuscator's list against prog, in order,
// building a fresh transform.Context for the run. A pass's own panic
// (raised via obferr.Raise) surfaces here as a returned *obferr
// .InternalError rather than propagating further — this is the one place
// in the module that turns that panic back into an ordinary error.
func (o *Obfuscator) Apply(prog *ast.Program) (err error) {
	defer obferr.Recover(&err)

	log := newRunLog(o.Options.Verbose)
	mode := resolveIdentMode(o.Options.IdentifierGenerator, o.Rand, log)
	reportInvalidGlobalVariables(o.Options.GlobalVariables, log)
	ctx := &transform.Context{
		Rand:             o.Rand,
		Idents:           transform.NewIdentGenerator(mode, o.Rand, o.Generated, o.Options.GlobalVariables),
		Names:            transform.NewNamePool(o.Rand),
		GlobalVariables:  o.Options.GlobalVariables,
		Verbose:          o.Options.Verbose,
		DebugComments:    o.Options.DebugComments,
		Log:              log,
		RunChildPipeline: o.runChildPipeline,
	}

	for _, pass := range o.Passes {
		if err := pass.Apply(prog, ctx); err != nil {
			return err
		}
	}
	log.Done()
	return nil
}

// newRunLog picks the diagnostics sink a run's passes report recoverable
// skips through: a verbose run writes each one to stderr as it happens,
// otherwise they're collected and silently discarded (Done's return value
// is never consulted — per spec.md §7, a skip is never promoted into an
// error the caller sees).
func newRunLog(verbose bool) logger.Log {
	if verbose {
		return logger.NewStderrLog(logger.StderrOptions{LogLevel: logger.LevelInfo})
	}
	return logger.NewDeferLog()
}

// runChildPipeline is RGF's sole window into building and running a nested
// Obfuscator: it disables RGF (so the synthetic program never tries to
// re-extract its own renamed function) and adds extraGlobals — normally
// just the parent's freshly allocated reference-array name — so the child
// run's own renamer never collides with it.
func (o *Obfuscator) runChildPipeline(prog *ast.Program, extraGlobals map[string]bool) (string, error) {
	if o.Generate == nil {
		return "", obferr.NewUserError("rgf requires a GenerateFunc to serialize its extracted functions")
	}
	child := o.Child(o.Options.WithoutRGF(extraGlobals))
	if err := child.Apply(prog); err != nil {
		return "", fmt.Errorf("rgf nested pipeline: %w", err)
	}
	return o.Generate(prog)
}

// resolveIdentMode falls back to transform.ModeMangled whenever spec names
// an identifierGenerator mode this module doesn't recognize — a user-input
// error per spec.md §7's first error kind, reported through log rather
// than raised, since an unrecognized mode name still has a sane default to
// fall back to and the run shouldn't abort over it.
func resolveIdentMode(spec probability.Spec, rng *rand.Rand, log logger.Log) transform.Mode {
	switch spec.Kind {
	case probability.KindString:
		if m, ok := transform.ParseMode(spec.Str); ok {
			return m
		}
		reportUnknownIdentMode(spec.Str, log)
	case probability.KindWeighted:
		if v, ok := probability.Pick(spec.Weighted, rng).(string); ok {
			if m, ok := transform.ParseMode(v); ok {
				return m
			}
			reportUnknownIdentMode(v, log)
		}
	case probability.KindFunc:
		if v, ok := spec.Func(probability.Context{Rand: rng}).(string); ok {
			if m, ok := transform.ParseMode(v); ok {
				return m
			}
			reportUnknownIdentMode(v, log)
		}
	}
	return transform.ModeMangled
}

func reportUnknownIdentMode(name string, log logger.Log) {
	if log.AddMsg == nil {
		return
	}
	log.AddWarning(logger.MsgID_Options_UnknownIdentifierMode, "options", "identifierGenerator",
		fmt.Sprintf("unknown identifier generator mode %q, falling back to mangled", name))
}

// reportInvalidGlobalVariables flags every configured global name that
// isn't a syntactically valid identifier — it can never match a real
// reference in the tree, so IsReserved would silently never protect
// anything for it.
func reportInvalidGlobalVariables(names map[string]bool, log logger.Log) {
	if log.AddMsg == nil {
		return
	}
	for name := range names {
		if !ast.IsIdentifier(name) {
			log.AddWarning(logger.MsgID_Options_InvalidGlobalVariable, "options", "globalVariables",
				fmt.Sprintf("%q is not a valid identifier and will never match a reference", name))
		}
	}
}
