// Package config defines the obfuscator's options surface as a plain Go
// struct (named fields, not a dynamic map) rather than a generic
// key/value bag. Every key named in spec.md §6 has a field here.
package config

import "github.com/jsobf/jsobf/internal/probability"

// RGFMode distinguishes the three shapes spec.md §6 allows for the "rgf"
// key: a plain probability.Spec doesn't capture the "all" literal, which
// has its own meaning ("enable in every var context") distinct from
// "true" ("enable at Program only").
type RGFMode uint8

const (
	RGFOff RGFMode = iota
	RGFProgramOnly
	RGFAll
	RGFProbability
)

type RGFOptions struct {
	Mode RGFMode
	// Spec is consulted only when Mode == RGFProbability.
	Spec probability.Spec
}

type LockOptions struct {
	// Countermeasures names a function excluded from RGF extraction,
	// e.g. an integrity-check routine that must keep running inline.
	Countermeasures string
}

// Options is the full set of knobs a caller passes to pkg/api.Transform.
// Every boolean|number|callable key from spec.md §6 is a probability.Spec;
// the resolver in internal/probability decides what to do with it per
// invocation.
type Options struct {
	ControlFlowFlattening probability.Spec
	Dispatcher            probability.Spec
	Flatten               probability.Spec
	RGF                   RGFOptions

	// IdentifierGenerator selects among the five modes in
	// internal/transform, either a single named mode or a weighted list of
	// them (transform.ParseMode parses the string form; obfuscator
	// .resolveIdentMode resolves the full probability.Spec).
	IdentifierGenerator probability.Spec

	GlobalVariables map[string]bool

	Lock LockOptions

	Verbose       bool
	DebugComments bool

	// Seed drives the single master RNG for the whole run, per spec.md's
	// reproducibility requirement. Zero means "pick a random seed" (the
	// caller couldn't have asked for reproducibility in that case, so
	// pkg/api seeds from crypto/rand instead).
	Seed int64
}

// WithoutRGF returns a copy of opts with RGF disabled and GlobalVariables
// extended by extra — used to build the options for RGF's nested pipeline,
// which must not re-extract the same functions again and must see the
// parent's freshly allocated reference-array name as a global so it
// doesn't try to rename it.
func (o Options) WithoutRGF(extraGlobals map[string]bool) Options {
	out := o
	out.RGF = RGFOptions{Mode: RGFOff}
	globals := map[string]bool{}
	for k, v := range o.GlobalVariables {
		globals[k] = v
	}
	for k, v := range extraGlobals {
		globals[k] = v
	}
	out.GlobalVariables = globals
	return out
}
