// Package api is the small, stable surface a caller links against —
// everything under internal/ is free to change shape between versions,
// this package is not. It is the one thing cmd/ calls into, exposing a
// single entry point, Transform, since this module never resolves an
// import graph or owns file I/O: it rewrites one already-parsed program
// and hands the rewritten tree back to a caller-supplied generator.
package api

import (
	"crypto/rand"
	"encoding/binary"

	"github.com/jsobf/jsobf/internal/ast"
	"github.com/jsobf/jsobf/internal/config"
	"github.com/jsobf/jsobf/internal/obferr"
	"github.com/jsobf/jsobf/internal/obfuscator"
)

// ParseFunc and GenerateFunc are the external collaborators named in
// spec.md §1/§6: this module never parses or prints JavaScript itself,
// so a caller supplies both halves of the source↔AST boundary. No
// concrete implementation ships here — wiring a real ECMAScript
// parser/printer is explicitly out of scope (see DESIGN.md).
type ParseFunc func(source string) (*ast.Program, error)
type GenerateFunc func(prog *ast.Program) (string, error)

// Transform is the module's sole exported entry point: parse source into
// an AST, run every pass config.Options turns on against it, and hand
// the rewritten AST to generate. A nil parse or generate is a caller
// mistake (config.Options alone can never drive a rewrite), reported as
// an *obferr.UserError rather than a panic.
func Transform(source string, opts config.Options, parse ParseFunc, generate GenerateFunc) (string, error) {
	if parse == nil {
		return "", obferr.NewUserError("transform: parse must not be nil")
	}
	if generate == nil {
		return "", obferr.NewUserError("transform: generate must not be nil")
	}

	if opts.Seed == 0 {
		seed, err := randomSeed()
		if err != nil {
			return "", obferr.NewUserError("transform: failed to seed RNG: %s", err.Error())
		}
		opts.Seed = seed
	}

	prog, err := parse(source)
	if err != nil {
		return "", err
	}

	o := obfuscator.New(opts, obfuscator.GenerateFunc(generate))
	if err := o.Apply(prog); err != nil {
		return "", err
	}

	return generate(prog)
}

// randomSeed picks a nonzero int64 from crypto/rand so a caller who never
// set config.Options.Seed still gets a non-reproducible, but not always
// identical, master RNG — zero itself is reserved to mean "unset" by
// config.Options, so a seed that happens to land on zero is nudged to one.
func randomSeed() (int64, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, err
	}
	seed := int64(binary.LittleEndian.Uint64(buf[:]))
	if seed == 0 {
		seed = 1
	}
	return seed, nil
}
