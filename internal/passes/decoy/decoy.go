// Package decoy builds syntactically valid, never-taken statements shared
// by Dispatcher's prologue and Flatten's scattered guards. It plays the
// same role as whit3rabbit/phpmixer's control_flow_obfuscator.go
// (createBogusCode, createAlwaysTrueCondition) — an always-false or
// always-true wrapper around code that never runs — adapted from that
// file's generic "if(1){...}" PHP wrapping into the exact shapes spec.md
// requires for Dispatcher's fakeReturn arm and Flatten's eight decoy
// templates, since those shapes are fixed requirements, not a free choice
// of wrapper.
package decoy

import (
	"math/rand"

	"github.com/jsobf/jsobf/internal/ast"
	"github.com/jsobf/jsobf/internal/astutil"
	"github.com/jsobf/jsobf/internal/probability"
)

// DispatcherPrologue builds one of the two decoy prologues spec.md §4.F
// names for an embedded dispatch-table function, given the names of its
// three fresh parameters a0 (the opaque call key, always truthy at every
// real call site), a1 and a2 (never supplied by any call site this module
// generates). Both shapes are unreachable by construction: the fakeReturn
// arm tests !a0, and a0 is always truthy; the second shape short-circuits
// `a0 || (a1 = a2())` on a0 before the right side — which would itself
// throw, since a2 is never a function at runtime — is ever evaluated, and
// its `return a1` sits in the else branch, which a truthy a0 skips. This
// resolves spec.md §9's third open question: the arm is unreachable
// precisely because every call site supplies a non-falsy opaque key.
func DispatcherPrologue(rng *rand.Rand, a0, a1, a2 string) ast.Stmt {
	if rng.Intn(2) == 0 {
		// if (!a0) return a1;
		return astutil.If(
			astutil.Unary(ast.UnOpNot, astutil.Ident(a0)),
			astutil.Return(exprPtr(astutil.Ident(a1))),
			nil,
		)
	}
	// if (a0 || (a1 = a2())) { } else return a1;
	cond := astutil.Logical(ast.LogicalOpOr,
		astutil.Ident(a0),
		astutil.Assign(ast.AssignOpAssign, astutil.Ident(a1), astutil.Call(astutil.Ident(a2))),
	)
	body := astutil.Block()
	fakeReturn := astutil.Return(exprPtr(astutil.Ident(a1)))
	return astutil.If(cond, body, &fakeReturn)
}

func exprPtr(e ast.Expr) *ast.Expr { return &e }

// flattenTemplate builds one decoy statement referencing the flattened
// result variable by name. Every template is a syntactically standalone
// statement — no template requires an enclosing loop or switch, since
// Flatten splices these directly into a function body.
type flattenTemplate func(result string) ast.Stmt

var flattenTemplates = []flattenTemplate{
	func(result string) ast.Stmt {
		return astutil.If(astutil.Member(astutil.Ident(result), "rand"),
			astutil.Throw(astutil.New(astutil.Ident("Error"), astutil.Str("integrity"))), nil)
	},
	func(result string) ast.Stmt {
		cond := astutil.Bin(ast.BinOpStrictEq, astutil.Unary(ast.UnOpTypeof, astutil.Ident(result)), astutil.Str("undefined"))
		return astutil.If(cond, astutil.Block(astutil.VarDecl(ast.VarVar, astutil.Declarator("__p_unused", nil))), nil)
	},
	func(result string) ast.Stmt {
		return ast.Stmt{Data: &ast.SWhile{Test: astutil.Member(astutil.Ident(result), "never"), Body: astutil.Block(astutil.Break(""))}}
	},
	func(result string) ast.Stmt {
		test := astutil.Member(astutil.Ident(result), "never")
		return ast.Stmt{Data: &ast.SFor{Test: &test, Body: astutil.Block(astutil.Break(""))}}
	},
	func(result string) ast.Stmt {
		flag := astutil.Member(astutil.Ident(result), "flag")
		return astutil.If(flag, astutil.Block(astutil.AssignStmt(ast.AssignOpAssign, flag, astutil.Bool(false))), nil)
	},
	func(result string) ast.Stmt {
		return ast.Stmt{Data: &ast.SDoWhile{Body: astutil.Block(), Test: astutil.Member(astutil.Ident(result), "never")}}
	},
	func(result string) ast.Stmt {
		return astutil.If(astutil.Unary(ast.UnOpNot, astutil.Ident(result)),
			astutil.Throw(astutil.New(astutil.Ident("TypeError"), astutil.Str("bad state"))), nil)
	},
	func(result string) ast.Stmt {
		disc := astutil.Member(astutil.Ident(result), "tag")
		return ast.Stmt{Data: &ast.SSwitch{Discriminant: disc, Cases: []ast.SwitchCase{{Test: nil, Body: []ast.Stmt{astutil.Break("")}}}}}
	},
}

// FlattenDecoys resolves the eight-template set against a 25% per-item
// Bernoulli trial and shuffles the survivors, per spec.md §4.G. The real
// return is never part of this set — the caller always appends it last.
func FlattenDecoys(rng *rand.Rand, result string) []ast.Stmt {
	ctx := probability.Context{Rand: rng}
	kept := make([]ast.Stmt, 0, len(flattenTemplates))
	for _, tmpl := range flattenTemplates {
		if probability.Decide(probability.Number(0.25), ctx) {
			kept = append(kept, tmpl(result))
		}
	}
	rng.Shuffle(len(kept), func(i, j int) { kept[i], kept[j] = kept[j], kept[i] })
	return kept
}
