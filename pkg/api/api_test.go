package api

import (
	"fmt"

	"github.com/jsobf/jsobf/internal/ast"
	"github.com/jsobf/jsobf/internal/astutil"
	"github.com/jsobf/jsobf/internal/config"
	"github.com/jsobf/jsobf/internal/probability"
	"github.com/jsobf/jsobf/internal/test"

	"testing"
)

// parseReturnsConst stands in for a real ECMAScript parser: it ignores
// source entirely and always hands back the same tiny program, since no
// parser ships with this module (see DESIGN.md).
func parseReturnsConst(source string) (*ast.Program, error) {
	return &ast.Program{Body: []ast.Stmt{
		astutil.ExprStmt(astutil.Call(astutil.Ident("f"))),
	}}, nil
}

func countNodesGenerate(prog *ast.Program) (string, error) {
	return fmt.Sprintf("/*%d*/", len(prog.Body)), nil
}

func TestTransformRejectsNilCollaborators(t *testing.T) {
	_, err := Transform("f()", config.Options{}, nil, countNodesGenerate)
	test.AssertTrue(t, err != nil, "a nil parse should be rejected")

	_, err = Transform("f()", config.Options{}, parseReturnsConst, nil)
	test.AssertTrue(t, err != nil, "a nil generate should be rejected")
}

// Every pass disabled: Transform should still round-trip source through
// parse and generate untouched, and should fill in a random seed on its
// own since the caller left Seed at zero.
func TestTransformRoundTripsWithEveryPassOff(t *testing.T) {
	opts := config.Options{
		ControlFlowFlattening: probability.Bool(false),
		Dispatcher:            probability.Bool(false),
		Flatten:               probability.Bool(false),
		RGF:                   config.RGFOptions{Mode: config.RGFOff},
	}
	out, err := Transform("f()", opts, parseReturnsConst, countNodesGenerate)
	test.AssertTrue(t, err == nil, "Transform should not error")
	test.AssertEqual(t, out, "/*1*/")
}

// A parse error must propagate without panicking or calling generate.
func TestTransformPropagatesParseError(t *testing.T) {
	parseErr := fmt.Errorf("boom")
	failingParse := func(source string) (*ast.Program, error) { return nil, parseErr }
	called := false
	generate := func(prog *ast.Program) (string, error) {
		called = true
		return "", nil
	}
	_, err := Transform("garbage", config.Options{}, failingParse, generate)
	test.AssertTrue(t, err == parseErr, "the parse error should be returned unchanged")
	test.AssertTrue(t, !called, "generate must never run after a parse failure")
}

// A seed explicitly supplied by the caller must survive untouched: two
// runs with the same explicit seed and the same disabled-passes options
// must produce identical output.
func TestTransformKeepsExplicitSeed(t *testing.T) {
	opts := config.Options{Seed: 42}
	first, err := Transform("f()", opts, parseReturnsConst, countNodesGenerate)
	test.AssertTrue(t, err == nil, "Transform should not error")
	second, err := Transform("f()", opts, parseReturnsConst, countNodesGenerate)
	test.AssertTrue(t, err == nil, "Transform should not error")
	test.AssertEqual(t, first, second)
}
