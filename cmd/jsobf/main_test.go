package main

import (
	"testing"

	"github.com/jsobf/jsobf/internal/ast"
	"github.com/jsobf/jsobf/internal/astutil"
	"github.com/jsobf/jsobf/internal/test"
)

func TestRunReportsMissingCollaborators(t *testing.T) {
	savedParse, savedGenerate := parse, generate
	parse, generate = nil, nil
	defer func() { parse, generate = savedParse, savedGenerate }()

	code := Run([]string{})
	test.AssertEqual(t, code, 1)
}

func TestRunRejectsUnknownFlagBeforeTouchingStdin(t *testing.T) {
	savedParse, savedGenerate := parse, generate
	parse = func(source string) (*ast.Program, error) {
		return &ast.Program{Body: []ast.Stmt{astutil.ExprStmt(astutil.Ident("x"))}}, nil
	}
	generate = func(prog *ast.Program) (string, error) { return "x", nil }
	defer func() { parse, generate = savedParse, savedGenerate }()

	code := Run([]string{"--not-a-flag"})
	test.AssertEqual(t, code, 1)
}
