// Package flatten implements Component G: replacing a function's own body
// with a thin wrapper around a brand-new top-level "flat" function that
// receives the function's free variables and parameters as two plain
// arrays and threads its return value and any captured-variable writes
// back through a shared result object. It is grounded on spec.md §4.G
// directly, reusing this module's own identifier-usage classification
// (internal/astutil.Usage, ComputeFnUsage) the same way Components E and F
// do, and decoy.FlattenDecoys for the wrapper's scattered unreachable
// guards.
package flatten

import (
	"sort"

	"github.com/jsobf/jsobf/internal/ast"
	"github.com/jsobf/jsobf/internal/astutil"
	"github.com/jsobf/jsobf/internal/logger"
	"github.com/jsobf/jsobf/internal/obferr"
	"github.com/jsobf/jsobf/internal/passes/decoy"
	"github.com/jsobf/jsobf/internal/probability"
	"github.com/jsobf/jsobf/internal/transform"
	"github.com/jsobf/jsobf/internal/walk"
)

const passName = "flatten"

type Pass struct {
	transform.Base
	Spec probability.Spec
}

func New(spec probability.Spec) *Pass {
	return &Pass{Base: transform.Base{PassName: passName, PassPriority: 30}, Spec: spec}
}

func (p *Pass) Apply(prog *ast.Program, ctx *transform.Context) (err error) {
	defer obferr.Recover(&err)
	var extracted []ast.Stmt
	v := &flattenVisitor{ctx: ctx, spec: p.Spec, extracted: &extracted}
	walk.Program(prog, v)
	if len(extracted) > 0 {
		prog.Body = append(extracted, prog.Body...)
	}
	return nil
}

// flattenVisitor processes function bodies in post-order (Leave, not
// Enter): a nested candidate must already be reduced to its own thin
// wrapper, with its own flat function extracted, before the function that
// contains it captures its body for its own extraction. Pre-order would
// capture the nested declaration before it had a chance to shrink, and
// would never revisit the copy sitting in the extracted flat function.
type flattenVisitor struct {
	walk.Base
	ctx       *transform.Context
	spec      probability.Spec
	extracted *[]ast.Stmt
}

func (v *flattenVisitor) LeaveStmt(s *ast.Stmt, ancestors []ast.Node) {
	if fd, ok := s.Data.(*ast.SFunctionDecl); ok {
		v.tryFlatten(&fd.Fn, ancestors)
	}
}

func (v *flattenVisitor) LeaveExpr(e *ast.Expr, ancestors []ast.Node) {
	if fe, ok := e.Data.(*ast.EFunctionExpr); ok {
		if isAccessorValue(ancestors) {
			return
		}
		v.tryFlatten(&fe.Fn, ancestors)
	}
}

// isAccessorValue reports whether e (an EFunctionExpr) is itself the value
// of an object-literal getter or setter property, spec.md §4.G's
// "non-accessor" exclusion. A class method's own Fn.IsMethod flag already
// rules class accessors out in eligible; this covers the EProperty shape
// object-literal getters/setters use instead.
func isAccessorValue(ancestors []ast.Node) bool {
	if len(ancestors) == 0 {
		return false
	}
	parent, ok := ancestors[len(ancestors)-1].(*ast.Expr)
	if !ok {
		return false
	}
	prop, ok := parent.Data.(*ast.EProperty)
	if !ok {
		return false
	}
	return prop.Kind != ast.PropertyValue
}

func (v *flattenVisitor) tryFlatten(fn *ast.Fn, ancestors []ast.Node) {
	name := "<anonymous>"
	if fn.Name != nil {
		name = *fn.Name
	}
	if !eligible(fn) {
		v.ctx.NoteSkip(logger.MsgID_Flatten_SkippedIneligible, passName, "function "+name,
			"generator, method, non-identifier parameter, arguments/this/super usage, or a try/lexical-binding/MetaProperty in its own body")
		return
	}
	usage := astutil.ClassifyFn(fn)
	free := usage.FreeVariables()

	input := make([]string, 0, len(free))
	for freeName := range free {
		if !definedAbove(freeName, ancestors, v.ctx) {
			v.ctx.NoteSkip(logger.MsgID_Flatten_SkippedFreeVariableNotInScope, passName, "function "+name,
				"free variable "+freeName+" is not declared in any enclosing var-context scope")
			return
		}
		input = append(input, freeName)
	}
	sort.Strings(input)

	// output is restricted to free names that are also assigned: a
	// purely function-local variable that happens to be reassigned
	// inside the function's own body is invisible outside it either way,
	// and threading it back through result would try to assign an
	// undeclared name in the caller's scope.
	output := make([]string, 0, len(usage.Assigned))
	for name := range usage.Assigned {
		if free[name] {
			output = append(output, name)
		}
	}
	sort.Strings(output)

	if !probability.Decide(v.spec, probability.Context{Rand: v.ctx.Rand}) {
		return
	}

	flatDecl, wrapperBody := buildFlatten(fn, input, output, v.ctx)
	v.ctx.AnnotateDebug(&flatDecl, passName, "extracted from "+name)
	*v.extracted = append(*v.extracted, flatDecl)
	fn.Body = wrapperBody
}

// eligible implements spec.md §4.G's candidate rule: a pure-identifier
// parameter list, non-generator, non-method (which also rules out class
// accessors), no own arguments/this/super usage, and none of the abort
// conditions (try, a lexical binding, a MetaProperty) anywhere in its own
// body — not counting the body of a nested function, which is judged
// separately as its own candidate.
func eligible(fn *ast.Fn) bool {
	if fn.IsGenerator || fn.IsMethod {
		return false
	}
	for _, p := range fn.Params {
		if _, ok := p.Data.(*ast.EIdentifier); !ok {
			return false
		}
	}
	fnUsage := astutil.ComputeFnUsage(fn)
	if fnUsage.UsesArguments || fnUsage.UsesThis || fnUsage.UsesSuper {
		return false
	}
	scanner := &abortScanner{}
	walk.Stmts(fn.Body, scanner)
	return !scanner.found
}

// abortScanner finds spec.md §4.G's try/lexical-binding/MetaProperty abort
// conditions, stopping at any nested function-like boundary since those
// are judged independently.
type abortScanner struct {
	walk.Base
	found bool
}

func (s *abortScanner) EnterStmt(st *ast.Stmt, _ []ast.Node) walk.Action {
	switch d := st.Data.(type) {
	case *ast.STry:
		s.found = true
		return walk.Exit
	case *ast.SVarDecl:
		if d.Kind.IsLexical() {
			s.found = true
			return walk.Exit
		}
	case *ast.SFunctionDecl:
		return walk.SkipChildren
	}
	return walk.Continue
}

func (s *abortScanner) EnterExpr(e *ast.Expr, _ []ast.Node) walk.Action {
	switch e.Data.(type) {
	case *ast.EMetaProperty:
		s.found = true
		return walk.Exit
	case *ast.EFunctionExpr, *ast.EArrow, *ast.EMethodDef:
		return walk.SkipChildren
	}
	return walk.Continue
}

// definedAbove checks spec.md §4.G's "every name in input must be defined
// in some ancestor var context" requirement, walking ancestors from
// innermost to outermost (ancestors is root-to-parent order). A name
// already declared as a run-wide global (the globalVariables option) is
// accepted without needing an enclosing declaration at all — this is the
// first pass in the module to give that option concrete behavior.
func definedAbove(name string, ancestors []ast.Node, ctx *transform.Context) bool {
	if ctx.GlobalVariables[name] {
		return true
	}
	for i := len(ancestors) - 1; i >= 0; i-- {
		n := ancestors[i]
		if !astutil.IsVarContext(n) {
			continue
		}
		declared := hoistedNames(astutil.VarContextBody(n))
		if fn, ok := astutil.FnOf(n); ok {
			for _, p := range fn.Params {
				collectPatternNames(p, declared)
			}
		}
		if declared[name] {
			return true
		}
	}
	return false
}

// hoistedNames collects every var/function-declaration name directly owned
// by body's own var-context scope: it recurses through ordinary control
// structures but stops at any nested function-like boundary, since names
// declared there belong to a different scope entirely.
func hoistedNames(body []ast.Stmt) map[string]bool {
	names := map[string]bool{}
	var scanStmts func([]ast.Stmt)
	var scanStmt func(ast.Stmt)
	scanStmts = func(list []ast.Stmt) {
		for _, s := range list {
			scanStmt(s)
		}
	}
	scanStmt = func(s ast.Stmt) {
		switch d := s.Data.(type) {
		case *ast.SBlock:
			scanStmts(d.Body)
		case *ast.SIf:
			scanStmt(d.Consequent)
			if d.Alternate != nil {
				scanStmt(*d.Alternate)
			}
		case *ast.SSwitch:
			for _, c := range d.Cases {
				scanStmts(c.Body)
			}
		case *ast.SWhile:
			scanStmt(d.Body)
		case *ast.SDoWhile:
			scanStmt(d.Body)
		case *ast.SFor:
			if d.Init != nil {
				scanStmt(*d.Init)
			}
			scanStmt(d.Body)
		case *ast.SFunctionDecl:
			if d.Fn.Name != nil {
				names[*d.Fn.Name] = true
			}
			// nested function's own scope, not recursed into
		case *ast.SVarDecl:
			for _, decl := range d.Decls {
				collectPatternNames(decl.ID, names)
			}
		case *ast.SLabeled:
			scanStmt(d.Body)
		}
	}
	scanStmts(body)
	return names
}

func collectPatternNames(target ast.Expr, names map[string]bool) {
	switch d := target.Data.(type) {
	case *ast.EIdentifier:
		names[d.Name] = true
	case *ast.EArrayPattern:
		for _, el := range d.Elements {
			if el.Data != nil {
				collectPatternNames(el, names)
			}
		}
		if d.Rest != nil {
			collectPatternNames(*d.Rest, names)
		}
	case *ast.ERest:
		collectPatternNames(d.Target, names)
	}
}

// buildFlatten assembles the extracted top-level flat_X declaration and
// the original candidate's new thin-wrapper body, per spec.md §4.G.
func buildFlatten(fn *ast.Fn, input, output []string, ctx *transform.Context) (ast.Stmt, []ast.Stmt) {
	inputArrayName := ctx.Idents.Next()
	paramArrayName := ctx.Idents.Next()
	resultName := ctx.Idents.Next()
	propName := ctx.Idents.Next()
	returnKeyName := ctx.Idents.Next()

	outKeys := make(map[string]string, len(output))
	for _, name := range output {
		outKeys[name] = ctx.Idents.Next()
	}

	paramNames := make([]string, 0, len(fn.Params))
	for _, p := range fn.Params {
		paramNames = append(paramNames, p.Data.(*ast.EIdentifier).Name)
	}

	rewriter := &returnRewriter{
		resultName:    resultName,
		propName:      propName,
		returnKeyName: returnKeyName,
		outKeys:       outKeys,
		output:        output,
	}
	rewritten := rewriter.rewriteStmts(stripUseStrict(fn.Body))

	flatBody := make([]ast.Stmt, 0, len(rewritten)+3)
	if len(input) > 0 {
		flatBody = append(flatBody, astutil.VarDecl(ast.VarVar, ast.VariableDeclarator{
			ID:   identPatternList(input),
			Init: exprPtr(astutil.Ident(inputArrayName)),
		}))
	}
	if len(paramNames) > 0 {
		flatBody = append(flatBody, astutil.VarDecl(ast.VarVar, ast.VariableDeclarator{
			ID:   identPatternList(paramNames),
			Init: exprPtr(astutil.Ident(paramArrayName)),
		}))
	}
	flatBody = append(flatBody, rewritten...)
	// Unconditional trailing flush: covers a body that falls off the end
	// without ever hitting an explicit return, so the wrapper can always
	// read a result back. Dead code on every path that already returned
	// explicitly above.
	flatBody = append(flatBody, flushAssign(resultName, propName, returnKeyName, astutil.Ident("undefined"), outKeys, output))

	flatNameSuffix := "_flat"
	if fn.Name != nil {
		flatNameSuffix = "_flat_" + *fn.Name
	}
	flatName := ctx.Names.Next() + flatNameSuffix

	flatFn := ast.Fn{
		Name:    strPtr(flatName),
		Params:  []ast.Expr{astutil.Ident(inputArrayName), astutil.Ident(paramArrayName), astutil.Ident(resultName)},
		Body:    flatBody,
		IsAsync: fn.IsAsync,
	}
	flatDecl := astutil.NewFunctionDeclaration(flatFn)

	wrapperBody := buildWrapperBody(flatName, resultName, propName, returnKeyName, outKeys, output, input, paramNames, fn.IsAsync, ctx)
	return flatDecl, wrapperBody
}

func buildWrapperBody(flatName, resultName, propName, returnKeyName string, outKeys map[string]string, output, input, paramNames []string, isAsync bool, ctx *transform.Context) []ast.Stmt {
	body := make([]ast.Stmt, 0, 6+len(output))
	body = append(body, astutil.VarDecl(ast.VarVar, astutil.Declarator(resultName, exprPtr(astutil.Object()))))

	call := astutil.Call(astutil.Ident(flatName),
		astutil.Array(identExprs(input)...),
		astutil.Array(identExprs(paramNames)...),
		astutil.Ident(resultName),
	)
	var invocation ast.Expr = call
	if isAsync {
		invocation = astutil.Await(call)
	}
	body = append(body, astutil.ExprStmt(invocation))

	// reverse order, per spec.md §4.G.
	for i := len(output) - 1; i >= 0; i-- {
		name := output[i]
		src := astutil.Member(astutil.Member(astutil.Ident(resultName), propName), outKeys[name])
		body = append(body, astutil.AssignStmt(ast.AssignOpAssign, astutil.Ident(name), src))
	}

	body = append(body, decoy.FlattenDecoys(ctx.Rand, resultName)...)

	returnExpr := astutil.Member(astutil.Member(astutil.Ident(resultName), propName), returnKeyName)
	guard := astutil.If(
		astutil.Member(astutil.Ident(resultName), propName),
		astutil.Block(astutil.Return(exprPtr(returnExpr))),
		nil,
	)
	body = append(body, guard)
	return body
}

// returnRewriter replaces every ReturnStatement reachable through ordinary
// control-flow structures with an assignment flushing the return value
// (and any output variables) into result.prop, followed by a bare return
// to preserve the original control-flow exit. It recurses through
// block/if/switch/while/do-while/for/labeled bodies but never descends
// into a nested function's own body — a return there belongs to that
// function, not this one, and by construction (try is an abort condition)
// no STry node can appear here.
type returnRewriter struct {
	resultName    string
	propName      string
	returnKeyName string
	outKeys       map[string]string
	output        []string
}

func (r *returnRewriter) rewriteStmts(body []ast.Stmt) []ast.Stmt {
	out := make([]ast.Stmt, len(body))
	for i := range body {
		out[i] = r.rewriteStmt(body[i])
	}
	return out
}

func (r *returnRewriter) rewriteStmt(s ast.Stmt) ast.Stmt {
	switch d := s.Data.(type) {
	case *ast.SReturn:
		return r.rewriteReturn(d)
	case *ast.SBlock:
		return astutil.Block(r.rewriteStmts(d.Body)...)
	case *ast.SIf:
		var alt *ast.Stmt
		if d.Alternate != nil {
			a := r.rewriteStmt(*d.Alternate)
			alt = &a
		}
		return astutil.If(d.Test, r.rewriteStmt(d.Consequent), alt)
	case *ast.SSwitch:
		cases := make([]ast.SwitchCase, len(d.Cases))
		for i, c := range d.Cases {
			cases[i] = ast.SwitchCase{Test: c.Test, Body: r.rewriteStmts(c.Body)}
		}
		return ast.Stmt{Data: &ast.SSwitch{Discriminant: d.Discriminant, Cases: cases}}
	case *ast.SWhile:
		return ast.Stmt{Data: &ast.SWhile{Test: d.Test, Body: r.rewriteStmt(d.Body)}}
	case *ast.SDoWhile:
		return ast.Stmt{Data: &ast.SDoWhile{Body: r.rewriteStmt(d.Body), Test: d.Test}}
	case *ast.SFor:
		return ast.Stmt{Data: &ast.SFor{Init: d.Init, Test: d.Test, Update: d.Update, Body: r.rewriteStmt(d.Body)}}
	case *ast.SLabeled:
		return astutil.Labeled(d.Label, r.rewriteStmt(d.Body))
	default:
		return s
	}
}

func (r *returnRewriter) rewriteReturn(d *ast.SReturn) ast.Stmt {
	value := astutil.Ident("undefined")
	if d.Value != nil {
		value = *d.Value
	}
	assign := flushAssign(r.resultName, r.propName, r.returnKeyName, value, r.outKeys, r.output)
	return astutil.Block(assign, astutil.Return(nil))
}

func flushAssign(resultName, propName, returnKeyName string, returnValue ast.Expr, outKeys map[string]string, output []string) ast.Stmt {
	props := make([]ast.Expr, 0, 1+len(output))
	props = append(props, astutil.Prop(returnKeyName, returnValue))
	for _, name := range output {
		props = append(props, astutil.Prop(outKeys[name], astutil.Ident(name)))
	}
	target := astutil.Member(astutil.Ident(resultName), propName)
	return astutil.AssignStmt(ast.AssignOpAssign, target, astutil.Object(props...))
}

func stripUseStrict(body []ast.Stmt) []ast.Stmt {
	out := make([]ast.Stmt, 0, len(body))
	for _, s := range body {
		if isUseStrictDirective(s) {
			continue
		}
		out = append(out, s)
	}
	return out
}

func isUseStrictDirective(s ast.Stmt) bool {
	expr, ok := s.Data.(*ast.SExpr)
	if !ok {
		return false
	}
	lit, ok := expr.Value.Data.(*ast.ELiteral)
	if !ok || lit.Kind != ast.LitString {
		return false
	}
	return lit.Str == "use strict"
}

func identPatternList(names []string) ast.Expr {
	elems := make([]ast.Expr, len(names))
	for i, n := range names {
		elems[i] = astutil.Ident(n)
	}
	return ast.Expr{Data: &ast.EArrayPattern{Elements: elems}}
}

func identExprs(names []string) []ast.Expr {
	exprs := make([]ast.Expr, len(names))
	for i, n := range names {
		exprs[i] = astutil.Ident(n)
	}
	return exprs
}

func exprPtr(e ast.Expr) *ast.Expr { return &e }

func strPtr(s string) *string { return &s }
