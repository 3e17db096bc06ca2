// Package rgf implements Component H: extracting eligible inner functions
// out of their enclosing var context entirely, into runtime-compiled
// standalone values created via new Function and indexed by a shared
// reference array, with call sites rewritten to go through it. It is
// grounded on spec.md §4.H directly, reusing this module's eligibility
// idiom (internal/astutil.ComputeFnUsage) shared with Components F and G,
// and depends on internal/transform.Context.RunChildPipeline — wired in by
// internal/obfuscator.Obfuscator — to serialize each extracted function's
// isolated nested program.
package rgf

import (
	"strconv"

	"github.com/jsobf/jsobf/internal/ast"
	"github.com/jsobf/jsobf/internal/astutil"
	"github.com/jsobf/jsobf/internal/config"
	"github.com/jsobf/jsobf/internal/logger"
	"github.com/jsobf/jsobf/internal/obferr"
	"github.com/jsobf/jsobf/internal/probability"
	"github.com/jsobf/jsobf/internal/transform"
	"github.com/jsobf/jsobf/internal/walk"
)

const passName = "rgf"

type Pass struct {
	transform.Base
	Mode            config.RGFMode
	Spec            probability.Spec
	Countermeasures string
}

func New(opts config.RGFOptions, countermeasures string) *Pass {
	return &Pass{
		Base:            transform.Base{PassName: passName, PassPriority: 40},
		Mode:            opts.Mode,
		Spec:            opts.Spec,
		Countermeasures: countermeasures,
	}
}

func (p *Pass) Apply(prog *ast.Program, ctx *transform.Context) (err error) {
	defer obferr.Recover(&err)
	if p.Mode == config.RGFOff {
		return nil
	}

	// A name declared at Program's own top level is a real runtime global
	// (a plain script-level var becomes a property of the global object),
	// so it is reachable from inside a function built by new Function even
	// though new Function closes over nothing lexically. That, not any
	// ancestor-chain walk, is what "defined above" means for this pass —
	// see DESIGN.md's Component H entry.
	globalNames := hoistedNames(prog.Body)
	for name := range ctx.GlobalVariables {
		globalNames[name] = true
	}

	if p.shouldProcess(ctx, true) {
		prog.Body = rewriteBody(prog.Body, ctx, p, globalNames)
	}

	v := &contextVisitor{ctx: ctx, pass: p, globalNames: globalNames}
	walk.Program(prog, v)
	return nil
}

func (p *Pass) shouldProcess(ctx *transform.Context, isProgram bool) bool {
	switch p.Mode {
	case config.RGFProgramOnly:
		return isProgram
	case config.RGFAll:
		return true
	case config.RGFProbability:
		return probability.Decide(p.Spec, probability.Context{Rand: ctx.Rand})
	default:
		return false
	}
}

// contextVisitor finds every function-like, non-arrow var context (a
// FunctionDeclaration, FunctionExpression or MethodDefinition's own body)
// and offers it to rewriteBody. Arrow functions are never visited as a
// context here at all — spec.md §8's boundary property ("RGF must no-op on
// arrow functions") falls straight out of that omission, since an arrow's
// body is simply never looked at as a site to extract candidates from or
// into.
type contextVisitor struct {
	walk.Base
	ctx         *transform.Context
	pass        *Pass
	globalNames map[string]bool
}

func (v *contextVisitor) EnterStmt(s *ast.Stmt, _ []ast.Node) walk.Action {
	if d, ok := s.Data.(*ast.SFunctionDecl); ok {
		if v.pass.shouldProcess(v.ctx, false) {
			d.Fn.Body = rewriteBody(d.Fn.Body, v.ctx, v.pass, v.globalNames)
		}
	}
	return walk.Continue
}

func (v *contextVisitor) EnterExpr(e *ast.Expr, _ []ast.Node) walk.Action {
	switch d := e.Data.(type) {
	case *ast.EFunctionExpr:
		if v.pass.shouldProcess(v.ctx, false) {
			d.Fn.Body = rewriteBody(d.Fn.Body, v.ctx, v.pass, v.globalNames)
		}
	case *ast.EMethodDef:
		if v.pass.shouldProcess(v.ctx, false) {
			d.Fn.Body = rewriteBody(d.Fn.Body, v.ctx, v.pass, v.globalNames)
		}
	}
	return walk.Continue
}

type candidate struct {
	name string
	decl *ast.SFunctionDecl
}

// collectCandidates implements spec.md §4.H's criteria: a named, non-
// generator, non-method (which rules out class accessors) function
// declaration, not the configured countermeasures routine, and not bound
// to this/super.
func collectCandidates(body []ast.Stmt, countermeasures string, ctx *transform.Context) []*candidate {
	var out []*candidate
	for i := range body {
		fd, ok := body[i].Data.(*ast.SFunctionDecl)
		if !ok || fd.Fn.Name == nil || fd.Fn.IsGenerator || fd.Fn.IsMethod {
			continue
		}
		if countermeasures != "" && *fd.Fn.Name == countermeasures {
			ctx.NoteSkip(logger.MsgID_RGF_SkippedCountermeasures, passName, "function "+*fd.Fn.Name,
				"matches the configured countermeasures function name")
			continue
		}
		fnUsage := astutil.ComputeFnUsage(&fd.Fn)
		if fnUsage.UsesThis || fnUsage.UsesSuper {
			ctx.NoteSkip(logger.MsgID_RGF_SkippedBound, passName, "function "+*fd.Fn.Name,
				"uses this or super, which new Function cannot preserve")
			continue
		}
		out = append(out, &candidate{name: *fd.Fn.Name, decl: fd})
	}
	return out
}

// resolveZeroReference runs spec.md §4.H's fixed-point name-resolution
// pass. Each candidate's initial reference set is its free variables minus
// any name already reachable from the global object (globalNames) — those
// resolve correctly at runtime inside a new Function value with no help
// from this pass, so they were never really a problem to begin with. What
// remains in a candidate's reference set after that filtering can only be
// either a genuine outer-scope closure dependency (fatal to extraction) or
// the name of a sibling candidate in the same context, which this loop
// resolves by repeatedly retiring zero-reference candidates and erasing
// their names from everyone else's set, until a full pass makes no further
// progress. The 2*n bound is a generous safety cap on a process that
// provably converges in at most n rounds.
func resolveZeroReference(candidates []*candidate, globalNames map[string]bool) []*candidate {
	n := len(candidates)
	refs := make([]map[string]bool, n)
	for i, c := range candidates {
		free := astutil.ClassifyFn(&c.decl.Fn).FreeVariables()
		r := map[string]bool{}
		for name := range free {
			if !globalNames[name] {
				r[name] = true
			}
		}
		refs[i] = r
	}

	resolved := make([]bool, n)
	maxIter := 2 * n
	for iter := 0; iter < maxIter; iter++ {
		progress := false
		for i := 0; i < n; i++ {
			if resolved[i] || len(refs[i]) != 0 {
				continue
			}
			resolved[i] = true
			progress = true
			for j := 0; j < n; j++ {
				delete(refs[j], candidates[i].name)
			}
		}
		if !progress {
			break
		}
	}

	out := make([]*candidate, 0, n)
	for i, c := range candidates {
		if resolved[i] {
			out = append(out, c)
		}
	}
	return out
}

type resolvedCandidate struct {
	index   int
	rName   string
	sigName string
}

func removeCandidateDecls(body []ast.Stmt, byName map[string]*resolvedCandidate) []ast.Stmt {
	out := make([]ast.Stmt, 0, len(body))
	for i := range body {
		if fd, ok := body[i].Data.(*ast.SFunctionDecl); ok && fd.Fn.Name != nil {
			if _, isCandidate := byName[*fd.Fn.Name]; isCandidate {
				continue
			}
		}
		out = append(out, body[i])
	}
	return out
}

// rewriteBody implements the rest of spec.md §4.H against one context's
// body: allocating the context's single reference array R, compiling each
// resolved candidate into a standalone new Function value through the
// injected nested pipeline, installing it into R, and rewriting every
// remaining reference to a resolved candidate's name to go through R
// instead.
func rewriteBody(body []ast.Stmt, ctx *transform.Context, pass *Pass, globalNames map[string]bool) []ast.Stmt {
	candidates := collectCandidates(body, pass.Countermeasures, ctx)
	if len(candidates) == 0 {
		return body
	}
	resolved := resolveZeroReference(candidates, globalNames)
	if len(resolved) == 0 {
		return body
	}

	rName := ctx.Idents.Next()
	sigName := ctx.Idents.Next()

	byName := map[string]*resolvedCandidate{}
	for i, c := range resolved {
		byName[c.name] = &resolvedCandidate{index: i, rName: rName, sigName: sigName}
	}

	installs := make([]ast.Stmt, 0, len(resolved)+1)
	installs = append(installs, astutil.VarDecl(ast.VarVar, astutil.Declarator(rName, exprPtr(astutil.Array()))))

	for i, c := range resolved {
		renamedName := ctx.Idents.Next()
		fnCopy := c.decl.Fn
		fnCopy.Name = strPtr(renamedName)
		walk.Stmts(fnCopy.Body, &callSiteVisitor{byName: byName})

		synthetic := buildSyntheticProgram(&fnCopy, renamedName)
		source, err := ctx.RunChildPipeline(synthetic, map[string]bool{rName: true})
		if err != nil {
			obferr.Raise(passName, "nested pipeline for %s: %v", c.name, err)
		}
		install := buildInstallStmt(rName, i, sigName, source)
		ctx.AnnotateDebug(&install, passName, "extracted "+c.name+" to "+rName+"["+strconv.Itoa(i)+"]")
		installs = append(installs, install)
	}

	rest := removeCandidateDecls(body, byName)
	newBody := append(installs, rest...)

	walk.Stmts(newBody, &callSiteVisitor{byName: byName})
	return newBody
}

// buildSyntheticProgram wraps fn (already renamed, and already rewritten
// for its own sibling references) into the two-statement standalone
// program spec.md §4.H hands the nested pipeline: the renamed declaration,
// followed by a forwarding return that drops the leading R argument new
// Function's call convention always supplies.
func buildSyntheticProgram(fn *ast.Fn, renamedName string) *ast.Program {
	decl := astutil.NewFunctionDeclaration(*fn)

	sliceCall := astutil.Call(
		astutil.Member(astutil.Member(astutil.Member(astutil.Ident("Array"), "prototype"), "slice"), "call"),
		astutil.Ident("arguments"), astutil.Num(1),
	)
	forward := astutil.Call(astutil.Member(astutil.Ident(renamedName), "call"), astutil.Ident("undefined"), astutil.Spread(sliceCall))
	ret := astutil.Return(exprPtr(forward))

	return &ast.Program{Body: []ast.Stmt{decl, ret}}
}

// buildInstallStmt builds R[i] = (function(){ var f = new
// Function(referenceArrayName, source); f[signature] = true; return f;
// })(), the runtime compilation and signature-tagging spec.md §4.H
// describes. referenceArrayName is passed to new Function as a literal
// string naming the dynamic function's sole formal parameter — the same
// name a call site later supplies R itself as, per callThroughExpr below.
func buildInstallStmt(rName string, idx int, sigName, source string) ast.Stmt {
	newFnExpr := astutil.New(astutil.Ident("Function"), astutil.Str(rName), astutil.Str(source))
	iifeBody := []ast.Stmt{
		astutil.VarDecl(ast.VarVar, astutil.Declarator("f", exprPtr(newFnExpr))),
		astutil.AssignStmt(ast.AssignOpAssign, astutil.Member(astutil.Ident("f"), sigName), astutil.Bool(true)),
		astutil.Return(exprPtr(astutil.Ident("f"))),
	}
	iife := astutil.Call(astutil.NewFunctionExpr(ast.Fn{Body: iifeBody}))
	target := astutil.Index(astutil.Ident(rName), astutil.Num(float64(idx)))
	return astutil.AssignStmt(ast.AssignOpAssign, target, iife)
}

// callThroughExpr builds the call-site rewrite spec.md §4.H describes:
// typeof R[i] === "function" && R[i][signature] ? function(){ return
// R[i](R, ...arguments); } : R[i], selecting between the two ways of
// invoking whatever currently sits at R[i] as the thing a surrounding call
// expression's own (unchanged) argument list is then applied to. The
// guard is always true by construction in this pass's own output (R[i] is
// assigned and tagged eagerly, never lazily), the same always-true-at-
// runtime camouflage this module's other passes use for their own
// unreachable branches.
func callThroughExpr(c *resolvedCandidate) ast.Expr {
	cond := astutil.Logical(ast.LogicalOpAnd,
		astutil.Bin(ast.BinOpStrictEq, astutil.Unary(ast.UnOpTypeof, rIndex(c)), astutil.Str("function")),
		astutil.Member(rIndex(c), c.sigName),
	)
	wrapperCall := astutil.Call(rIndex(c), astutil.Ident(c.rName), astutil.Spread(astutil.Ident("arguments")))
	wrapperFn := astutil.NewFunctionExpr(ast.Fn{Body: []ast.Stmt{astutil.Return(exprPtr(wrapperCall))}})
	return astutil.Cond(cond, wrapperFn, rIndex(c))
}

func rIndex(c *resolvedCandidate) ast.Expr {
	return astutil.Index(astutil.Ident(c.rName), astutil.Num(float64(c.index)))
}

// callSiteVisitor rewrites every reference to a resolved candidate's
// original name: a direct call's callee is replaced in place (the
// original argument list is left untouched, since callThroughExpr only
// ever changes which function gets called, not what it is called with), a
// NewExpression's callee the same way, and any other bare reference
// becomes the same selector expression, unevaluated.
type callSiteVisitor struct {
	walk.Base
	byName map[string]*resolvedCandidate
}

func (v *callSiteVisitor) EnterExpr(e *ast.Expr, _ []ast.Node) walk.Action {
	switch d := e.Data.(type) {
	case *ast.ECall:
		if id, ok := d.Callee.Data.(*ast.EIdentifier); ok {
			if c, isCandidate := v.byName[id.Name]; isCandidate {
				d.Callee = callThroughExpr(c)
				return walk.SkipChildren
			}
		}
	case *ast.ENew:
		if id, ok := d.Callee.Data.(*ast.EIdentifier); ok {
			if c, isCandidate := v.byName[id.Name]; isCandidate {
				d.Callee = callThroughExpr(c)
				return walk.SkipChildren
			}
		}
	case *ast.EIdentifier:
		if c, isCandidate := v.byName[d.Name]; isCandidate {
			*e = callThroughExpr(c)
			return walk.SkipChildren
		}
	}
	return walk.Continue
}

// hoistedNames collects every var/function-declaration name directly owned
// by body's own var-context scope, stopping at any nested function-like
// boundary. Shared in spirit with internal/passes/flatten's identical
// helper, but kept as its own small copy here rather than exported from
// flatten — two passes reaching into a third package's private scope
// scanner is worse coupling than two packages each owning their own ten
// lines of it.
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

func exprPtr(e ast.Expr) *ast.Expr { return &e }

func strPtr(s string) *string { return &s }
