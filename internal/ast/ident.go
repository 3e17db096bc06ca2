package ast

import "strings"

// IsIdentifierStart/IsIdentifierContinue are deliberately ASCII-only: every
// identifier this module generates is ASCII by construction (the five
// generator modes in internal/transform never emit non-ASCII), and the
// identifiers it reads come from an already-validated external parser. A
// full Unicode ID_Start/ID_Continue table is for parsing arbitrary user
// source; that table has no caller left once parsing itself is out of
// scope.
func IsIdentifierStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func IsIdentifierContinue(c byte) bool {
	return IsIdentifierStart(c) || (c >= '0' && c <= '9')
}

func IsIdentifier(text string) bool {
	if len(text) == 0 {
		return false
	}
	if !IsIdentifierStart(text[0]) {
		return false
	}
	for i := 1; i < len(text); i++ {
		if !IsIdentifierContinue(text[i]) {
			return false
		}
	}
	return true
}

// ReservedKeywords are words a generated identifier must never collide with.
var ReservedKeywords = map[string]bool{
	"break": true, "case": true, "catch": true, "class": true, "const": true,
	"continue": true, "debugger": true, "default": true, "delete": true, "do": true,
	"else": true, "export": true, "extends": true, "finally": true, "for": true,
	"function": true, "if": true, "import": true, "in": true, "instanceof": true,
	"new": true, "return": true, "super": true, "switch": true, "this": true,
	"throw": true, "try": true, "typeof": true, "var": true, "void": true,
	"while": true, "with": true, "yield": true, "let": true, "static": true,
	"await": true, "enum": true, "implements": true, "interface": true,
	"package": true, "private": true, "protected": true, "public": true,
	"null": true, "true": true, "false": true,
}

// ReservedIdentifiers are additional names the core will not hand out to a
// generated identifier even though they are not keywords — globals that a
// browser or Node host environment injects and that user code commonly
// relies on existing untouched.
var ReservedIdentifiers = map[string]bool{
	"arguments": true, "eval": true, "undefined": true, "NaN": true, "Infinity": true,
	"globalThis": true, "window": true, "document": true, "console": true,
	"require": true, "module": true, "exports": true, "global": true, "process": true,
}

// IsReserved reports whether name collides with a keyword, a reserved
// identifier, or a name the caller declared as a pre-existing global.
func IsReserved(name string, globalVariables map[string]bool) bool {
	if ReservedKeywords[name] || ReservedIdentifiers[name] {
		return true
	}
	return globalVariables != nil && globalVariables[name]
}

// ForceValidIdentifier replaces any byte that isn't a valid identifier
// continuation with "_", used when a generator mode derives a name from
// arbitrary input (e.g. the mangled generator skipping reserved words).
func ForceValidIdentifier(text string) string {
	if text == "" {
		return "_"
	}
	var sb strings.Builder
	for i := 0; i < len(text); i++ {
		c := text[i]
		valid := IsIdentifierContinue(c)
		if i == 0 {
			valid = IsIdentifierStart(c)
		}
		if valid {
			sb.WriteByte(c)
		} else {
			sb.WriteByte('_')
		}
	}
	return sb.String()
}
