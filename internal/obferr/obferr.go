// Package obferr holds the three-kind error taxonomy every pass and the
// pipeline driver use: a user-input error the caller made (bad options), an
// internal invariant violation (a bug in this module, fatal, tagged with
// the pass that tripped it), and the third kind — a recoverable skip —
// which per spec.md is never represented as a Go error at all: a pass
// simply declines to match a node and moves on.
package obferr

import (
	"fmt"

	"github.com/jsobf/jsobf/internal/helpers"
)

// UserError reports a problem with caller-supplied input: malformed
// options, a globalVariables entry that collides with a reserved word, and
// so on. pkg/api returns these directly; they are not bugs in this module.
type UserError struct {
	Message string
}

func (e *UserError) Error() string { return e.Message }

func NewUserError(format string, args ...any) *UserError {
	return &UserError{Message: fmt.Sprintf(format, args...)}
}

// InternalError reports a broken invariant: a pass found the tree in a
// shape its own precondition should have ruled out. It always carries the
// name of the pass whose invariant failed, since that's the first thing
// whoever is debugging a report needs. The obfuscator's pipeline driver is
// the only place that constructs one of these from a recovered panic and
// turns it back into a returned error — see internal/obfuscator.Apply.
type InternalError struct {
	Pass string
	Err  error

	// Stack is captured at the moment Raise panics, not at the recover
	// point in internal/obfuscator.Apply — by the time a deferred recover
	// runs, the panicking goroutine has already unwound past the frame
	// that detected the broken invariant.
	Stack string
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("%s: internal invariant violated: %v", e.Pass, e.Err)
}

func (e *InternalError) Unwrap() error { return e.Err }

// Raise panics with an *InternalError, the mechanism a pass uses the
// moment it detects its own invariant is broken. It panics rather than
// returning an error because an invariant violation partway through a
// rewrite leaves the tree in a state no caller of that function could
// usefully clean up from; the only safe place to resume is above the
// whole pass, at internal/obfuscator.Apply's recover.
func Raise(pass string, format string, args ...any) {
	panic(&InternalError{Pass: pass, Err: fmt.Errorf(format, args...), Stack: helpers.PrettyPrintedStack()})
}

// Recover turns a panic carrying an *InternalError into a returned error,
// and re-panics anything else (a real bug elsewhere, not one this
// taxonomy is meant to paper over). Call it deferred at the top of
// Obfuscator.Apply.
func Recover(errp *error) {
	r := recover()
	if r == nil {
		return
	}
	if ie, ok := r.(*InternalError); ok {
		*errp = ie
		return
	}
	panic(r)
}
