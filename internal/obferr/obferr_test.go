package obferr

import (
	"strings"
	"testing"

	"github.com/jsobf/jsobf/internal/test"
)

func TestRaiseRecoverRoundTrip(t *testing.T) {
	var err error
	func() {
		defer Recover(&err)
		Raise("demo", "node %q has no %s", "x", "body")
	}()

	test.AssertTrue(t, err != nil, "Recover should have captured the panic")
	ie, ok := err.(*InternalError)
	test.AssertTrue(t, ok, "the recovered error should be an *InternalError")
	test.AssertEqual(t, ie.Pass, "demo")
	test.AssertTrue(t, strings.Contains(ie.Error(), "node \"x\" has no body"), "Error() should include the formatted message")
	test.AssertTrue(t, ie.Stack != "", "Raise should have captured a non-empty stack trace")
}

func TestRecoverRepanicsNonInternalErrors(t *testing.T) {
	defer func() {
		r := recover()
		test.AssertTrue(t, r != nil, "a non-InternalError panic should still propagate")
	}()
	var err error
	defer Recover(&err)
	panic("not an InternalError")
}

func TestNewUserError(t *testing.T) {
	err := NewUserError("bad option: %s", "globalVariables")
	test.AssertEqual(t, err.Error(), "bad option: globalVariables")
}
