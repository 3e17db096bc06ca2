package transform

import (
	"math/rand"
	"testing"

	"github.com/jsobf/jsobf/internal/ast"
	"github.com/jsobf/jsobf/internal/logger"
	"github.com/jsobf/jsobf/internal/test"
)

func TestNoteSkipRecordsThroughLog(t *testing.T) {
	ctx := NewContext(rand.New(rand.NewSource(1)), ModeMangled, nil)
	ctx.Log = logger.NewDeferLog()

	ctx.NoteSkip(logger.MsgID_CFF_SkippedTooSmall, "cff", "block at top level", "fewer than two chunks")
	msgs := ctx.Log.Done()

	test.AssertEqual(t, len(msgs), 1)
	test.AssertEqual(t, msgs[0].ID, logger.MsgID_CFF_SkippedTooSmall)
	test.AssertEqual(t, msgs[0].Kind, logger.Info)
}

// A Context a pass builds for its own test (the zero-value Log every
// *_test.go in this module constructs) must never panic when a pass calls
// NoteSkip unconditionally.
func TestNoteSkipIsSafeWithoutLog(t *testing.T) {
	ctx := NewContext(rand.New(rand.NewSource(1)), ModeMangled, nil)
	ctx.NoteSkip(logger.MsgID_CFF_SkippedTooSmall, "cff", "detail", "reason")
}

func TestAnnotateDebugPopulatesLeadingComments(t *testing.T) {
	ctx := NewContext(rand.New(rand.NewSource(1)), ModeMangled, nil)
	ctx.DebugComments = true

	s := ast.Stmt{Data: &ast.SEmpty{}}
	ctx.AnnotateDebug(&s, "cff", "dispatch loop over 3 chunks")

	test.AssertEqual(t, len(s.LeadingComments), 1)
	test.AssertEqual(t, s.LeadingComments[0], "cff: dispatch loop over 3 chunks")
}

func TestAnnotateDebugNoopWhenDisabled(t *testing.T) {
	ctx := NewContext(rand.New(rand.NewSource(1)), ModeMangled, nil)

	s := ast.Stmt{Data: &ast.SEmpty{}}
	ctx.AnnotateDebug(&s, "cff", "dispatch loop over 3 chunks")

	test.AssertEqual(t, len(s.LeadingComments), 0)
}
