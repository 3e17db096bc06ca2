package logger_test

import (
	"testing"

	"github.com/jsobf/jsobf/internal/logger"
	"github.com/jsobf/jsobf/internal/test"
)

func TestMsgSortsLocationFirst(t *testing.T) {
	log := logger.NewDeferLog()
	log.AddMsg(logger.Msg{Kind: logger.Error, Text: "no location"})
	log.AddError(logger.MsgID_CFF_SkippedLexicalBindings, "cff", "block at top level", "lexical binding present")
	msgs := log.Done()

	test.AssertEqual(t, len(msgs), 2)
	test.AssertEqual(t, msgs[0].Location != nil, true)
	test.AssertEqual(t, msgs[1].Location == nil, true)
}

func TestHasErrorsIgnoresWarnings(t *testing.T) {
	log := logger.NewDeferLog()
	log.AddWarning(logger.MsgID_Dispatcher_SkippedIneligible, "dispatcher", "", "skipped ineligible function")
	test.AssertEqual(t, log.HasErrors(), false)
	log.AddError(logger.MsgID_Dispatcher_SkippedDuplicateName, "dispatcher", "", "duplicate name")
	test.AssertEqual(t, log.HasErrors(), true)
}
