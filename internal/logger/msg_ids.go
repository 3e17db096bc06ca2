package logger

// MsgID lets a caller dial a specific category of non-fatal diagnostic up
// or down without touching the error path. AddError records an ID on an
// error too, but errors are always reported regardless of it.
type MsgID = uint8

const (
	MsgID_None MsgID = iota

	// Options
	MsgID_Options_UnknownIdentifierMode
	MsgID_Options_InvalidGlobalVariable

	// Control Flow Flattening
	MsgID_CFF_SkippedLexicalBindings
	MsgID_CFF_SkippedTooSmall
	MsgID_CFF_SkippedNestedStructure

	// Dispatcher
	MsgID_Dispatcher_SkippedDuplicateName
	MsgID_Dispatcher_SkippedIneligible

	// Flatten
	MsgID_Flatten_SkippedIneligible
	MsgID_Flatten_SkippedFreeVariableNotInScope

	// RGF
	MsgID_RGF_SkippedBound
	MsgID_RGF_SkippedCountermeasures
)
