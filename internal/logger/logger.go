// Package logger is the structured diagnostics sink every pass and the
// pipeline driver report through: a Log value built from three closures
// (AddMsg, HasErrors, Done), Msg/MsgLocation as the wire format, sorted
// output, and colorized terminal rendering gated on golang.org/x/sys
// terminal detection (logger_darwin.go/logger_linux.go/logger_windows.go/logger_other.go).
// Unlike a source-aware logger, this package never holds source text or
// byte offsets — the core never has the original source available, only
// an AST — so MsgLocation names the pass and a short description instead
// of a file/line/column/snippet.
package logger

import (
	"fmt"
	"os"
	"sort"
	"sync"
)

type Log struct {
	AddMsg    func(Msg)
	HasErrors func() bool
	Done      func() []Msg
}

type LogLevel int8

const (
	LevelNone LogLevel = iota
	LevelInfo
	LevelWarning
	LevelError
	LevelSilent
)

type MsgKind uint8

const (
	Error MsgKind = iota
	Warning
	Info
)

// MsgLocation names where in the pipeline a message originated: which pass
// raised it and a short human description of the node or context, e.g.
// Pass: "dispatcher", Detail: "function declaration \"h\"".
type MsgLocation struct {
	Pass   string
	Detail string
}

type Msg struct {
	ID       MsgID
	Kind     MsgKind
	Text     string
	Location *MsgLocation
}

type msgsArray []Msg

func (a msgsArray) Len() int          { return len(a) }
func (a msgsArray) Swap(i int, j int) { a[i], a[j] = a[j], a[i] }

func (a msgsArray) Less(i int, j int) bool {
	ai, aj := a[i], a[j]
	li, lj := ai.Location, aj.Location

	if li == nil && lj != nil {
		return false
	}
	if li != nil && lj == nil {
		return true
	}
	if li != nil && lj != nil {
		if li.Pass != lj.Pass {
			return li.Pass < lj.Pass
		}
		if li.Detail != lj.Detail {
			return li.Detail < lj.Detail
		}
	}
	if ai.Kind != aj.Kind {
		return ai.Kind < aj.Kind
	}
	return ai.Text < aj.Text
}

func plural(prefix string, count int) string {
	if count == 1 {
		return fmt.Sprintf("%d %s", count, prefix)
	}
	return fmt.Sprintf("%d %ss", count, prefix)
}

func errorAndWarningSummary(errors int, warnings int) string {
	switch {
	case errors == 0:
		return plural("warning", warnings)
	case warnings == 0:
		return plural("error", errors)
	default:
		return fmt.Sprintf("%s and %s", plural("warning", warnings), plural("error", errors))
	}
}

// hasNoColorEnvironmentVariable reports whether the NO_COLOR environment
// variable (https://no-color.org) is set, which disables color escapes
// regardless of whether the output is a terminal.
func hasNoColorEnvironmentVariable() bool {
	return os.Getenv("NO_COLOR") != ""
}

type TerminalInfo struct {
	IsTTY           bool
	UseColorEscapes bool
	Width           int
	Height          int
}

type StderrColor uint8

const (
	ColorIfTerminal StderrColor = iota
	ColorNever
	ColorAlways
)

type StderrOptions struct {
	ErrorLimit int
	Color      StderrColor
	LogLevel   LogLevel
}

func NewStderrLog(options StderrOptions) Log {
	var mutex sync.Mutex
	var msgs msgsArray
	terminalInfo := GetTerminalInfo(os.Stderr)
	errors := 0
	warnings := 0
	errorLimitWasHit := false

	switch options.Color {
	case ColorNever:
		terminalInfo.UseColorEscapes = false
	case ColorAlways:
		terminalInfo.UseColorEscapes = SupportsColorEscapes
	}

	return Log{
		AddMsg: func(msg Msg) {
			mutex.Lock()
			defer mutex.Unlock()
			msgs = append(msgs, msg)

			if errorLimitWasHit {
				return
			}

			switch msg.Kind {
			case Error:
				errors++
				if options.LogLevel <= LevelError {
					writeStringWithColor(os.Stderr, msg.String(terminalInfo))
				}
			case Warning:
				warnings++
				if options.LogLevel <= LevelWarning {
					writeStringWithColor(os.Stderr, msg.String(terminalInfo))
				}
			default:
				if options.LogLevel <= LevelInfo {
					writeStringWithColor(os.Stderr, msg.String(terminalInfo))
				}
			}

			if options.ErrorLimit != 0 && errors >= options.ErrorLimit {
				errorLimitWasHit = true
				if options.LogLevel <= LevelError {
					writeStringWithColor(os.Stderr, fmt.Sprintf(
						"%s reached (disable with an error limit of 0)\n", errorAndWarningSummary(errors, warnings)))
				}
			}
		},
		HasErrors: func() bool {
			mutex.Lock()
			defer mutex.Unlock()
			return errors > 0
		},
		Done: func() []Msg {
			mutex.Lock()
			defer mutex.Unlock()
			if !errorLimitWasHit && options.LogLevel <= LevelInfo && (warnings != 0 || errors != 0) {
				writeStringWithColor(os.Stderr, fmt.Sprintf("%s\n", errorAndWarningSummary(errors, warnings)))
			}
			sort.Stable(msgs)
			return msgs
		},
	}
}

func NewDeferLog() Log {
	var msgs msgsArray
	var mutex sync.Mutex
	var hasErrors bool

	return Log{
		AddMsg: func(msg Msg) {
			mutex.Lock()
			defer mutex.Unlock()
			if msg.Kind == Error {
				hasErrors = true
			}
			msgs = append(msgs, msg)
		},
		HasErrors: func() bool {
			mutex.Lock()
			defer mutex.Unlock()
			return hasErrors
		},
		Done: func() []Msg {
			mutex.Lock()
			defer mutex.Unlock()
			sort.Stable(msgs)
			return msgs
		},
	}
}

func PrintErrorToStderr(osArgs []string, text string) {
	PrintMessageToStderr(osArgs, Msg{Kind: Error, Text: text})
}

func PrintMessageToStderr(osArgs []string, msg Msg) {
	options := StderrOptions{}
	for _, arg := range osArgs {
		switch arg {
		case "--color=false":
			options.Color = ColorNever
		case "--color=true":
			options.Color = ColorAlways
		case "--log-level=info":
			options.LogLevel = LevelInfo
		case "--log-level=warning":
			options.LogLevel = LevelWarning
		case "--log-level=error":
			options.LogLevel = LevelError
		case "--log-level=silent":
			options.LogLevel = LevelSilent
		}
	}

	log := NewStderrLog(options)
	log.AddMsg(msg)
	log.Done()
}

const (
	colorReset    = "\033[0m"
	colorRed      = "\033[31m"
	colorGreen    = "\033[32m"
	colorMagenta  = "\033[35m"
	colorBold     = "\033[1m"
	colorResetBold = "\033[0;1m"
)

// TerminalColors is the named palette logger_windows.go and
// internal/test's diff printer reach for by name rather than raw escape
// codes.
var TerminalColors = struct {
	Reset, Red, Green, Blue, Cyan, Magenta, Yellow, Dim, Bold, Underline string
}{
	Reset:     "\033[0m",
	Red:       "\033[31m",
	Green:     "\033[32m",
	Blue:      "\033[34m",
	Cyan:      "\033[36m",
	Magenta:   "\033[35m",
	Yellow:    "\033[33m",
	Dim:       "\033[2m",
	Bold:      "\033[1m",
	Underline: "\033[4m",
}

func (msg Msg) String(terminalInfo TerminalInfo) string {
	kind := "error"
	kindColor := colorRed
	switch msg.Kind {
	case Warning:
		kind = "warning"
		kindColor = colorMagenta
	case Info:
		kind = "info"
		kindColor = colorGreen
	}

	prefix := ""
	if msg.Location != nil {
		prefix = msg.Location.Pass
		if msg.Location.Detail != "" {
			prefix += ": " + msg.Location.Detail
		}
	}

	if prefix == "" {
		if terminalInfo.UseColorEscapes {
			return fmt.Sprintf("%s%s%s: %s%s%s\n", colorBold, kindColor, kind, colorResetBold, msg.Text, colorReset)
		}
		return fmt.Sprintf("%s: %s\n", kind, msg.Text)
	}

	if terminalInfo.UseColorEscapes {
		return fmt.Sprintf("%s%s: %s%s: %s%s\n", colorBold, prefix, kindColor, kind, colorResetBold+msg.Text, colorReset)
	}
	return fmt.Sprintf("%s: %s: %s\n", prefix, kind, msg.Text)
}

func (log Log) AddError(id MsgID, pass string, detail string, text string) {
	log.AddMsg(Msg{ID: id, Kind: Error, Text: text, Location: &MsgLocation{Pass: pass, Detail: detail}})
}

func (log Log) AddWarning(id MsgID, pass string, detail string, text string) {
	log.AddMsg(Msg{ID: id, Kind: Warning, Text: text, Location: &MsgLocation{Pass: pass, Detail: detail}})
}

func (log Log) AddInfo(id MsgID, pass string, detail string, text string) {
	log.AddMsg(Msg{ID: id, Kind: Info, Text: text, Location: &MsgLocation{Pass: pass, Detail: detail}})
}
