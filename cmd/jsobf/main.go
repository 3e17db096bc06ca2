// Command jsobf is the thin CLI driver that links against pkg/api: it
// owns flag parsing, stdin/stdout plumbing and exit codes, and nothing
// else.
package main

import (
	"fmt"
	"io/ioutil"
	"os"

	"github.com/jsobf/jsobf/internal/logger"
	"github.com/jsobf/jsobf/pkg/api"
)

const helpText = `
Usage:
  jsobf [options] < input.js > output.js

Options:
  --cff=...                   Control flow flattening: true, false, or a 0-1 probability
  --dispatcher=...             Dispatcher: true, false, or a 0-1 probability
  --flatten=...                Flatten: true, false, or a 0-1 probability
  --rgf=...                    RGF: off, program, all, or a 0-1 probability
  --identifier-generator=...   randomized, hexadecimal, mangled, number, or zeroWidth
  --global-variables=A,B       Names the obfuscated program must never rename
  --lock-countermeasures=NAME  Function name RGF must never extract
  --seed=N                     Master RNG seed, for a reproducible run
  --verbose                    Emit verbose diagnostics
  --debug-comments              Annotate rewritten nodes with their originating pass
  -h, --help                   Print this help text
`

// parse and generate are this binary's injection point for the external
// collaborators spec.md leaves out of scope: no concrete ECMAScript
// parser/printer ships with this module (see DESIGN.md), so a build that
// wants jsobf to actually run wires both in here before building. Left
// nil, Run prints a clear error to stderr and returns 1 instead of a
// confusing nil-pointer panic.
var parse api.ParseFunc
var generate api.GenerateFunc

func main() {
	os.Exit(Run(os.Args[1:]))
}

func Run(osArgs []string) int {
	for _, arg := range osArgs {
		if arg == "-h" || arg == "-help" || arg == "--help" {
			fmt.Fprintf(os.Stderr, "%s\n", helpText)
			return 0
		}
	}

	opts, err := parseOptions(osArgs)
	if err != nil {
		logger.PrintErrorToStderr(osArgs, err.Error())
		return 1
	}

	if parse == nil || generate == nil {
		logger.PrintErrorToStderr(osArgs, "this build of jsobf has no parser/generator wired in; "+
			"link a ParseFunc/GenerateFunc pair into cmd/jsobf before building")
		return 1
	}

	source, err := ioutil.ReadAll(os.Stdin)
	if err != nil {
		logger.PrintErrorToStderr(osArgs, fmt.Sprintf("could not read from stdin: %s", err.Error()))
		return 1
	}

	out, err := api.Transform(string(source), opts, parse, generate)
	if err != nil {
		logger.PrintErrorToStderr(osArgs, err.Error())
		return 1
	}

	if _, err := os.Stdout.WriteString(out); err != nil {
		logger.PrintErrorToStderr(osArgs, fmt.Sprintf("failed to write to stdout: %s", err.Error()))
		return 1
	}

	return 0
}
