package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jsobf/jsobf/internal/config"
	"github.com/jsobf/jsobf/internal/probability"
)

// parseOptions turns CLI flags into a config.Options: one switch over
// recognized prefixes, everything else is an error.
func parseOptions(osArgs []string) (config.Options, error) {
	opts := config.Options{GlobalVariables: map[string]bool{}}

	for _, arg := range osArgs {
		switch {
		case strings.HasPrefix(arg, "--cff="):
			spec, err := parseSpec(arg[len("--cff="):])
			if err != nil {
				return opts, err
			}
			opts.ControlFlowFlattening = spec

		case strings.HasPrefix(arg, "--dispatcher="):
			spec, err := parseSpec(arg[len("--dispatcher="):])
			if err != nil {
				return opts, err
			}
			opts.Dispatcher = spec

		case strings.HasPrefix(arg, "--flatten="):
			spec, err := parseSpec(arg[len("--flatten="):])
			if err != nil {
				return opts, err
			}
			opts.Flatten = spec

		case strings.HasPrefix(arg, "--rgf="):
			mode, spec, err := parseRGF(arg[len("--rgf="):])
			if err != nil {
				return opts, err
			}
			opts.RGF = config.RGFOptions{Mode: mode, Spec: spec}

		case strings.HasPrefix(arg, "--identifier-generator="):
			opts.IdentifierGenerator = probability.String(arg[len("--identifier-generator="):])

		case strings.HasPrefix(arg, "--global-variables="):
			for _, name := range strings.Split(arg[len("--global-variables="):], ",") {
				if name != "" {
					opts.GlobalVariables[name] = true
				}
			}

		case strings.HasPrefix(arg, "--lock-countermeasures="):
			opts.Lock.Countermeasures = arg[len("--lock-countermeasures="):]

		case strings.HasPrefix(arg, "--seed="):
			seed, err := strconv.ParseInt(arg[len("--seed="):], 10, 64)
			if err != nil {
				return opts, fmt.Errorf("invalid seed: %q", arg)
			}
			opts.Seed = seed

		case arg == "--verbose":
			opts.Verbose = true

		case arg == "--debug-comments":
			opts.DebugComments = true

		default:
			return opts, fmt.Errorf("invalid flag: %q", arg)
		}
	}

	return opts, nil
}

// parseSpec accepts the literal forms a probability.Spec-typed flag can
// take on the command line: "true"/"false" for always/never, or a bare
// number for a fixed probability. The richer Weighted/Func forms have no
// flag syntax — those are Go-API-only, set by a caller linking pkg/api
// directly rather than driving this CLI.
func parseSpec(value string) (probability.Spec, error) {
	switch value {
	case "true":
		return probability.Bool(true), nil
	case "false":
		return probability.Bool(false), nil
	}
	n, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return probability.Spec{}, fmt.Errorf("invalid probability: %q (want true, false, or a number)", value)
	}
	return probability.Number(n), nil
}

func parseRGF(value string) (config.RGFMode, probability.Spec, error) {
	switch value {
	case "off", "false":
		return config.RGFOff, probability.Spec{}, nil
	case "program":
		return config.RGFProgramOnly, probability.Spec{}, nil
	case "all", "true":
		return config.RGFAll, probability.Spec{}, nil
	}
	n, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return config.RGFOff, probability.Spec{}, fmt.Errorf("invalid --rgf value: %q (want off, program, all, or a number)", value)
	}
	return config.RGFProbability, probability.Number(n), nil
}
