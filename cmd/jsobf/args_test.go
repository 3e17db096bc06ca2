package main

import (
	"testing"

	"github.com/jsobf/jsobf/internal/config"
	"github.com/jsobf/jsobf/internal/probability"
	"github.com/jsobf/jsobf/internal/test"
)

func TestParseOptionsBooleanAndProbabilityForms(t *testing.T) {
	opts, err := parseOptions([]string{"--cff=true", "--dispatcher=0.25", "--flatten=false"})
	test.AssertTrue(t, err == nil, "parseOptions should not error")
	test.AssertEqual(t, opts.ControlFlowFlattening.Kind, probability.KindBool)
	test.AssertEqual(t, opts.ControlFlowFlattening.Bool, true)
	test.AssertEqual(t, opts.Dispatcher.Kind, probability.KindNumber)
	test.AssertEqual(t, opts.Dispatcher.Number, 0.25)
	test.AssertEqual(t, opts.Flatten.Kind, probability.KindBool)
	test.AssertEqual(t, opts.Flatten.Bool, false)
}

func TestParseOptionsRGFModes(t *testing.T) {
	for _, tc := range []struct {
		flag string
		want config.RGFMode
	}{
		{"--rgf=off", config.RGFOff},
		{"--rgf=program", config.RGFProgramOnly},
		{"--rgf=all", config.RGFAll},
	} {
		opts, err := parseOptions([]string{tc.flag})
		test.AssertTrue(t, err == nil, "parseOptions should not error on "+tc.flag)
		test.AssertEqual(t, opts.RGF.Mode, tc.want)
	}

	opts, err := parseOptions([]string{"--rgf=0.5"})
	test.AssertTrue(t, err == nil, "parseOptions should not error")
	test.AssertEqual(t, opts.RGF.Mode, config.RGFProbability)
	test.AssertEqual(t, opts.RGF.Spec.Number, 0.5)
}

func TestParseOptionsGlobalVariablesAndSeed(t *testing.T) {
	opts, err := parseOptions([]string{"--global-variables=A,B,C", "--seed=42", "--verbose"})
	test.AssertTrue(t, err == nil, "parseOptions should not error")
	test.AssertTrue(t, opts.GlobalVariables["A"] && opts.GlobalVariables["B"] && opts.GlobalVariables["C"], "all three names should be locked")
	test.AssertEqual(t, opts.Seed, int64(42))
	test.AssertTrue(t, opts.Verbose, "verbose should be set")
}

func TestParseOptionsRejectsUnknownFlag(t *testing.T) {
	_, err := parseOptions([]string{"--not-a-real-flag"})
	test.AssertTrue(t, err != nil, "an unrecognized flag should be rejected")
}
