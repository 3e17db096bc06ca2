package transform

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/jsobf/jsobf/internal/test"
)

// spec.md's number mode names the literal shape "var_<counter>" — this was
// previously "_<counter>", silently wrong since nothing asserted the exact
// string.
func TestIdentGeneratorNumberMode(t *testing.T) {
	g := NewIdentGenerator(ModeNumber, rand.New(rand.NewSource(1)), nil, nil)
	test.AssertEqual(t, g.Next(), "var_1")
	test.AssertEqual(t, g.Next(), "var_2")
}

// spec.md's hexadecimal mode requires uppercase hex digits after the "_0x"
// prefix.
func TestIdentGeneratorHexadecimalModeIsUppercase(t *testing.T) {
	g := NewIdentGenerator(ModeHexadecimal, rand.New(rand.NewSource(1)), nil, nil)
	for i := 0; i < 20; i++ {
		name := g.Next()
		test.AssertTrue(t, strings.HasPrefix(name, "_0x"), "hexadecimal name should start with _0x")
		hex := name[len("_0x"):]
		test.AssertTrue(t, hex == strings.ToUpper(hex), "hex digits should be uppercase: "+name)
		test.AssertTrue(t, !strings.ContainsAny(hex, "abcdef"), "hex digits must not contain lowercase letters: "+name)
	}
}
