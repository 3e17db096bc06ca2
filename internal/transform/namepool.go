package transform

import (
	"fmt"
	"math/rand"
)

// NamePool hands out the placeholder names used internally by a pass before
// a final identifier is decided (CFF's chunk and dispatch-loop labels,
// the prefix of Flatten's extracted function names) or that are meant to be
// visually distinctive scaffolding rather than camouflage. The format,
// "__p_" followed by exactly ten decimal digits, is fixed by the data
// model: nothing else in a tree built by this module may match it, so a
// later pass can always tell a placeholder apart from a real identifier by
// shape alone without consulting any side table.
type NamePool struct {
	Rand *rand.Rand
	seen map[string]bool
}

func NewNamePool(rng *rand.Rand) *NamePool {
	return &NamePool{Rand: rng, seen: map[string]bool{}}
}

func (p *NamePool) Next() string {
	for {
		name := fmt.Sprintf("__p_%010d", p.Rand.Int63n(10_000_000_000))
		if !p.seen[name] {
			p.seen[name] = true
			return name
		}
	}
}

// IsPlaceholder reports whether name has the placeholder shape, regardless
// of which NamePool (if any) produced it.
func IsPlaceholder(name string) bool {
	if len(name) != 14 || name[:4] != "__p_" {
		return false
	}
	for i := 4; i < 14; i++ {
		if name[i] < '0' || name[i] > '9' {
			return false
		}
	}
	return true
}
