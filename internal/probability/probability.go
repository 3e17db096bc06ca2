// Package probability implements Component D: resolving one of the
// options surface's probability specs — a plain boolean, a 0..1 number, a
// weighted list, or a callable — into a concrete decision against the run's
// single seeded RNG. Every pass that gates a rewrite on "should I do this
// here" goes through Decide or Pick rather than calling math/rand directly,
// so a seeded run stays reproducible regardless of which passes are on.
package probability

import "math/rand"

type Kind int

const (
	KindBool Kind = iota
	KindNumber
	KindString
	KindWeighted
	KindFunc
)

// Context is handed to a callable Spec so it can make a decision informed
// by where in the tree it was asked, without the probability package
// itself needing to know anything about the AST. Data is deliberately
// loose (map[string]any) since different passes want different context —
// Dispatcher's callable might ask "how many candidates are there", CFF's
// might ask "how deep is this block" — and Component D has no business
// enumerating every pass's vocabulary.
type Context struct {
	Rand *rand.Rand
	Data map[string]any
}

// Weighted pairs a value with its relative selection weight; weights need
// not sum to 1, Pick normalizes them.
type Weighted[T any] struct {
	Value  T
	Weight float64
}

// Spec is the resolved form of whatever the options surface accepted for a
// given key: true/false, a 0..1 probability, a fixed string, a weighted
// list, or a func(Context) bool/any. Only one field group is meaningful
// per Kind; callers build a Spec with the matching constructor rather than
// poking fields directly.
type Spec struct {
	Kind     Kind
	Bool     bool
	Number   float64
	Str      string
	Weighted []Weighted[any]
	Func     func(Context) any
}

func Bool(v bool) Spec           { return Spec{Kind: KindBool, Bool: v} }
func Number(v float64) Spec      { return Spec{Kind: KindNumber, Number: v} }
func String(v string) Spec       { return Spec{Kind: KindString, Str: v} }
func Func(f func(Context) any) Spec { return Spec{Kind: KindFunc, Func: f} }

func WeightedSpec(options []Weighted[any]) Spec {
	return Spec{Kind: KindWeighted, Weighted: options}
}

// Decide resolves spec to a boolean outcome:
//   - KindBool returns the literal value.
//   - KindNumber is treated as a probability in [0,1]; the RNG draws once
//     and the decision is true iff the draw is less than the number,
//     clamped to [0,1]: a value at or above 1 always fires, a value at or
//     below 0 never does.
//   - KindString is true iff the string is non-empty.
//   - KindWeighted picks one option by weight and recurses Decide on its
//     truthiness (0/false/""/nil are falsy, everything else truthy).
//   - KindFunc calls the callable and recurses on its result the same way.
func Decide(spec Spec, ctx Context) bool {
	switch spec.Kind {
	case KindBool:
		return spec.Bool
	case KindNumber:
		p := spec.Number
		if p < 0 {
			p = 0
		}
		if p > 1 {
			p = 1
		}
		return ctx.Rand.Float64() < p
	case KindString:
		return spec.Str != ""
	case KindWeighted:
		return truthy(pickAny(spec.Weighted, ctx.Rand))
	case KindFunc:
		return truthy(spec.Func(ctx))
	default:
		return false
	}
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case float64:
		return x != 0
	case int:
		return x != 0
	default:
		return true
	}
}

// Pick resolves a weighted list to one value of type T, normalizing
// weights internally. Used where a spec names a value (an identifier
// generator mode) rather than a yes/no decision.
func Pick[T any](options []Weighted[T], rng *rand.Rand) T {
	var total float64
	for _, o := range options {
		total += o.Weight
	}
	if total <= 0 {
		return options[0].Value
	}
	r := rng.Float64() * total
	for _, o := range options {
		r -= o.Weight
		if r <= 0 {
			return o.Value
		}
	}
	return options[len(options)-1].Value
}

func pickAny(options []Weighted[any], rng *rand.Rand) any {
	return Pick(options, rng)
}
