package fuzzy

import (
	"fmt"
	"math"
)

// MembershipFunction maps a crisp value to a degree in [0, 1].
type MembershipFunction interface {
	Evaluate(x float64) float64
}

// Triangular is a triangular membership function with breakpoints A <= B <= C.
//
// μ(B) is 1; μ rises linearly on (A, B), falls linearly on (B, C) and is 0
// everywhere else. With A == B the function steps up to 1 at A; with B == C it
// holds 1 at C and drops to 0 right after.
type Triangular struct {
	A, B, C float64
}

// NewTriangular validates the breakpoints.
func NewTriangular(a, b, c float64) (Triangular, error) {
	for _, v := range []float64{a, b, c} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Triangular{}, configErrorf("triangular", "breakpoints must be finite")
		}
	}
	if a > b || b > c {
		return Triangular{}, configErrorf("triangular", "breakpoints [%g %g %g] must satisfy a <= b <= c", a, b, c)
	}
	return Triangular{A: a, B: b, C: c}, nil
}

func (t Triangular) Evaluate(x float64) float64 {
	switch {
	case math.IsNaN(x):
		return 0
	case x == t.B:
		return 1
	case x > t.A && x < t.B:
		return (x - t.A) / (t.B - t.A)
	case x > t.B && x < t.C:
		return (t.C - x) / (t.C - t.B)
	default:
		return 0
	}
}

func (t Triangular) String() string {
	return fmt.Sprintf("trimf[%g %g %g]", t.A, t.B, t.C)
}
