// Package fuzzy implements a Mamdani fuzzy inference engine: universes,
// triangular membership functions, linguistic variables, min/max rule firing,
// implication, aggregation, defuzzification and batch scoring.
//
// An Engine is immutable once compiled and may be shared by any number of
// goroutines. Every call to Evaluate or Explain builds its own Evaluation.
package fuzzy

import (
	"math"
)

const (
	// maxUniversePoints bounds the discretisation of a single universe.
	maxUniversePoints = 1 << 20
	pointTolerance    = 1e-9
)

// Universe is a finite, ascending discretisation of a scalar domain.
type Universe struct {
	min    float64
	max    float64
	step   float64
	points []float64
}

// NewUniverse samples [min, max] every step, starting at min.
// max itself is included when it falls on the grid.
func NewUniverse(min, max, step float64) (Universe, error) {
	const op = "universe"
	for _, v := range []float64{min, max, step} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Universe{}, configErrorf(op, "bounds and step must be finite")
		}
	}
	if step <= 0 {
		return Universe{}, configErrorf(op, "step %g must be positive", step)
	}
	if max <= min {
		return Universe{}, configErrorf(op, "max %g must be greater than min %g", max, min)
	}

	// The ratio is bounded before the int conversion so huge spans cannot wrap.
	span := math.Floor((max-min)/step + pointTolerance)
	if math.IsInf(span, 0) || span+1 > maxUniversePoints {
		return Universe{}, configErrorf(op, "sampling [%g, %g] every %g exceeds %d points", min, max, step, maxUniversePoints)
	}
	n := int(span) + 1

	points := make([]float64, n)
	for i := range points {
		points[i] = min + float64(i)*step
	}
	if last := points[n-1]; math.Abs(last-max) < pointTolerance*math.Max(1, math.Abs(max)) {
		points[n-1] = max
	}

	return Universe{min: min, max: max, step: step, points: points}, nil
}

func (u Universe) Min() float64  { return u.min }
func (u Universe) Max() float64  { return u.max }
func (u Universe) Step() float64 { return u.step }
func (u Universe) Len() int      { return len(u.points) }

// Midpoint returns the centre of the configured range.
func (u Universe) Midpoint() float64 {
	return (u.min + u.max) / 2
}

// Points returns a copy of the sample points.
func (u Universe) Points() []float64 {
	out := make([]float64, len(u.points))
	copy(out, u.points)
	return out
}

// Contains reports whether x lies in [min, max].
func (u Universe) Contains(x float64) bool {
	return x >= u.min && x <= u.max
}

// Clamp limits x to [min, max].
func (u Universe) Clamp(x float64) float64 {
	return math.Min(math.Max(x, u.min), u.max)
}
