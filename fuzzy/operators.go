package fuzzy

import "math"

// Implication restricts a consequent term by a rule's firing strength.
type Implication string

const (
	// ImplicationMin clips the term at the firing strength.
	ImplicationMin Implication = "min"
	// ImplicationProduct scales the term by the firing strength.
	ImplicationProduct Implication = "product"
)

func (i Implication) apply(strength, degree float64) float64 {
	if i == ImplicationProduct {
		return strength * degree
	}
	return math.Min(strength, degree)
}

// Defuzzifier names the method that turns an aggregated curve into a crisp value.
type Defuzzifier string

const (
	Centroid          Defuzzifier = "centroid"
	Bisector          Defuzzifier = "bisector"
	MeanOfMaximum     Defuzzifier = "mom"
	SmallestOfMaximum Defuzzifier = "som"
	LargestOfMaximum  Defuzzifier = "lom"
)

// Fallback decides what an output becomes when no rule fired for it.
type Fallback string

const (
	// FallbackError makes evaluation fail with *NoRuleFiredError.
	FallbackError Fallback = "error"
	// FallbackMidpoint yields the midpoint of the output universe.
	FallbackMidpoint Fallback = "midpoint"
)

// InputPolicy decides how inputs outside their universe are handled.
type InputPolicy string

const (
	// InputReject fails the evaluation with *DomainError.
	InputReject InputPolicy = "reject"
	// InputClamp moves the value to the nearest universe bound.
	InputClamp InputPolicy = "clamp"
)

// Options holds the operator choices of an engine.
// Aggregation is always pointwise max.
type Options struct {
	Implication Implication `json:"implication"`
	Defuzzifier Defuzzifier `json:"defuzzifier"`
	Fallback    Fallback    `json:"fallback"`
	InputPolicy InputPolicy `json:"input_policy"`
}

// DefaultOptions is min implication, max aggregation, centroid, no fallback
// and rejection of out-of-range inputs.
func DefaultOptions() Options {
	return Options{
		Implication: ImplicationMin,
		Defuzzifier: Centroid,
		Fallback:    FallbackError,
		InputPolicy: InputReject,
	}
}

// Option customises an engine at compile time.
type Option func(*Options)

func WithImplication(i Implication) Option { return func(o *Options) { o.Implication = i } }
func WithDefuzzifier(d Defuzzifier) Option { return func(o *Options) { o.Defuzzifier = d } }
func WithFallback(f Fallback) Option       { return func(o *Options) { o.Fallback = f } }
func WithInputPolicy(p InputPolicy) Option { return func(o *Options) { o.InputPolicy = p } }

func (o Options) validate() error {
	switch o.Implication {
	case ImplicationMin, ImplicationProduct:
	default:
		return configErrorf("options", "unknown implication %q", o.Implication)
	}
	switch o.Defuzzifier {
	case Centroid, Bisector, MeanOfMaximum, SmallestOfMaximum, LargestOfMaximum:
	default:
		return configErrorf("options", "unknown defuzzifier %q", o.Defuzzifier)
	}
	switch o.Fallback {
	case FallbackError, FallbackMidpoint:
	default:
		return configErrorf("options", "unknown fallback %q", o.Fallback)
	}
	switch o.InputPolicy {
	case InputReject, InputClamp:
	default:
		return configErrorf("options", "unknown input policy %q", o.InputPolicy)
	}
	return nil
}

// defuzzify reduces an aggregated curve over ascending points to one value.
// ok is false when the curve is zero everywhere.
func defuzzify(method Defuzzifier, points, mu []float64) (value float64, ok bool) {
	var total float64
	peak := 0.0
	for _, m := range mu {
		total += m
		if m > peak {
			peak = m
		}
	}
	if total <= 0 {
		return 0, false
	}

	switch method {
	case Bisector:
		var acc float64
		for i, m := range mu {
			acc += m
			if acc >= total/2 {
				return points[i], true
			}
		}
		return points[len(points)-1], true
	case MeanOfMaximum, SmallestOfMaximum, LargestOfMaximum:
		var sum float64
		var n int
		first, last := -1, -1
		for i, m := range mu {
			if m == peak {
				if first < 0 {
					first = i
				}
				last = i
				sum += points[i]
				n++
			}
		}
		switch method {
		case SmallestOfMaximum:
			return points[first], true
		case LargestOfMaximum:
			return points[last], true
		default:
			return sum / float64(n), true
		}
	default:
		var weighted float64
		for i, m := range mu {
			weighted += points[i] * m
		}
		return weighted / total, true
	}
}
