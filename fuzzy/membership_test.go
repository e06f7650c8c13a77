package fuzzy

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUniverse(t *testing.T) {
	u, err := NewUniverse(1, 5, 1)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3, 4, 5}, u.Points())
	assert.Equal(t, 3.0, u.Midpoint())
	assert.True(t, u.Contains(5))
	assert.False(t, u.Contains(5.01))

	u, err = NewUniverse(0, 1, 0.1)
	require.NoError(t, err)
	assert.Equal(t, 11, u.Len())
	assert.Equal(t, 1.0, u.Points()[10])

	u, err = NewUniverse(0, 1, 0.3)
	require.NoError(t, err)
	assert.Equal(t, 4, u.Len(), "max off the grid is not included")

	tests := []struct {
		name           string
		min, max, step float64
	}{
		{"zero step", 1, 5, 0},
		{"negative step", 1, 5, -1},
		{"inverted", 5, 1, 1},
		{"empty", 1, 1, 1},
		{"nan", math.NaN(), 5, 1},
		{"inf", 1, math.Inf(1), 1},
		{"too many points", 0, 1 << 21, 1},
		{"span beyond int range", 0, 1e19, 1},
		{"ratio overflows", 0, 1e300, 1e-300},
		{"span overflows", -1e308, 1e308, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewUniverse(tt.min, tt.max, tt.step)
			var cfgErr *ConfigurationError
			assert.True(t, errors.As(err, &cfgErr), "got %v", err)
		})
	}
}

func TestUniversePointsIsACopy(t *testing.T) {
	u, err := NewUniverse(1, 5, 1)
	require.NoError(t, err)
	p := u.Points()
	p[0] = 100
	assert.Equal(t, 1.0, u.Points()[0])
}

func TestTriangularShape(t *testing.T) {
	tri, err := NewTriangular(1, 3, 7)
	require.NoError(t, err)

	assert.Equal(t, 0.0, tri.Evaluate(1))
	assert.Equal(t, 1.0, tri.Evaluate(3))
	assert.Equal(t, 0.0, tri.Evaluate(7))
	assert.Equal(t, 0.0, tri.Evaluate(-10))
	assert.Equal(t, 0.0, tri.Evaluate(12))
	assert.Equal(t, 0.0, tri.Evaluate(math.NaN()))
	assert.InDelta(t, 0.5, tri.Evaluate(2), 1e-12)
	assert.InDelta(t, 0.5, tri.Evaluate(5), 1e-12)

	prev := 0.0
	for x := 1.0; x <= 3; x += 0.05 {
		d := tri.Evaluate(x)
		assert.GreaterOrEqual(t, d, prev, "rise at %g", x)
		assert.True(t, d >= 0 && d <= 1)
		prev = d
	}
	prev = 1.0
	for x := 3.0; x <= 7; x += 0.05 {
		d := tri.Evaluate(x)
		assert.LessOrEqual(t, d, prev, "fall at %g", x)
		assert.True(t, d >= 0 && d <= 1)
		prev = d
	}
}

func TestTriangularDegenerate(t *testing.T) {
	left := Triangular{A: 1, B: 1, C: 2}
	assert.Equal(t, 0.0, left.Evaluate(0.999))
	assert.Equal(t, 1.0, left.Evaluate(1))
	assert.InDelta(t, 0.5, left.Evaluate(1.5), 1e-12)
	assert.Equal(t, 0.0, left.Evaluate(2))

	right := Triangular{A: 4, B: 5, C: 5}
	assert.Equal(t, 0.0, right.Evaluate(4))
	assert.InDelta(t, 0.5, right.Evaluate(4.5), 1e-12)
	assert.Equal(t, 1.0, right.Evaluate(5))
	assert.Equal(t, 0.0, right.Evaluate(5.001))

	spike := Triangular{A: 2, B: 2, C: 2}
	assert.Equal(t, 1.0, spike.Evaluate(2))
	assert.Equal(t, 0.0, spike.Evaluate(2.1))
}

func TestNewTriangularRejectsUnordered(t *testing.T) {
	_, err := NewTriangular(3, 2, 4)
	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))

	_, err = NewTriangular(1, math.NaN(), 4)
	require.Error(t, err)
}

func TestEdgeToEdgeTermsSumToOne(t *testing.T) {
	engine, err := SatisfactionEngine()
	require.NoError(t, err)
	v, ok := engine.Variable(TeachingMethod)
	require.True(t, ok)

	for _, x := range []float64{1.1, 1.3, 1.75, 2.5, 2.9, 3.2, 3.6, 4.01, 4.5, 4.99} {
		degrees := v.Fuzzify(x)
		var sum float64
		var nonzero int
		for _, d := range degrees {
			sum += d
			if d > 0 {
				nonzero++
			}
		}
		assert.Equal(t, 2, nonzero, "x=%g", x)
		assert.InDelta(t, 1.0, sum, 1e-9, "x=%g", x)
	}

	for _, x := range []float64{1, 2, 3, 4, 5} {
		degrees := v.Fuzzify(x)
		assert.Equal(t, 1.0, degrees[SatisfactionTerms[int(x)-1]], "x=%g", x)
	}
}

func TestNewVariableErrors(t *testing.T) {
	u, err := NewUniverse(1, 5, 1)
	require.NoError(t, err)
	tri := Triangular{A: 1, B: 2, C: 3}

	tests := []struct {
		name  string
		vname string
		terms []Term
	}{
		{"no terms", "x", nil},
		{"duplicate term", "x", []Term{{Name: "a", Function: tri}, {Name: "a", Function: tri}}},
		{"unnamed term", "x", []Term{{Function: tri}}},
		{"nil function", "x", []Term{{Name: "a"}}},
		{"no name", "", []Term{{Name: "a", Function: tri}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewVariable(tt.vname, Antecedent, u, tt.terms...)
			var cfgErr *ConfigurationError
			assert.True(t, errors.As(err, &cfgErr), "got %v", err)
		})
	}

	_, err = NewVariable("x", Antecedent, Universe{}, Term{Name: "a", Function: tri})
	assert.Error(t, err)
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole("input")
	require.NoError(t, err)
	assert.Equal(t, Antecedent, r)

	r, err = ParseRole("consequent")
	require.NoError(t, err)
	assert.Equal(t, Consequent, r)
	assert.Equal(t, "consequent", r.String())

	_, err = ParseRole("sideways")
	assert.Error(t, err)
}
