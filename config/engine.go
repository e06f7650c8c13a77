package config

import (
	"fmt"

	"fuzzyscore/fuzzy"
)

type EngineConfig struct {
	Implication     string           `yaml:"implication"`
	Defuzzification string           `yaml:"defuzzification"`
	Fallback        string           `yaml:"fallback"`
	InputPolicy     string           `yaml:"input_policy"`
	Output          string           `yaml:"output"`
	Workers         int              `yaml:"workers"`
	CacheSize       int              `yaml:"cache_size"`
	Variables       []VariableConfig `yaml:"variables"`
	Rules           []RuleConfig     `yaml:"rules"`
}

type VariableConfig struct {
	Name string `yaml:"name"`
	Role string `yaml:"role"`
	// Column is the upload column holding this input. Defaults to Name.
	Column   string         `yaml:"column"`
	Universe UniverseConfig `yaml:"universe"`
	Terms    []TermConfig   `yaml:"terms"`
}

type UniverseConfig struct {
	Min  float64 `yaml:"min"`
	Max  float64 `yaml:"max"`
	Step float64 `yaml:"step"`
}

// TermConfig is a triangular term given by its three breakpoints.
type TermConfig struct {
	Name   string    `yaml:"name"`
	Points []float64 `yaml:"points"`
}

type ClauseConfig struct {
	Variable string `yaml:"variable"`
	Term     string `yaml:"term"`
}

type RuleConfig struct {
	If   []ClauseConfig `yaml:"if"`
	Then ClauseConfig   `yaml:"then"`
}

// DefaultEngine mirrors fuzzy.SatisfactionEngine with the original survey
// column names and the midpoint fallback.
func DefaultEngine() EngineConfig {
	universe := UniverseConfig{Min: 1, Max: 5, Step: 1}
	terms := []TermConfig{
		{Name: "very_poor", Points: []float64{1, 1, 2}},
		{Name: "poor", Points: []float64{1, 2, 3}},
		{Name: "fairly_good", Points: []float64{2, 3, 4}},
		{Name: "good", Points: []float64{3, 4, 5}},
		{Name: "very_good", Points: []float64{4, 5, 5}},
	}

	var rules []RuleConfig
	for i := len(terms) - 1; i >= 0; i-- {
		name := terms[i].Name
		rules = append(rules, RuleConfig{
			If: []ClauseConfig{
				{Variable: fuzzy.TeachingMethod, Term: name},
				{Variable: fuzzy.LearningFacilities, Term: name},
			},
			Then: ClauseConfig{Variable: fuzzy.Satisfaction, Term: name},
		})
	}

	return EngineConfig{
		Implication:     string(fuzzy.ImplicationMin),
		Defuzzification: string(fuzzy.Centroid),
		Fallback:        string(fuzzy.FallbackMidpoint),
		InputPolicy:     string(fuzzy.InputReject),
		Output:          fuzzy.Satisfaction,
		CacheSize:       1024,
		Variables: []VariableConfig{
			{Name: fuzzy.TeachingMethod, Role: "antecedent", Column: "metode_pengajaran", Universe: universe, Terms: terms},
			{Name: fuzzy.LearningFacilities, Role: "antecedent", Column: "fasilitas_pembelajaran", Universe: universe, Terms: terms},
			{Name: fuzzy.Satisfaction, Role: "consequent", Universe: universe, Terms: terms},
		},
		Rules: rules,
	}
}

// Build compiles the engine. Every failure is a *fuzzy.ConfigurationError.
func (ec EngineConfig) Build() (*fuzzy.Engine, error) {
	variables := make([]*fuzzy.Variable, 0, len(ec.Variables))
	for _, vc := range ec.Variables {
		v, err := vc.build()
		if err != nil {
			return nil, err
		}
		variables = append(variables, v)
	}

	rules := make([]fuzzy.Rule, len(ec.Rules))
	for i, rc := range ec.Rules {
		when := make([]fuzzy.Clause, len(rc.If))
		for j, c := range rc.If {
			when[j] = fuzzy.Clause{Variable: c.Variable, Term: c.Term}
		}
		rules[i] = fuzzy.NewRule(fuzzy.Clause{Variable: rc.Then.Variable, Term: rc.Then.Term}, when...)
	}

	var opts []fuzzy.Option
	if ec.Implication != "" {
		opts = append(opts, fuzzy.WithImplication(fuzzy.Implication(ec.Implication)))
	}
	if ec.Defuzzification != "" {
		opts = append(opts, fuzzy.WithDefuzzifier(fuzzy.Defuzzifier(ec.Defuzzification)))
	}
	if ec.Fallback != "" {
		opts = append(opts, fuzzy.WithFallback(fuzzy.Fallback(ec.Fallback)))
	}
	if ec.InputPolicy != "" {
		opts = append(opts, fuzzy.WithInputPolicy(fuzzy.InputPolicy(ec.InputPolicy)))
	}
	return fuzzy.Compile(variables, rules, opts...)
}

func (vc VariableConfig) build() (*fuzzy.Variable, error) {
	role, err := fuzzy.ParseRole(vc.Role)
	if err != nil {
		return nil, err
	}
	u, err := fuzzy.NewUniverse(vc.Universe.Min, vc.Universe.Max, vc.Universe.Step)
	if err != nil {
		return nil, fmt.Errorf("variable %q: %w", vc.Name, err)
	}

	terms := make([]fuzzy.Term, len(vc.Terms))
	for i, tc := range vc.Terms {
		if len(tc.Points) != 3 {
			return nil, &fuzzy.ConfigurationError{
				Op:     fmt.Sprintf("variable %q term %q", vc.Name, tc.Name),
				Reason: fmt.Sprintf("triangular term needs 3 points, got %d", len(tc.Points)),
			}
		}
		tri, err := fuzzy.NewTriangular(tc.Points[0], tc.Points[1], tc.Points[2])
		if err != nil {
			return nil, fmt.Errorf("variable %q term %q: %w", vc.Name, tc.Name, err)
		}
		terms[i] = fuzzy.Term{Name: tc.Name, Function: tri}
	}
	return fuzzy.NewVariable(vc.Name, role, u, terms...)
}

// Columns maps every input variable to its upload column.
func (ec EngineConfig) Columns() map[string]string {
	cols := make(map[string]string)
	for _, vc := range ec.Variables {
		if vc.Role == "consequent" || vc.Role == "output" {
			continue
		}
		col := vc.Column
		if col == "" {
			col = vc.Name
		}
		cols[vc.Name] = col
	}
	return cols
}
