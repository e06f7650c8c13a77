package fuzzy

import (
	"fmt"
	"math"
)

// Engine is a compiled, immutable set of variables and rules.
type Engine struct {
	opts      Options
	variables map[string]*Variable
	inputs    []*Variable
	outputs   []*Variable
	rules     []Rule
	byOutput  map[string][]compiledRule
}

type compiledRule struct {
	index int
	rule  Rule
	// consequent term sampled on the output universe
	curve []float64
}

// Compile validates the definition and freezes it into an Engine.
func Compile(variables []*Variable, rules []Rule, opts ...Option) (*Engine, error) {
	const op = "compile"

	options := DefaultOptions()
	for _, o := range opts {
		o(&options)
	}
	if err := options.validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		opts:      options,
		variables: make(map[string]*Variable, len(variables)),
		rules:     make([]Rule, len(rules)),
		byOutput:  make(map[string][]compiledRule),
	}
	for _, v := range variables {
		if v == nil {
			return nil, configErrorf(op, "nil variable")
		}
		if _, dup := e.variables[v.Name()]; dup {
			return nil, configErrorf(op, "duplicate variable %q", v.Name())
		}
		e.variables[v.Name()] = v
		if v.Role() == Consequent {
			e.outputs = append(e.outputs, v)
		} else {
			e.inputs = append(e.inputs, v)
		}
	}
	if len(e.inputs) == 0 {
		return nil, configErrorf(op, "no antecedent variable")
	}
	if len(e.outputs) == 0 {
		return nil, configErrorf(op, "no consequent variable")
	}
	if len(rules) == 0 {
		return nil, configErrorf(op, "no rules")
	}

	for i, r := range rules {
		cr, err := e.compileRule(i, r)
		if err != nil {
			return nil, err
		}
		e.rules[i] = cr.rule
		out := r.Consequent.Variable
		e.byOutput[out] = append(e.byOutput[out], cr)
	}
	return e, nil
}

func (e *Engine) compileRule(i int, r Rule) (compiledRule, error) {
	op := fmt.Sprintf("rule %d", i)
	if len(r.Antecedents) == 0 {
		return compiledRule{}, configErrorf(op, "no antecedent clauses")
	}

	for _, c := range r.Antecedents {
		v, ok := e.variables[c.Variable]
		if !ok {
			return compiledRule{}, configErrorf(op, "unknown variable %q", c.Variable)
		}
		if v.Role() != Antecedent {
			return compiledRule{}, configErrorf(op, "antecedent %q is a consequent variable", c.Variable)
		}
		if _, ok := v.Term(c.Term); !ok {
			return compiledRule{}, configErrorf(op, "variable %q has no term %q", c.Variable, c.Term)
		}
	}

	out, ok := e.variables[r.Consequent.Variable]
	if !ok {
		return compiledRule{}, configErrorf(op, "unknown variable %q", r.Consequent.Variable)
	}
	if out.Role() != Consequent {
		return compiledRule{}, configErrorf(op, "consequent %q is not an output variable", out.Name())
	}
	mf, ok := out.Term(r.Consequent.Term)
	if !ok {
		return compiledRule{}, configErrorf(op, "variable %q has no term %q", out.Name(), r.Consequent.Term)
	}

	points := out.Universe().points
	curve := make([]float64, len(points))
	for j, x := range points {
		curve[j] = mf.Evaluate(x)
	}

	rule := Rule{
		Antecedents: append([]Clause(nil), r.Antecedents...),
		Consequent:  r.Consequent,
	}
	return compiledRule{index: i, rule: rule, curve: curve}, nil
}

// Options returns the operator choices the engine was compiled with.
func (e *Engine) Options() Options { return e.opts }

// Inputs returns the antecedent variables in declaration order.
func (e *Engine) Inputs() []*Variable { return append([]*Variable(nil), e.inputs...) }

// Outputs returns the consequent variables in declaration order.
func (e *Engine) Outputs() []*Variable { return append([]*Variable(nil), e.outputs...) }

// Rules returns a copy of the rule base in declaration order.
func (e *Engine) Rules() []Rule {
	out := make([]Rule, len(e.rules))
	for i, r := range e.rules {
		out[i] = Rule{Antecedents: append([]Clause(nil), r.Antecedents...), Consequent: r.Consequent}
	}
	return out
}

// Variable looks up a variable by name.
func (e *Engine) Variable(name string) (*Variable, bool) {
	v, ok := e.variables[name]
	return v, ok
}

// Evaluate maps crisp inputs to one crisp value per output variable.
// Inputs that do not name an antecedent variable are ignored.
func (e *Engine) Evaluate(inputs map[string]float64) (map[string]float64, error) {
	ev, err := e.Explain(inputs)
	if err != nil {
		return nil, err
	}
	return ev.Outputs, nil
}

// Explain runs the full pipeline and returns every intermediate result.
func (e *Engine) Explain(inputs map[string]float64) (*Evaluation, error) {
	ev := newEvaluation(e)
	if err := ev.fuzzify(inputs); err != nil {
		return nil, err
	}
	for _, out := range e.outputs {
		if err := ev.infer(out); err != nil {
			return nil, err
		}
	}
	return ev, nil
}

// Evaluation is the per-call state of one inference. It is never shared.
type Evaluation struct {
	engine *Engine

	// Inputs holds the crisp inputs actually used, after clamping.
	Inputs map[string]float64
	// Fuzzified maps input variable -> term -> degree.
	Fuzzified map[string]map[string]float64
	// Strengths holds the firing strength of each rule, indexed like Rules.
	Strengths []float64
	// Aggregated maps output variable -> degree at each universe sample point.
	Aggregated map[string][]float64
	// Outputs maps output variable -> crisp value.
	Outputs map[string]float64
	// Fallbacks lists outputs whose value came from the empty-aggregate fallback.
	Fallbacks []string
}

// Rules returns the rule base of the engine that produced ev, indexed like
// Strengths. It stays correct if the caller's engine is replaced meanwhile.
func (ev *Evaluation) Rules() []Rule { return ev.engine.Rules() }

func newEvaluation(e *Engine) *Evaluation {
	return &Evaluation{
		engine:     e,
		Inputs:     make(map[string]float64, len(e.inputs)),
		Fuzzified:  make(map[string]map[string]float64, len(e.inputs)),
		Strengths:  make([]float64, len(e.rules)),
		Aggregated: make(map[string][]float64, len(e.outputs)),
		Outputs:    make(map[string]float64, len(e.outputs)),
	}
}

func (ev *Evaluation) fuzzify(inputs map[string]float64) error {
	for _, v := range ev.engine.inputs {
		x, ok := inputs[v.Name()]
		u := v.Universe()
		if !ok {
			return &DomainError{Variable: v.Name(), Min: u.Min(), Max: u.Max(), Missing: true}
		}
		if math.IsNaN(x) {
			return &DomainError{Variable: v.Name(), Value: x, Min: u.Min(), Max: u.Max()}
		}
		if !u.Contains(x) {
			if ev.engine.opts.InputPolicy != InputClamp {
				return &DomainError{Variable: v.Name(), Value: x, Min: u.Min(), Max: u.Max()}
			}
			x = u.Clamp(x)
		}
		ev.Inputs[v.Name()] = x
		ev.Fuzzified[v.Name()] = v.Fuzzify(x)
	}
	return nil
}

func (ev *Evaluation) infer(out *Variable) error {
	e := ev.engine
	points := out.Universe().points
	agg := make([]float64, len(points))

	for _, cr := range e.byOutput[out.Name()] {
		strength, err := cr.rule.Fire(ev.Fuzzified)
		if err != nil {
			return err
		}
		ev.Strengths[cr.index] = strength
		if strength == 0 {
			continue
		}
		for j, d := range cr.curve {
			agg[j] = math.Max(agg[j], e.opts.Implication.apply(strength, d))
		}
	}
	ev.Aggregated[out.Name()] = agg

	value, ok := defuzzify(e.opts.Defuzzifier, points, agg)
	if !ok {
		if e.opts.Fallback != FallbackMidpoint {
			return &NoRuleFiredError{Variable: out.Name()}
		}
		value = out.Universe().Midpoint()
		ev.Fallbacks = append(ev.Fallbacks, out.Name())
	}
	ev.Outputs[out.Name()] = value
	return nil
}
