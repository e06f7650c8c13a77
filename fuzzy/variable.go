package fuzzy

import "fmt"

// Role tells whether a variable is read from the inputs or produced by the engine.
type Role int

const (
	Antecedent Role = iota
	Consequent
)

func (r Role) String() string {
	switch r {
	case Antecedent:
		return "antecedent"
	case Consequent:
		return "consequent"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// ParseRole accepts "antecedent"/"input" and "consequent"/"output".
func ParseRole(s string) (Role, error) {
	switch s {
	case "antecedent", "input":
		return Antecedent, nil
	case "consequent", "output":
		return Consequent, nil
	default:
		return 0, configErrorf("role", "unknown role %q", s)
	}
}

// Term is a named membership function of a variable.
type Term struct {
	Name     string
	Function MembershipFunction
}

// Variable is a linguistic variable: a universe plus named terms.
type Variable struct {
	name     string
	role     Role
	universe Universe
	terms    []Term
	index    map[string]int
}

// NewVariable builds an immutable linguistic variable. Term order is kept
// for fuzzification output and summaries.
func NewVariable(name string, role Role, universe Universe, terms ...Term) (*Variable, error) {
	op := fmt.Sprintf("variable %q", name)
	if name == "" {
		return nil, configErrorf("variable", "name is required")
	}
	if universe.Len() == 0 {
		return nil, configErrorf(op, "universe is empty")
	}
	if len(terms) == 0 {
		return nil, configErrorf(op, "at least one term is required")
	}

	v := &Variable{
		name:     name,
		role:     role,
		universe: universe,
		terms:    make([]Term, len(terms)),
		index:    make(map[string]int, len(terms)),
	}
	for i, t := range terms {
		if t.Name == "" {
			return nil, configErrorf(op, "term %d has no name", i)
		}
		if t.Function == nil {
			return nil, configErrorf(op, "term %q has no membership function", t.Name)
		}
		if _, dup := v.index[t.Name]; dup {
			return nil, configErrorf(op, "duplicate term %q", t.Name)
		}
		v.index[t.Name] = i
		v.terms[i] = t
	}
	return v, nil
}

func (v *Variable) Name() string       { return v.name }
func (v *Variable) Role() Role         { return v.role }
func (v *Variable) Universe() Universe { return v.universe }

// Terms returns the term names in declaration order.
func (v *Variable) Terms() []string {
	names := make([]string, len(v.terms))
	for i, t := range v.terms {
		names[i] = t.Name
	}
	return names
}

// Term looks up a membership function by term name.
func (v *Variable) Term(name string) (MembershipFunction, bool) {
	i, ok := v.index[name]
	if !ok {
		return nil, false
	}
	return v.terms[i].Function, true
}

// Fuzzify evaluates every term at x. Degrees are not normalised.
func (v *Variable) Fuzzify(x float64) map[string]float64 {
	degrees := make(map[string]float64, len(v.terms))
	for _, t := range v.terms {
		degrees[t.Name] = t.Function.Evaluate(x)
	}
	return degrees
}
