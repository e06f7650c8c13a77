package fuzzy

import (
	"fmt"
	"math"
	"strings"
)

// Clause names one term of one variable.
type Clause struct {
	Variable string
	Term     string
}

func (c Clause) String() string {
	return c.Variable + " is " + c.Term
}

// Rule is a conjunction of antecedent clauses implying one consequent clause.
type Rule struct {
	Antecedents []Clause
	Consequent  Clause
}

// NewRule is a convenience constructor for the common "if all of ... then" form.
func NewRule(then Clause, when ...Clause) Rule {
	return Rule{Antecedents: when, Consequent: then}
}

// Fire returns the rule's firing strength: the minimum degree over all
// antecedent clauses. A clause that names an unknown variable or term is a
// configuration error.
func (r Rule) Fire(fuzzified map[string]map[string]float64) (float64, error) {
	if len(r.Antecedents) == 0 {
		return 0, configErrorf("rule", "no antecedent clauses")
	}
	strength := 1.0
	for _, c := range r.Antecedents {
		degrees, ok := fuzzified[c.Variable]
		if !ok {
			return 0, configErrorf("rule", "unknown variable %q", c.Variable)
		}
		d, ok := degrees[c.Term]
		if !ok {
			return 0, configErrorf("rule", "variable %q has no term %q", c.Variable, c.Term)
		}
		strength = math.Min(strength, d)
	}
	return strength, nil
}

func (r Rule) String() string {
	parts := make([]string, len(r.Antecedents))
	for i, c := range r.Antecedents {
		parts[i] = c.String()
	}
	return fmt.Sprintf("IF %s THEN %s", strings.Join(parts, " AND "), r.Consequent)
}
