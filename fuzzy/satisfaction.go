package fuzzy

// Names of the built-in satisfaction survey model.
const (
	TeachingMethod     = "teaching_method"
	LearningFacilities = "learning_facilities"
	Satisfaction       = "satisfaction"
)

// SatisfactionTerms are the five linguistic terms shared by every variable of
// the survey model, from worst to best.
var SatisfactionTerms = []string{"very_poor", "poor", "fairly_good", "good", "very_good"}

// SatisfactionEngine compiles the survey model: two inputs and one output on
// a 1..5 scale with step 1, five edge-to-edge triangular terms per variable
// and five diagonal rules pairing equal terms.
func SatisfactionEngine(opts ...Option) (*Engine, error) {
	universe, err := NewUniverse(1, 5, 1)
	if err != nil {
		return nil, err
	}

	newVar := func(name string, role Role) (*Variable, error) {
		terms := make([]Term, len(SatisfactionTerms))
		for i, term := range SatisfactionTerms {
			peak := float64(i + 1)
			tri, err := NewTriangular(max(peak-1, 1), peak, min(peak+1, 5))
			if err != nil {
				return nil, err
			}
			terms[i] = Term{Name: term, Function: tri}
		}
		return NewVariable(name, role, universe, terms...)
	}

	teaching, err := newVar(TeachingMethod, Antecedent)
	if err != nil {
		return nil, err
	}
	facilities, err := newVar(LearningFacilities, Antecedent)
	if err != nil {
		return nil, err
	}
	satisfaction, err := newVar(Satisfaction, Consequent)
	if err != nil {
		return nil, err
	}

	rules := make([]Rule, 0, len(SatisfactionTerms))
	for i := len(SatisfactionTerms) - 1; i >= 0; i-- {
		term := SatisfactionTerms[i]
		rules = append(rules, NewRule(
			Clause{Variable: Satisfaction, Term: term},
			Clause{Variable: TeachingMethod, Term: term},
			Clause{Variable: LearningFacilities, Term: term},
		))
	}

	return Compile([]*Variable{teaching, facilities, satisfaction}, rules, opts...)
}
