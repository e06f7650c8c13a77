package fuzzy

import (
	"math"

	"golang.org/x/text/language"
)

// Labels maps a rounded score to a categorical label. Scores without an
// entry, including 1, 0 and anything off the 1..5 scale, get Otherwise.
type Labels struct {
	Tag       language.Tag
	ByScore   map[int]string
	Otherwise string
}

var (
	EnglishLabels = Labels{
		Tag: language.English,
		ByScore: map[int]string{
			5: "Very Good",
			4: "Good",
			3: "Fairly Good",
			2: "Poor",
		},
		Otherwise: "Very Poor",
	}

	IndonesianLabels = Labels{
		Tag: language.Indonesian,
		ByScore: map[int]string{
			5: "Sangat Baik",
			4: "Baik",
			3: "Cukup Baik",
			2: "Buruk",
		},
		Otherwise: "Sangat Buruk",
	}
)

var (
	labelSets    = []Labels{EnglishLabels, IndonesianLabels}
	labelMatcher = language.NewMatcher([]language.Tag{language.English, language.Indonesian})
)

// MatchLabels picks the label set best matching the given language
// preferences, such as a locale name or an Accept-Language header.
// English is the default.
func MatchLabels(prefs ...string) Labels {
	_, i := language.MatchStrings(labelMatcher, prefs...)
	if i < 0 || i >= len(labelSets) {
		return EnglishLabels
	}
	return labelSets[i]
}

// Score rounds an average half away from zero.
func Score(average float64) int {
	return int(math.Round(average))
}

// Label rounds average and looks up its label.
func (l Labels) Label(average float64) string {
	if name, ok := l.ByScore[Score(average)]; ok {
		return name
	}
	return l.Otherwise
}
