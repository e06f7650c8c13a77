package pipeline

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Row is one data row being validated. Number is the 1-based line in the
// source file, counting the header.
type Row struct {
	Number int
	Cells  map[string]string
	Values map[string]float64
}

// RowRule validates or converts a row.
type RowRule interface {
	Apply(*Row) error
	Name() string
}

// RowIssue describes a rejected row.
type RowIssue struct {
	Row     int    `json:"row"`
	Rule    string `json:"rule"`
	Column  string `json:"column"`
	Message string `json:"message"`
}

func (i RowIssue) String() string {
	return fmt.Sprintf("row %d, column %q: %s", i.Row, i.Column, i.Message)
}

// MissingColumnsError lists required columns absent from the header.
type MissingColumnsError struct {
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return "missing required columns: " + strings.Join(e.Columns, ", ")
}

// InvalidRowsError is returned when rows fail validation and skipping is off.
type InvalidRowsError struct {
	Issues []RowIssue
}

func (e *InvalidRowsError) Error() string {
	if len(e.Issues) == 1 {
		return "invalid row: " + e.Issues[0].String()
	}
	return fmt.Sprintf("%d invalid rows, first: %s", len(e.Issues), e.Issues[0])
}

// ExtractStats accumulates over every Extract call.
type ExtractStats struct {
	TotalProcessed int64            `json:"total_processed"`
	Passed         int64            `json:"passed"`
	Rejected       int64            `json:"rejected"`
	Issues         map[string]int64 `json:"issues"`
	LastRun        time.Time        `json:"last_run"`
}

// Extraction is the result of one Extract call.
type Extraction struct {
	Records []map[string]float64
	Rows    []int
	Issues  []RowIssue
}

// Extractor maps table columns onto engine input variables.
type Extractor struct {
	columns     map[string]string
	rules       []RowRule
	skipInvalid bool

	stats     ExtractStats
	statsLock sync.RWMutex
}

// NewExtractor takes variable -> column. The default rules require a value
// in every mapped column and parse it as a number.
func NewExtractor(columns map[string]string, skipInvalid bool) *Extractor {
	ex := &Extractor{
		columns:     columns,
		skipInvalid: skipInvalid,
		stats:       ExtractStats{Issues: make(map[string]int64)},
	}
	ex.AddRule(RequiredValueRule{})
	ex.AddRule(NumericRule{})
	return ex
}

func (ex *Extractor) AddRule(rule RowRule) {
	ex.rules = append(ex.rules, rule)
}

// Columns returns the mapped column names, sorted.
func (ex *Extractor) Columns() []string {
	cols := make([]string, 0, len(ex.columns))
	for _, c := range ex.columns {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols
}

// Extract validates every row and returns one record per passing row, keyed
// by variable name.
func (ex *Extractor) Extract(t *Table) (*Extraction, error) {
	index := make(map[string]int, len(t.Header))
	for i, name := range t.Header {
		if _, dup := index[name]; !dup {
			index[name] = i
		}
	}

	var missing []string
	for _, col := range ex.Columns() {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingColumnsError{Columns: missing}
	}

	ex.statsLock.Lock()
	defer ex.statsLock.Unlock()

	out := &Extraction{}
	for i, cells := range t.Rows {
		row := &Row{
			Number: i + 2,
			Cells:  make(map[string]string, len(ex.columns)),
			Values: make(map[string]float64, len(ex.columns)),
		}
		for _, col := range ex.columns {
			row.Cells[col] = ""
			if j := index[col]; j < len(cells) {
				row.Cells[col] = strings.TrimSpace(cells[j])
			}
		}

		ex.stats.TotalProcessed++
		rejected := false
		for _, rule := range ex.rules {
			if err := rule.Apply(row); err != nil {
				issue := RowIssue{Row: row.Number, Rule: rule.Name(), Message: err.Error()}
				var ce *cellError
				if errors.As(err, &ce) {
					issue.Column, issue.Message = ce.column, ce.msg
				}
				out.Issues = append(out.Issues, issue)
				ex.stats.Issues[rule.Name()]++
				rejected = true
				break
			}
		}
		if rejected {
			ex.stats.Rejected++
			continue
		}

		record := make(map[string]float64, len(ex.columns))
		for variable, col := range ex.columns {
			record[variable] = row.Values[col]
		}
		ex.stats.Passed++
		out.Records = append(out.Records, record)
		out.Rows = append(out.Rows, row.Number)
	}
	ex.stats.LastRun = time.Now()

	if len(out.Issues) > 0 && !ex.skipInvalid {
		return nil, &InvalidRowsError{Issues: out.Issues}
	}
	return out, nil
}

func (ex *Extractor) GetStats() ExtractStats {
	ex.statsLock.RLock()
	defer ex.statsLock.RUnlock()

	stats := ex.stats
	stats.Issues = make(map[string]int64, len(ex.stats.Issues))
	for k, v := range ex.stats.Issues {
		stats.Issues[k] = v
	}
	return stats
}

type cellError struct {
	column string
	msg    string
}

func (e *cellError) Error() string {
	return fmt.Sprintf("column %q: %s", e.column, e.msg)
}

// ============ row rules ============

// RequiredValueRule rejects rows with an empty mapped cell.
type RequiredValueRule struct{}

func (RequiredValueRule) Name() string {
	return "required_value"
}

func (RequiredValueRule) Apply(row *Row) error {
	for _, col := range sortedKeys(row.Cells) {
		if row.Cells[col] == "" {
			return &cellError{column: col, msg: "value is empty"}
		}
	}
	return nil
}

// NumericRule parses every mapped cell as a finite number. A decimal comma
// is accepted when the cell has no dot.
type NumericRule struct{}

func (NumericRule) Name() string {
	return "numeric"
}

func (NumericRule) Apply(row *Row) error {
	for _, col := range sortedKeys(row.Cells) {
		raw := row.Cells[col]
		if !strings.Contains(raw, ".") {
			raw = strings.Replace(raw, ",", ".", 1)
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return &cellError{column: col, msg: fmt.Sprintf("%q is not a number", row.Cells[col])}
		}
		row.Values[col] = v
	}
	return nil
}

// sortedKeys keeps issue reporting deterministic.
func sortedKeys(cells map[string]string) []string {
	keys := make([]string, 0, len(cells))
	for k := range cells {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
