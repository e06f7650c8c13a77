package fuzzy

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// BatchResult is the outcome of scoring a batch of records.
type BatchResult struct {
	Count   int       `json:"count"`
	Sum     float64   `json:"sum"`
	Average float64   `json:"average"`
	Score   int       `json:"score"`
	Label   string    `json:"label"`
	Outputs []float64 `json:"outputs,omitempty"`
}

// Aggregator scores batches of records against one engine output.
type Aggregator struct {
	engine  *Engine
	output  string
	labels  Labels
	workers int
}

// AggregatorOption customises an Aggregator.
type AggregatorOption func(*Aggregator)

// WithOutput selects the output variable to average. It is required when the
// engine has more than one output.
func WithOutput(name string) AggregatorOption { return func(a *Aggregator) { a.output = name } }

// WithLabels replaces the English label table.
func WithLabels(l Labels) AggregatorOption { return func(a *Aggregator) { a.labels = l } }

// WithWorkers bounds the number of records evaluated concurrently.
func WithWorkers(n int) AggregatorOption { return func(a *Aggregator) { a.workers = n } }

func NewAggregator(e *Engine, opts ...AggregatorOption) (*Aggregator, error) {
	if e == nil {
		return nil, configErrorf("aggregator", "engine is required")
	}
	a := &Aggregator{engine: e, labels: EnglishLabels, workers: runtime.GOMAXPROCS(0)}
	for _, o := range opts {
		o(a)
	}

	if a.output == "" {
		if len(e.outputs) != 1 {
			return nil, configErrorf("aggregator", "engine has %d outputs, choose one", len(e.outputs))
		}
		a.output = e.outputs[0].Name()
	}
	if v, ok := e.Variable(a.output); !ok || v.Role() != Consequent {
		return nil, configErrorf("aggregator", "%q is not an output variable", a.output)
	}
	if a.workers < 1 {
		a.workers = 1
	}
	return a, nil
}

func (a *Aggregator) Engine() *Engine { return a.engine }
func (a *Aggregator) Output() string  { return a.output }
func (a *Aggregator) Labels() Labels  { return a.labels }

// Aggregate evaluates every record, averages the selected output and labels
// the average. Records run concurrently but the sum is always taken in record
// order. The lowest-index failing record fails the batch.
func (a *Aggregator) Aggregate(ctx context.Context, records []map[string]float64) (BatchResult, error) {
	return a.AggregateWith(ctx, records, a.labels)
}

// AggregateWith is Aggregate with a per-call label table.
func (a *Aggregator) AggregateWith(ctx context.Context, records []map[string]float64, labels Labels) (BatchResult, error) {
	if len(records) == 0 {
		return BatchResult{}, ErrEmptyBatch
	}

	outputs := make([]float64, len(records))
	errs := make([]error, len(records))

	// A failing record does not cancel the others, so the reported error is
	// always the lowest failing index.
	var g errgroup.Group
	g.SetLimit(a.workers)
	for i, rec := range records {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out, err := a.engine.Evaluate(rec)
			if err != nil {
				errs[i] = &RecordError{Index: i, Err: err}
				return nil
			}
			outputs[i] = out[a.output]
			return nil
		})
	}
	waitErr := g.Wait()

	for _, err := range errs {
		if err != nil {
			return BatchResult{}, err
		}
	}
	if waitErr != nil {
		return BatchResult{}, waitErr
	}

	var sum float64
	for _, v := range outputs {
		sum += v
	}
	avg := sum / float64(len(outputs))

	return BatchResult{
		Count:   len(outputs),
		Sum:     sum,
		Average: avg,
		Score:   Score(avg),
		Label:   labels.Label(avg),
		Outputs: outputs,
	}, nil
}
