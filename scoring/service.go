// Package scoring runs evaluations and batch scoring against the configured
// engine and records the results.
package scoring

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"fuzzyscore/config"
	"fuzzyscore/db"
	"fuzzyscore/fuzzy"
	"fuzzyscore/monitoring"
	"fuzzyscore/pipeline"
)

// ErrNoStore is returned by lookups on a service built without a store.
var ErrNoStore = errors.New("no result store configured")

// ResultStore persists scored batches.
type ResultStore interface {
	SaveResult(ctx context.Context, res db.Result, records []db.Record) error
	GetResult(ctx context.Context, id string) (*db.Result, error)
	ListResults(ctx context.Context, limit int) ([]db.Result, error)
	Records(ctx context.Context, id string) ([]db.Record, error)
}

// Publisher receives a message for every scored batch and engine reload.
type Publisher interface {
	Publish(t monitoring.MessageType, data interface{}) error
}

// state is everything derived from one configuration. It is replaced
// wholesale on reload and never mutated.
type state struct {
	engine     *fuzzy.Engine
	aggregator *fuzzy.Aggregator
	extractor  *pipeline.Extractor
	cache      *lru.Cache[string, map[string]float64]
	uploads    config.UploadConfig
}

// Service is safe for concurrent use. store, feed and metrics may be nil.
type Service struct {
	current atomic.Pointer[state]

	store   ResultStore
	feed    Publisher
	metrics *monitoring.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

func New(cfg *config.Config, store ResultStore, feed Publisher, metrics *monitoring.Metrics, logger *zap.Logger) (*Service, error) {
	st, err := buildState(cfg)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		store:   store,
		feed:    feed,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
	s.current.Store(st)
	return s, nil
}

func buildState(cfg *config.Config) (*state, error) {
	engine, err := cfg.Engine.Build()
	if err != nil {
		return nil, err
	}

	opts := []fuzzy.AggregatorOption{fuzzy.WithLabels(cfg.LabelSet())}
	if cfg.Engine.Output != "" {
		opts = append(opts, fuzzy.WithOutput(cfg.Engine.Output))
	}
	if cfg.Engine.Workers > 0 {
		opts = append(opts, fuzzy.WithWorkers(cfg.Engine.Workers))
	}
	agg, err := fuzzy.NewAggregator(engine, opts...)
	if err != nil {
		return nil, err
	}

	st := &state{
		engine:     engine,
		aggregator: agg,
		extractor:  pipeline.NewExtractor(cfg.Engine.Columns(), cfg.Uploads.SkipInvalidRows),
		uploads:    cfg.Uploads,
	}
	if cfg.Engine.CacheSize > 0 {
		st.cache, err = lru.New[string, map[string]float64](cfg.Engine.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("create evaluation cache: %w", err)
		}
	}
	return st, nil
}

func (s *Service) Engine() *fuzzy.Engine { return s.current.Load().engine }
func (s *Service) Labels() fuzzy.Labels  { return s.current.Load().aggregator.Labels() }
func (s *Service) Output() string        { return s.current.Load().aggregator.Output() }

// Columns lists the upload columns the engine inputs are read from.
func (s *Service) Columns() []string { return s.current.Load().extractor.Columns() }

// Evaluate scores one record, consulting the cache first.
func (s *Service) Evaluate(inputs map[string]float64) (map[string]float64, error) {
	st := s.current.Load()
	s.observeEvaluation("single")

	key, cacheable := cacheKey(st.engine, inputs)
	if cacheable && st.cache != nil {
		if out, ok := st.cache.Get(key); ok {
			s.cacheHit(true)
			return copyOutputs(out), nil
		}
		s.cacheHit(false)
	}

	out, err := st.engine.Evaluate(inputs)
	if err != nil {
		s.observeError(err)
		return nil, err
	}
	if cacheable && st.cache != nil {
		st.cache.Add(key, copyOutputs(out))
	}
	return out, nil
}

// Explain scores one record and returns the full trace. It bypasses the cache.
func (s *Service) Explain(inputs map[string]float64) (*fuzzy.Evaluation, error) {
	s.observeEvaluation("explain")
	ev, err := s.current.Load().engine.Explain(inputs)
	if err != nil {
		s.observeError(err)
		return nil, err
	}
	return ev, nil
}

// ScoreBatch aggregates records and stores the result under a new id.
func (s *Service) ScoreBatch(ctx context.Context, source string, records []map[string]float64) (*db.Result, error) {
	return s.scoreBatch(ctx, s.current.Load(), uuid.NewString(), source, records)
}

// ScoreUpload reads an uploaded .csv or .xlsx file, extracts the engine
// inputs and scores them as one batch.
func (s *Service) ScoreUpload(ctx context.Context, filename string, data []byte) (*db.Result, *pipeline.Extraction, error) {
	st := s.current.Load()
	id := uuid.NewString()

	if st.uploads.Dir != "" {
		if path, err := pipeline.Archive(st.uploads.Dir, id, filename, data); err != nil {
			s.logger.Warn("upload not archived", zap.String("file", filename), zap.Error(err))
		} else {
			s.logger.Debug("upload archived", zap.String("path", path))
		}
	}

	table, err := pipeline.ReadTable(filename, bytes.NewReader(data), st.uploads.Encoding)
	if err != nil {
		s.observeError(err)
		return nil, nil, err
	}
	extraction, err := st.extractor.Extract(table)
	if err != nil {
		s.observeError(err)
		return nil, nil, err
	}
	if len(extraction.Issues) > 0 {
		s.logger.Warn("skipped invalid rows",
			zap.String("file", filename),
			zap.Int("skipped", len(extraction.Issues)),
			zap.String("first", extraction.Issues[0].String()))
	}

	res, err := s.scoreBatch(ctx, st, id, filename, extraction.Records)
	if err != nil {
		return nil, extraction, err
	}
	return res, extraction, nil
}

func (s *Service) scoreBatch(ctx context.Context, st *state, id, source string, records []map[string]float64) (*db.Result, error) {
	start := s.now()
	batch, err := st.aggregator.Aggregate(ctx, records)
	if s.metrics != nil {
		s.metrics.ObserveBatch(len(records), time.Since(start), err)
	}
	if err != nil {
		s.observeError(err)
		s.logger.Info("batch rejected", zap.String("source", source), zap.Int("records", len(records)), zap.Error(err))
		return nil, err
	}

	res := db.Result{
		ID:        id,
		Source:    source,
		Output:    st.aggregator.Output(),
		Count:     batch.Count,
		Sum:       batch.Sum,
		Average:   batch.Average,
		Score:     batch.Score,
		Label:     batch.Label,
		CreatedAt: s.now().UTC(),
	}

	if s.store != nil {
		rows := make([]db.Record, len(records))
		for i, rec := range records {
			rows[i] = db.Record{Index: i, Inputs: rec, Output: batch.Outputs[i]}
		}
		if err := s.store.SaveResult(ctx, res, rows); err != nil {
			return nil, fmt.Errorf("save result: %w", err)
		}
	}
	if s.feed != nil {
		if err := s.feed.Publish(monitoring.BatchScored, res); err != nil {
			s.logger.Warn("result not published", zap.String("id", id), zap.Error(err))
		}
	}

	s.logger.Info("batch scored",
		zap.String("id", id),
		zap.String("source", source),
		zap.Int("count", res.Count),
		zap.Float64("average", res.Average),
		zap.String("label", res.Label),
		zap.Duration("elapsed", time.Since(start)))
	return &res, nil
}

func (s *Service) Result(ctx context.Context, id string) (*db.Result, error) {
	if s.store == nil {
		return nil, ErrNoStore
	}
	return s.store.GetResult(ctx, id)
}

func (s *Service) Results(ctx context.Context, limit int) ([]db.Result, error) {
	if s.store == nil {
		return nil, ErrNoStore
	}
	return s.store.ListResults(ctx, limit)
}

func (s *Service) Records(ctx context.Context, id string) ([]db.Record, error) {
	if s.store == nil {
		return nil, ErrNoStore
	}
	return s.store.Records(ctx, id)
}

// Reload compiles cfg and swaps it in. On error the running engine is kept.
// In-flight calls finish on the engine they started with.
func (s *Service) Reload(cfg *config.Config) error {
	st, err := buildState(cfg)
	if s.metrics != nil {
		s.metrics.ObserveReload(err)
	}
	if err != nil {
		s.logger.Error("engine reload rejected", zap.Error(err))
		return err
	}
	s.current.Store(st)

	summary := map[string]interface{}{
		"output": st.aggregator.Output(),
		"rules":  len(st.engine.Rules()),
		"locale": st.aggregator.Labels().Tag.String(),
	}
	if s.feed != nil {
		if err := s.feed.Publish(monitoring.EngineReloaded, summary); err != nil {
			s.logger.Warn("reload not published", zap.Error(err))
		}
	}
	s.logger.Info("engine reloaded", zap.Any("engine", summary))
	return nil
}

// ErrorKind classifies an error for metrics and HTTP status mapping.
func ErrorKind(err error) string {
	var (
		domainErr  *fuzzy.DomainError
		noRuleErr  *fuzzy.NoRuleFiredError
		cfgErr     *fuzzy.ConfigurationError
		missingErr *pipeline.MissingColumnsError
		invalidErr *pipeline.InvalidRowsError
		readErr    *pipeline.ReadError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &domainErr):
		return "domain"
	case errors.As(err, &noRuleErr):
		return "no_rule_fired"
	case errors.As(err, &cfgErr):
		return "configuration"
	case errors.Is(err, fuzzy.ErrEmptyBatch):
		return "empty_batch"
	case errors.As(err, &missingErr), errors.As(err, &invalidErr), errors.As(err, &readErr),
		errors.Is(err, pipeline.ErrUnsupportedFormat):
		return "upload"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "internal"
	}
}

func (s *Service) observeEvaluation(mode string) {
	if s.metrics != nil {
		s.metrics.ObserveEvaluation(mode)
	}
}

func (s *Service) observeError(err error) {
	if s.metrics != nil {
		s.metrics.ObserveError(ErrorKind(err))
	}
}

func (s *Service) cacheHit(hit bool) {
	if s.metrics == nil {
		return
	}
	if hit {
		s.metrics.CacheHit()
	} else {
		s.metrics.CacheMiss()
	}
}

// cacheKey is built from the engine's inputs only, so extra keys share
// entries. Names are quoted since they may contain the separators. Records
// missing an input or holding NaN are not cached.
func cacheKey(e *fuzzy.Engine, inputs map[string]float64) (string, bool) {
	vars := e.Inputs()
	names := make([]string, len(vars))
	for i, v := range vars {
		names[i] = v.Name()
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		x, ok := inputs[name]
		if !ok || math.IsNaN(x) {
			return "", false
		}
		b.WriteString(strconv.Quote(name))
		b.WriteByte('=')
		b.WriteString(strconv.FormatFloat(x, 'g', -1, 64))
		b.WriteByte(';')
	}
	return b.String(), true
}

func copyOutputs(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
