package scoring

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"fuzzyscore/config"
	"fuzzyscore/db"
	"fuzzyscore/fuzzy"
	"fuzzyscore/monitoring"
	"fuzzyscore/pipeline"
)

type recordingFeed struct {
	mu       sync.Mutex
	messages []monitoring.MessageType
}

func (f *recordingFeed) Publish(t monitoring.MessageType, _ interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, t)
	return nil
}

func newTestService(t *testing.T, mutate func(*config.Config)) (*Service, *recordingFeed) {
	t.Helper()
	cfg := config.Default()
	cfg.Database.Path = filepath.Join(t.TempDir(), "results.db")
	cfg.Uploads.Dir = filepath.Join(t.TempDir(), "uploads")
	if mutate != nil {
		mutate(cfg)
	}

	store, err := db.Open(cfg.Database)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	feed := &recordingFeed{}
	svc, err := New(cfg, store, feed, monitoring.NewMetrics(), zap.NewNop())
	require.NoError(t, err)
	return svc, feed
}

func survey(tm, lf float64) map[string]float64 {
	return map[string]float64{fuzzy.TeachingMethod: tm, fuzzy.LearningFacilities: lf}
}

func TestEvaluateUsesCache(t *testing.T) {
	svc, _ := newTestService(t, nil)

	first, err := svc.Evaluate(survey(4, 4))
	require.NoError(t, err)
	assert.InDelta(t, 4.0, first[fuzzy.Satisfaction], 1e-9)

	first[fuzzy.Satisfaction] = 99
	second, err := svc.Evaluate(survey(4, 4))
	require.NoError(t, err)
	assert.InDelta(t, 4.0, second[fuzzy.Satisfaction], 1e-9, "cached entry must not alias caller maps")
	assert.Equal(t, 1, svc.current.Load().cache.Len())

	_, err = svc.Evaluate(survey(9, 4))
	var domainErr *fuzzy.DomainError
	assert.True(t, errors.As(err, &domainErr))
	assert.Equal(t, 1, svc.current.Load().cache.Len())
}

func TestExplain(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ev, err := svc.Explain(survey(2.5, 2.5))
	require.NoError(t, err)
	assert.InDelta(t, 2.5, ev.Outputs[fuzzy.Satisfaction], 1e-9)
	assert.Empty(t, ev.Fallbacks)
}

func TestExplainSurvivesReload(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ev, err := svc.Explain(survey(2.5, 2.5))
	require.NoError(t, err)

	cfg := config.Default()
	extra := cfg.Engine.Rules[0]
	extra.If = extra.If[:1]
	cfg.Engine.Rules = append(cfg.Engine.Rules, extra)
	require.NoError(t, svc.Reload(cfg))
	require.Len(t, svc.Engine().Rules(), 6)

	rules := ev.Rules()
	require.Len(t, rules, len(ev.Strengths))
	assert.Len(t, rules, 5)
	assert.Equal(t, 0.5, ev.Strengths[2])
	assert.Equal(t, "fairly_good", rules[2].Consequent.Term)
}

func TestScoreBatchPersistsAndPublishes(t *testing.T) {
	svc, feed := newTestService(t, nil)
	ctx := context.Background()

	res, err := svc.ScoreBatch(ctx, "api", []map[string]float64{survey(5, 5), survey(1, 1)})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Count)
	assert.InDelta(t, 3.0, res.Average, 1e-9)
	assert.Equal(t, "Fairly Good", res.Label)
	assert.Equal(t, fuzzy.Satisfaction, res.Output)

	stored, err := svc.Result(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, res.Label, stored.Label)

	rows, err := svc.Records(ctx, res.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.InDelta(t, 1.0, rows[1].Output, 1e-9)

	list, err := svc.Results(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, []monitoring.MessageType{monitoring.BatchScored}, feed.messages)
}

func TestScoreBatchErrors(t *testing.T) {
	svc, feed := newTestService(t, nil)
	ctx := context.Background()

	_, err := svc.ScoreBatch(ctx, "api", nil)
	assert.ErrorIs(t, err, fuzzy.ErrEmptyBatch)
	assert.Equal(t, "empty_batch", ErrorKind(err))

	_, err = svc.ScoreBatch(ctx, "api", []map[string]float64{survey(3, 3), {fuzzy.TeachingMethod: 3}})
	var recErr *fuzzy.RecordError
	require.True(t, errors.As(err, &recErr))
	assert.Equal(t, 1, recErr.Index)
	assert.Equal(t, "domain", ErrorKind(err))

	list, err := svc.Results(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Empty(t, feed.messages)
}

func TestScoreUpload(t *testing.T) {
	svc, _ := newTestService(t, nil)
	body := "nama,metode_pengajaran,fasilitas_pembelajaran\nAni,5,5\nBudi,3,3\nCitra,4,4\n"

	res, extraction, err := svc.ScoreUpload(context.Background(), "survey.csv", []byte(body))
	require.NoError(t, err)
	assert.Equal(t, 3, res.Count)
	assert.InDelta(t, 4.0, res.Average, 1e-9)
	assert.Equal(t, "Good", res.Label)
	assert.Equal(t, "survey.csv", res.Source)
	assert.Equal(t, []int{2, 3, 4}, extraction.Rows)

	matches, err := filepath.Glob(filepath.Join(svc.current.Load().uploads.Dir, res.ID+"_survey.csv"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestScoreUploadMismatchedAnswersUseMidpoint(t *testing.T) {
	svc, _ := newTestService(t, nil)
	body := "metode_pengajaran,fasilitas_pembelajaran\n1,5\n5,5\n"

	res, _, err := svc.ScoreUpload(context.Background(), "survey.csv", []byte(body))
	require.NoError(t, err)
	assert.InDelta(t, 4.0, res.Average, 1e-9)
}

func TestScoreUploadErrors(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	_, _, err := svc.ScoreUpload(ctx, "survey.csv", []byte("metode_pengajaran\n5\n"))
	var missing *pipeline.MissingColumnsError
	assert.True(t, errors.As(err, &missing))
	assert.Equal(t, "upload", ErrorKind(err))

	_, _, err = svc.ScoreUpload(ctx, "survey.txt", []byte("x"))
	assert.ErrorIs(t, err, pipeline.ErrUnsupportedFormat)

	_, _, err = svc.ScoreUpload(ctx, "survey.xlsx", []byte("not a zip"))
	var readErr *pipeline.ReadError
	assert.True(t, errors.As(err, &readErr))
	assert.Equal(t, "upload", ErrorKind(err))

	_, _, err = svc.ScoreUpload(ctx, "survey.csv", []byte("a,\"b\n1,2"))
	assert.Equal(t, "upload", ErrorKind(err))

	_, _, err = svc.ScoreUpload(ctx, "survey.csv", []byte("metode_pengajaran,fasilitas_pembelajaran\n"))
	assert.ErrorIs(t, err, fuzzy.ErrEmptyBatch)
}

func TestScoreUploadSkipsInvalidRows(t *testing.T) {
	svc, _ := newTestService(t, func(c *config.Config) { c.Uploads.SkipInvalidRows = true })
	body := "metode_pengajaran,fasilitas_pembelajaran\n5,5\n,3\nbaik,2\n3,3\n"

	res, extraction, err := svc.ScoreUpload(context.Background(), "survey.csv", []byte(body))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Count)
	assert.Len(t, extraction.Issues, 2)
}

func TestReload(t *testing.T) {
	svc, feed := newTestService(t, nil)

	cfg := config.Default()
	cfg.Labels.Locale = "id"
	cfg.Engine.Fallback = "error"
	require.NoError(t, svc.Reload(cfg))
	assert.Equal(t, "Sangat Baik", svc.Labels().Label(5))

	_, err := svc.Evaluate(survey(1, 5))
	assert.Equal(t, "no_rule_fired", ErrorKind(err))

	broken := config.Default()
	broken.Engine.Rules = nil
	err = svc.Reload(broken)
	assert.Equal(t, "configuration", ErrorKind(err))
	assert.Equal(t, "Sangat Baik", svc.Labels().Label(5), "failed reload must keep the running engine")
	assert.Equal(t, []monitoring.MessageType{monitoring.EngineReloaded}, feed.messages)
}

func TestServiceWithoutStore(t *testing.T) {
	svc, err := New(config.Default(), nil, nil, nil, nil)
	require.NoError(t, err)

	res, err := svc.ScoreBatch(context.Background(), "cli", []map[string]float64{survey(2, 2)})
	require.NoError(t, err)
	assert.Equal(t, "Poor", res.Label)

	_, err = svc.Result(context.Background(), res.ID)
	assert.ErrorIs(t, err, ErrNoStore)
}

func TestCacheKey(t *testing.T) {
	e, err := fuzzy.SatisfactionEngine()
	require.NoError(t, err)

	a, ok := cacheKey(e, map[string]float64{fuzzy.TeachingMethod: 2.5, fuzzy.LearningFacilities: 3, "extra": 1})
	require.True(t, ok)
	b, _ := cacheKey(e, survey(2.5, 3))
	assert.Equal(t, a, b)
	assert.True(t, strings.Contains(a, `"teaching_method"=2.5;`))

	_, ok = cacheKey(e, map[string]float64{fuzzy.TeachingMethod: 2.5})
	assert.False(t, ok)
}

func TestCacheKeyQuotesSeparators(t *testing.T) {
	u, err := fuzzy.NewUniverse(0, 2, 1)
	require.NoError(t, err)
	tri, err := fuzzy.NewTriangular(0, 1, 2)
	require.NoError(t, err)

	var vars []*fuzzy.Variable
	for _, name := range []string{"a", "a=1;b", "out"} {
		role := fuzzy.Antecedent
		if name == "out" {
			role = fuzzy.Consequent
		}
		v, err := fuzzy.NewVariable(name, role, u, fuzzy.Term{Name: "mid", Function: tri})
		require.NoError(t, err)
		vars = append(vars, v)
	}
	e, err := fuzzy.Compile(vars, []fuzzy.Rule{
		fuzzy.NewRule(fuzzy.Clause{Variable: "out", Term: "mid"}, fuzzy.Clause{Variable: "a", Term: "mid"}),
	})
	require.NoError(t, err)

	key, ok := cacheKey(e, map[string]float64{"a": 1, "a=1;b": 2})
	require.True(t, ok)
	assert.Equal(t, `"a"=1;"a=1;b"=2;`, key)

	other, _ := cacheKey(e, map[string]float64{"a": 2, "a=1;b": 1})
	assert.NotEqual(t, key, other)
}

func TestErrorKind(t *testing.T) {
	assert.Equal(t, "", ErrorKind(nil))
	assert.Equal(t, "canceled", ErrorKind(context.Canceled))
	assert.Equal(t, "internal", ErrorKind(errors.New("disk full")))
	assert.Equal(t, "upload", ErrorKind(&pipeline.ReadError{Filename: "a.csv", Err: errors.New("bad quote")}))
}
