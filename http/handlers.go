package http

import (
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"fuzzyscore/db"
	"fuzzyscore/fuzzy"
	"fuzzyscore/scoring"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// Handlers serves every route. feed and metrics may be nil, which leaves
// their routes unregistered.
type Handlers struct {
	svc     *scoring.Service
	feed    http.Handler
	metrics http.Handler
	logger  *zap.Logger
	pages   *template.Template
}

func NewHandlers(svc *scoring.Service, feed, metrics http.Handler, logger *zap.Logger) *Handlers {
	return &Handlers{
		svc:     svc,
		feed:    feed,
		metrics: metrics,
		logger:  logger,
		pages:   parsePages(),
	}
}

func (h *Handlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.handleIndex)
	mux.HandleFunc("POST /upload", h.handleUpload)
	mux.HandleFunc("GET /result/{id}", h.handleResultPage)

	mux.HandleFunc("GET /api/health", handleHealth)
	mux.HandleFunc("GET /api/engine", h.handleEngine)
	mux.HandleFunc("POST /api/evaluate", h.handleEvaluate)
	mux.HandleFunc("POST /api/batch", h.handleBatch)
	mux.HandleFunc("GET /api/results", h.handleListResults)
	mux.HandleFunc("GET /api/results/{id}", h.handleGetResult)

	if h.feed != nil {
		mux.Handle("GET /api/ws/results", h.feed)
	}
	if h.metrics != nil {
		mux.Handle("GET /metrics", h.metrics)
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type evaluateRequest struct {
	Inputs  map[string]float64 `json:"inputs"`
	Explain bool               `json:"explain"`
}

type ruleTrace struct {
	Rule     string  `json:"rule"`
	Strength float64 `json:"strength"`
}

type evaluationTrace struct {
	Inputs     map[string]float64            `json:"inputs"`
	Fuzzified  map[string]map[string]float64 `json:"fuzzified"`
	Rules      []ruleTrace                   `json:"rules"`
	Aggregated map[string][]float64          `json:"aggregated"`
	Fallbacks  []string                      `json:"fallbacks,omitempty"`
}

type evaluateResponse struct {
	Outputs map[string]float64 `json:"outputs"`
	Trace   *evaluationTrace   `json:"trace,omitempty"`
}

func (h *Handlers) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.decodeError(w, r, err)
		return
	}
	if len(req.Inputs) == 0 {
		badRequest(w, "inputs are required")
		return
	}

	if !req.Explain {
		out, err := h.svc.Evaluate(req.Inputs)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, evaluateResponse{Outputs: out})
		return
	}

	ev, err := h.svc.Explain(req.Inputs)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	rules := ev.Rules()
	trace := &evaluationTrace{
		Inputs:     ev.Inputs,
		Fuzzified:  ev.Fuzzified,
		Rules:      make([]ruleTrace, len(rules)),
		Aggregated: ev.Aggregated,
		Fallbacks:  ev.Fallbacks,
	}
	for i, rule := range rules {
		trace.Rules[i] = ruleTrace{Rule: rule.String(), Strength: ev.Strengths[i]}
	}
	writeJSON(w, http.StatusOK, evaluateResponse{Outputs: ev.Outputs, Trace: trace})
}

type batchRequest struct {
	Source  string               `json:"source"`
	Records []map[string]float64 `json:"records"`
}

func (h *Handlers) handleBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.decodeError(w, r, err)
		return
	}
	if req.Source == "" {
		req.Source = "api"
	}

	res, err := h.svc.ScoreBatch(r.Context(), req.Source, req.Records)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *Handlers) handleListResults(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			badRequest(w, "limit must be a positive integer")
			return
		}
		limit = min(n, maxListLimit)
	}

	results, err := h.svc.Results(r.Context(), limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"results": results})
}

type resultResponse struct {
	*db.Result
	Records []db.Record `json:"records"`
}

func (h *Handlers) handleGetResult(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	res, err := h.svc.Result(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	records, err := h.svc.Records(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resultResponse{Result: res, Records: records})
}

type termSummary struct {
	Name   string     `json:"name"`
	Points [3]float64 `json:"points"`
}

type variableSummary struct {
	Name     string        `json:"name"`
	Role     string        `json:"role"`
	Universe [3]float64    `json:"universe"`
	Terms    []termSummary `json:"terms"`
}

type engineSummary struct {
	Variables []variableSummary `json:"variables"`
	Rules     []string          `json:"rules"`
	Options   fuzzy.Options     `json:"options"`
	Output    string            `json:"output"`
	Locale    string            `json:"locale"`
}

func (h *Handlers) handleEngine(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, summarizeEngine(h.svc))
}

func summarizeEngine(svc *scoring.Service) engineSummary {
	e := svc.Engine()
	summary := engineSummary{
		Options: e.Options(),
		Output:  svc.Output(),
		Locale:  svc.Labels().Tag.String(),
	}

	vars := append(e.Inputs(), e.Outputs()...)
	for _, v := range vars {
		u := v.Universe()
		vs := variableSummary{
			Name:     v.Name(),
			Role:     v.Role().String(),
			Universe: [3]float64{u.Min(), u.Max(), u.Step()},
		}
		for _, name := range v.Terms() {
			ts := termSummary{Name: name}
			if mf, ok := v.Term(name); ok {
				if tri, ok := mf.(fuzzy.Triangular); ok {
					ts.Points = [3]float64{tri.A, tri.B, tri.C}
				}
			}
			vs.Terms = append(vs.Terms, ts)
		}
		summary.Variables = append(summary.Variables, vs)
	}
	for _, rule := range e.Rules() {
		summary.Rules = append(summary.Rules, rule.String())
	}
	return summary
}

func (h *Handlers) decodeError(w http.ResponseWriter, r *http.Request, err error) {
	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) {
		h.writeError(w, r, err)
		return
	}
	badRequest(w, "invalid JSON body: "+err.Error())
}
