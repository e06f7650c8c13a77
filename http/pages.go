package http

import (
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"fuzzyscore/db"
	"fuzzyscore/fuzzy"
	"fuzzyscore/pipeline"
)

//go:embed templates/*.html
var templateFS embed.FS

func parsePages() *template.Template {
	funcs := template.FuncMap{
		"round2": func(v float64) string { return fmt.Sprintf("%.2f", v) },
	}
	return template.Must(template.New("").Funcs(funcs).ParseFS(templateFS, "templates/*.html"))
}

type indexPage struct {
	Columns []string
	Error   string
	Issues  []string
}

type resultPage struct {
	Result *db.Result
	Label  string
	Lang   string
}

func (h *Handlers) render(w http.ResponseWriter, status int, name string, data interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.pages.ExecuteTemplate(w, name, data); err != nil {
		h.logger.Error("render page", zap.String("page", name), zap.Error(err))
	}
}

func (h *Handlers) handleIndex(w http.ResponseWriter, r *http.Request) {
	h.render(w, http.StatusOK, "index.html", indexPage{Columns: h.svc.Columns()})
}

// handleUpload scores a multipart "file" and redirects to its result page.
// Failures re-render the form with the error.
func (h *Handlers) handleUpload(w http.ResponseWriter, r *http.Request) {
	page := indexPage{Columns: h.svc.Columns()}

	file, header, err := r.FormFile("file")
	if err != nil {
		status := http.StatusBadRequest
		page.Error = "no file part"
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			status = http.StatusRequestEntityTooLarge
			page.Error = "file too large"
		}
		h.render(w, status, "index.html", page)
		return
	}
	defer file.Close()
	if header.Filename == "" {
		page.Error = "no selected file"
		h.render(w, http.StatusBadRequest, "index.html", page)
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		page.Error = "could not read upload"
		h.render(w, http.StatusBadRequest, "index.html", page)
		return
	}

	res, _, err := h.svc.ScoreUpload(r.Context(), header.Filename, data)
	if err != nil {
		status := statusFor(err)
		page.Error = err.Error()
		if status == http.StatusInternalServerError {
			h.logger.Error("upload failed", zap.String("file", header.Filename), zap.Error(err))
			page.Error = "internal server error"
		}
		if issues := rowIssues(err); len(issues) > 0 {
			page.Issues = issues
		}
		h.render(w, status, "index.html", page)
		return
	}

	http.Redirect(w, r, "/result/"+res.ID, http.StatusSeeOther)
}

// handleResultPage shows a stored result, labelled in the language asked for
// by ?lang= or Accept-Language, falling back to the configured locale.
func (h *Handlers) handleResultPage(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Result(r.Context(), r.PathValue("id"))
	if errors.Is(err, db.ErrNotFound) {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	labels := h.labelsFor(r)
	h.render(w, http.StatusOK, "result.html", resultPage{
		Result: res,
		Label:  labels.Label(res.Average),
		Lang:   labels.Tag.String(),
	})
}

func (h *Handlers) labelsFor(r *http.Request) fuzzy.Labels {
	if lang := r.URL.Query().Get("lang"); lang != "" {
		return fuzzy.MatchLabels(lang)
	}
	if accept := r.Header.Get("Accept-Language"); strings.TrimSpace(accept) != "" {
		return fuzzy.MatchLabels(accept)
	}
	return h.svc.Labels()
}

func rowIssues(err error) []string {
	var invalid *pipeline.InvalidRowsError
	if !errors.As(err, &invalid) {
		return nil
	}
	issues := make([]string, 0, len(invalid.Issues))
	for _, issue := range invalid.Issues {
		issues = append(issues, issue.String())
	}
	return issues
}
