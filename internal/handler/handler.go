package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/scoresheet/internal/advisor"
	"github.com/pavelanni/scoresheet/internal/analysis"
	"github.com/pavelanni/scoresheet/internal/answerkey"
	"github.com/pavelanni/scoresheet/internal/handler/views"
	"github.com/pavelanni/scoresheet/internal/i18n"
	"github.com/pavelanni/scoresheet/internal/model"
	"github.com/pavelanni/scoresheet/internal/scoring"
	"github.com/pavelanni/scoresheet/internal/store"
	"github.com/pavelanni/scoresheet/internal/workbook"
)

// DefaultMaxUpload is the upload limit used when none is configured.
const DefaultMaxUpload = 10 << 20

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store   *store.Store
	advisor *advisor.Client
	key     model.ExamKey
	config  model.ServerConfig
}

// New creates a new Handler. The advisor may be nil, which disables the
// advice page. Only structural key errors are fatal; questions missing from
// one of the key tables are skipped per column when scoring.
func New(s *store.Store, a *advisor.Client, key model.ExamKey, cfg model.ServerConfig) (*Handler, error) {
	if err := answerkey.Validate(key); err != nil {
		return nil, fmt.Errorf("answer key: %w", err)
	}
	if cfg.MaxUpload <= 0 {
		cfg.MaxUpload = DefaultMaxUpload
	}
	return &Handler{store: s, advisor: a, key: key, config: cfg}, nil
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.handleIndex)
	r.Post("/upload", h.handleUpload)
	r.Route("/report/{reportID}", func(r chi.Router) {
		r.Get("/", h.handleReport)
		r.Get("/sheet/{sheet}", h.handleSheet)
		r.Get("/records.json", h.handleRecordsJSON)
		r.Get("/export.xlsx", h.handleExportXLSX)
		r.Get("/advice", h.handleAdvice)
	})
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	reports, err := h.store.ListReports()
	if err != nil {
		h.serverError(w, r, "list reports", err)
		return
	}
	h.render(w, r, http.StatusOK, views.IndexPage(reports, h.key))
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.config.MaxUpload)
	if err := r.ParseMultipartForm(h.config.MaxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.renderError(w, r, http.StatusRequestEntityTooLarge, "ErrTooLarge", nil)
			return
		}
		h.renderError(w, r, http.StatusBadRequest, "ErrMissingFile", nil)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("workbook")
	if err != nil {
		h.renderError(w, r, http.StatusBadRequest, "ErrMissingFile", nil)
		return
	}
	defer file.Close()

	res, err := analysis.Analyze(r.Context(), file, header.Filename, h.key)
	switch {
	case errors.Is(err, workbook.ErrInvalidFormat):
		slog.Warn("rejected upload", "file", header.Filename, "error", err)
		h.renderError(w, r, http.StatusBadRequest, "ErrInvalidWorkbook", nil)
		return
	case errors.Is(err, analysis.ErrNoRecords):
		slog.Warn("nothing computed from upload", "file", header.Filename, "warnings", len(res.Report.Warnings))
		h.renderError(w, r, http.StatusUnprocessableEntity, "ErrNoRecords", res.Report.Warnings)
		return
	case err != nil:
		h.serverError(w, r, "analyze workbook", err)
		return
	}

	if err := h.store.SaveReport(res.Report, res.Sheets); err != nil {
		h.serverError(w, r, "save report", err)
		return
	}
	if h.config.MaxReports > 0 {
		if _, err := h.store.Prune(h.config.MaxReports); err != nil {
			slog.Error("prune reports", "error", err)
		}
	}

	http.Redirect(w, r, "/report/"+url.PathEscape(res.Report.ID), http.StatusSeeOther)
}

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	report, ok := h.loadReport(w, r)
	if !ok {
		return
	}
	sortBy := r.URL.Query().Get("sort")
	if sortBy != views.SortPercent && sortBy != views.SortPercentDesc {
		sortBy = ""
	}
	h.render(w, r, http.StatusOK, views.ReportPage(report, h.config.Threshold, h.advisor != nil, sortBy))
}

func (h *Handler) handleSheet(w http.ResponseWriter, r *http.Request) {
	report, ok := h.loadReport(w, r)
	if !ok {
		return
	}
	sheet := urlParam(r, "sheet")
	records, err := h.store.GetSheetRecords(report.ID, sheet)
	if err != nil {
		h.serverError(w, r, "sheet records", err)
		return
	}
	if len(records) == 0 {
		h.renderError(w, r, http.StatusNotFound, "ErrNotFound", nil)
		return
	}

	var raw *model.RawSheet
	if r.URL.Query().Get("raw") == "1" {
		s, err := h.store.GetSheet(report.ID, sheet)
		if err != nil {
			h.serverError(w, r, "raw sheet", err)
			return
		}
		raw = &s
	}
	h.render(w, r, http.StatusOK, views.SheetPage(report, sheet, records, raw))
}

func (h *Handler) handleRecordsJSON(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	export, err := h.store.ExportReport(urlParam(r, "reportID"), q.Get("sheet"), q.Get("raw") == "1")
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("export report", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(export); err != nil {
		slog.Error("encode export", "error", err)
	}
}

func (h *Handler) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	report, ok := h.loadReport(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := workbook.WriteReport(&buf, report); err != nil {
		h.serverError(w, r, "write workbook", err)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", exportName(report.FileName)))
	if _, err := buf.WriteTo(w); err != nil {
		slog.Error("send workbook", "error", err)
	}
}

func (h *Handler) handleAdvice(w http.ResponseWriter, r *http.Request) {
	report, ok := h.loadReport(w, r)
	if !ok {
		return
	}
	weak := scoring.Weakest(report.ByDescriptor, h.config.Threshold)
	if h.advisor == nil {
		h.render(w, r, http.StatusNotFound, views.AdvicePage(report, weak, nil, "AdviceDisabled"))
		return
	}

	lang := h.config.Lang
	if q := r.URL.Query().Get("lang"); q != "" && i18n.Supported(q) {
		lang = q
	}
	advice, err := h.advisor.Advise(r.Context(), lang, h.config.Threshold, weak)
	if err != nil {
		slog.Error("advisor failed", "report_id", report.ID, "error", err)
		h.render(w, r, http.StatusBadGateway, views.AdvicePage(report, weak, nil, "AdviceFailed"))
		return
	}
	h.render(w, r, http.StatusOK, views.AdvicePage(report, weak, advice, ""))
}

// loadReport fetches the report named in the URL, writing an error page if
// it is not cached.
func (h *Handler) loadReport(w http.ResponseWriter, r *http.Request) (*model.Report, bool) {
	report, err := h.store.GetReport(urlParam(r, "reportID"))
	if errors.Is(err, store.ErrNotFound) {
		h.renderError(w, r, http.StatusNotFound, "ErrNotFound", nil)
		return nil, false
	}
	if err != nil {
		h.serverError(w, r, "get report", err)
		return nil, false
	}
	return report, true
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := c.Render(r.Context(), w); err != nil {
		slog.Error("render error", "error", err)
	}
}

func (h *Handler) renderError(w http.ResponseWriter, r *http.Request, status int, msgID string, warnings []model.Warning) {
	h.render(w, r, status, views.ErrorPage(msgID, warnings))
}

func (h *Handler) serverError(w http.ResponseWriter, r *http.Request, op string, err error) {
	slog.Error(op, "path", r.URL.Path, "error", err)
	h.renderError(w, r, http.StatusInternalServerError, "ErrInternal", nil)
}

// urlParam returns a decoded route parameter. chi matches on the escaped
// path when the request carries one.
func urlParam(r *http.Request, name string) string {
	v := chi.URLParam(r, name)
	if r.URL.RawPath == "" {
		return v
	}
	if decoded, err := url.PathUnescape(v); err == nil {
		return decoded
	}
	return v
}

func exportName(fileName string) string {
	base := strings.TrimSuffix(filepath.Base(fileName), filepath.Ext(fileName))
	if base == "" || base == "." {
		base = "relatorio"
	}
	return base + "-descritores.xlsx"
}
