package v1

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"

	"github.com/yourorg/commune-insights/geo"
	httpapi "github.com/yourorg/commune-insights/http"
	"github.com/yourorg/commune-insights/internal/export"
	"github.com/yourorg/commune-insights/internal/pipeline"
	"github.com/yourorg/commune-insights/internal/session"
)

type Starter interface {
	Start(ctx context.Context, query string) (*pipeline.Run, error)
}

type AnalysesDeps struct {
	Analyzer Starter
	Sessions session.Store
	Tracker  *session.Tracker
	Logger   *logrus.Logger
}

type AnalysisRequest struct {
	Query string `json:"query"`
	Slot  string `json:"slot"`
}

const DefaultSlot = "default"

func RegisterAnalyses(r chi.Router, d AnalysesDeps) {
	r.Route("/v1/analyses", func(r chi.Router) {
		r.Post("/", func(w http.ResponseWriter, req *http.Request) {
			var body AnalysisRequest
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				httpapi.Fail(w, req, http.StatusBadRequest, "invalid_json", err.Error())
				return
			}
			analyze(w, req, d, body)
		})
		r.Get("/", func(w http.ResponseWriter, req *http.Request) {
			q := req.URL.Query()
			analyze(w, req, d, AnalysisRequest{Query: q.Get("q"), Slot: q.Get("slot")})
		})
		r.Get("/{slot}", func(w http.ResponseWriter, req *http.Request) {
			s, ok := current(w, req, d)
			if !ok {
				return
			}
			render.JSON(w, req, map[string]any{
				"ok":      true,
				"slot":    chi.URLParam(req, "slot"),
				"settled": s.Settled(),
				"session": s,
			})
		})
		r.Get("/{slot}/tables/{file}", func(w http.ResponseWriter, req *http.Request) {
			s, ok := current(w, req, d)
			if !ok {
				return
			}
			table(w, req, s)
		})
	})
}

func analyze(w http.ResponseWriter, req *http.Request, d AnalysesDeps, body AnalysisRequest) {
	query := strings.TrimSpace(body.Query)
	if query == "" {
		httpapi.Fail(w, req, http.StatusBadRequest, "query_required", "a commune name or code is required")
		return
	}
	slot := strings.TrimSpace(body.Slot)
	if slot == "" {
		slot = DefaultSlot
	}
	run, err := d.Analyzer.Start(req.Context(), query)
	if errors.Is(err, geo.ErrNotFound) {
		httpapi.Fail(w, req, http.StatusNotFound, "not_found", fmt.Sprintf("no commune matches %q", query))
		return
	}
	if err != nil {
		httpapi.Fail(w, req, http.StatusBadGateway, "analysis_failed", err.Error())
		return
	}
	if _, err := d.Tracker.Track(req.Context(), slot, run); err != nil {
		if d.Logger != nil {
			d.Logger.WithError(err).WithField("slot", slot).Error("session store unavailable")
		}
		httpapi.Fail(w, req, http.StatusInternalServerError, "session_store_error", "")
		return
	}
	render.JSON(w, req, map[string]any{
		"ok":      true,
		"slot":    slot,
		"settled": run.Session.Settled(),
		"session": run.Session,
	})
}

func current(w http.ResponseWriter, req *http.Request, d AnalysesDeps) (*pipeline.Session, bool) {
	slot := chi.URLParam(req, "slot")
	s, err := d.Sessions.Current(req.Context(), slot)
	if errors.Is(err, session.ErrNoSession) {
		httpapi.Fail(w, req, http.StatusNotFound, "no_session", "no analysis in slot "+slot)
		return nil, false
	}
	if err != nil {
		httpapi.Fail(w, req, http.StatusInternalServerError, "session_store_error", err.Error())
		return nil, false
	}
	return s, true
}

func table(w http.ResponseWriter, req *http.Request, s *pipeline.Session) {
	name := strings.TrimSuffix(chi.URLParam(req, "file"), ".csv")
	wb := export.Project(s)
	for _, t := range wb.Tables {
		if !strings.EqualFold(t.Name, name) {
			continue
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName(wb.Prefix, t.Name)))
		if err := export.WriteTable(w, t); err != nil {
			httpapi.Fail(w, req, http.StatusInternalServerError, "export_error", err.Error())
		}
		return
	}
	httpapi.Fail(w, req, http.StatusNotFound, "unknown_table", name)
}
