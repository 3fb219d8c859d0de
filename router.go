package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-chi/render"

	httpapi "github.com/yourorg/commune-insights/http"
	httpv1 "github.com/yourorg/commune-insights/http/v1"
	"github.com/yourorg/commune-insights/internal/app"
)

func BuildRouter(a *app.App) http.Handler {
	r := chi.NewRouter()
	r.Use(httprate.LimitByIP(100, 1*time.Minute)) // protect upstream quota
	r.Use(render.SetContentType(render.ContentTypeJSON))
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte(`{"ok":true}`)) })

	httpapi.RegisterSearch(r, httpapi.SearchDeps{Geo: a.Geo})
	httpv1.RegisterAnalyses(r, httpv1.AnalysesDeps{
		Analyzer: a.Analyzer,
		Sessions: a.Sessions,
		Tracker:  a.Tracker(),
		Logger:   a.Logger,
	})
	return r
}
