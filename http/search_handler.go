package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/yourorg/commune-insights/geo"
)

type CommuneSearcher interface {
	Search(ctx context.Context, text string, limit int) ([]geo.Municipality, error)
}

type SearchDeps struct {
	Geo CommuneSearcher
}

type SearchRequest struct {
	Query string `json:"q"`
	Limit *int   `json:"limit,omitempty"`
}

const (
	defaultSearchLimit = 10
	maxSearchLimit     = 20
	minQueryLength     = 2
)

func defInt(v *int, d int) int {
	if v == nil {
		return d
	}
	return *v
}

func RegisterSearch(r chi.Router, d SearchDeps) {
	// POST: JSON body
	r.Post("/communes/search", func(w http.ResponseWriter, req *http.Request) {
		var body SearchRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			Fail(w, req, http.StatusBadRequest, "invalid_json", err.Error())
			return
		}
		handleSearch(w, req, d, body)
	})

	// GET: query params
	r.Get("/communes/search", func(w http.ResponseWriter, req *http.Request) {
		q := req.URL.Query()
		body := SearchRequest{Query: q.Get("q")}
		if v := q.Get("limit"); v != "" {
			if i, err := strconv.Atoi(v); err == nil {
				body.Limit = &i
			}
		}
		handleSearch(w, req, d, body)
	})
}

func handleSearch(w http.ResponseWriter, req *http.Request, d SearchDeps, body SearchRequest) {
	text := strings.TrimSpace(body.Query)
	limit := defInt(body.Limit, defaultSearchLimit)
	if limit <= 0 || limit > maxSearchLimit {
		limit = maxSearchLimit
	}
	communes := []geo.Municipality{}
	if utf8.RuneCountInString(text) >= minQueryLength {
		found, err := d.Geo.Search(req.Context(), text, limit)
		if err != nil {
			Fail(w, req, http.StatusBadGateway, "upstream_error", err.Error())
			return
		}
		communes = found
	}
	render.JSON(w, req, map[string]any{
		"ok":       true,
		"count":    len(communes),
		"communes": communes,
	})
}

// Fail writes the JSON error envelope.
func Fail(w http.ResponseWriter, req *http.Request, status int, code, detail string) {
	render.Status(req, status)
	body := map[string]any{"error": code}
	if detail != "" {
		body["detail"] = detail
	}
	render.JSON(w, req, body)
}
