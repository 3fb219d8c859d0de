package pipeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/yourorg/commune-insights/dvf"
	"github.com/yourorg/commune-insights/geo"
	"github.com/yourorg/commune-insights/internal/stats"
	"github.com/yourorg/commune-insights/scrape"
)

// ErrSuperseded rejects a late update aimed at a session that is no longer
// the current one.
var ErrSuperseded = errors.New("session superseded")

// Session is the complete result of one analysis run. It is created fresh
// for every run; only the two late categories change after it is returned,
// and only through Merge.
type Session struct {
	ID           string               `json:"id"`
	Query        string               `json:"query"`
	StartedAt    time.Time            `json:"started_at"`
	Municipality geo.Municipality     `json:"municipality"`
	Transactions []dvf.Transaction    `json:"transactions"`
	Stats        stats.Bundle         `json:"stats"`
	Outcomes     map[Category]Outcome `json:"outcomes"`

	Prices       *scrape.PriceEstimate      `json:"prices,omitempty"`
	Demographics *scrape.DemographicProfile `json:"demographics,omitempty"`

	// Failures holds the reason a late category ended Exhausted.
	Failures map[Category]string `json:"failures,omitempty"`
}

// LateUpdate carries the result of one late category, failure included.
type LateUpdate struct {
	SessionID    string                     `json:"session_id"`
	Category     Category                   `json:"category"`
	Outcome      Outcome                    `json:"outcome"`
	Prices       *scrape.PriceEstimate      `json:"prices,omitempty"`
	Demographics *scrape.DemographicProfile `json:"demographics,omitempty"`
	Err          string                     `json:"error,omitempty"`
}

func (u LateUpdate) Failed() bool { return u.Outcome.State == Exhausted }

// Merge attaches a late update. Updates for another session are rejected
// with ErrSuperseded.
func (s *Session) Merge(u LateUpdate) error {
	if u.SessionID != s.ID {
		return fmt.Errorf("%w: update for %s, session is %s", ErrSuperseded, u.SessionID, s.ID)
	}
	switch u.Category {
	case CategoryPrices:
		s.Prices = u.Prices
	case CategoryDemographics:
		s.Demographics = u.Demographics
	default:
		return fmt.Errorf("category %q is not merged late", u.Category)
	}
	outcomes := make(map[Category]Outcome, len(s.Outcomes)+1)
	for k, v := range s.Outcomes {
		outcomes[k] = v
	}
	outcomes[u.Category] = u.Outcome
	s.Outcomes = outcomes

	failures := map[Category]string{}
	for k, v := range s.Failures {
		if k != u.Category {
			failures[k] = v
		}
	}
	if u.Err != "" {
		failures[u.Category] = u.Err
	}
	s.Failures = failures
	return nil
}

// Settled reports whether both late categories have landed.
func (s *Session) Settled() bool {
	for _, c := range []Category{CategoryPrices, CategoryDemographics} {
		switch s.Outcomes[c].State {
		case Resolved, Exhausted:
		default:
			return false
		}
	}
	return true
}

// Evolution exposes the stats evolution as a pointer, nil when undefined.
func (s *Session) Evolution() *int {
	pct, ok := s.Stats.Evolution()
	if !ok {
		return nil
	}
	return &pct
}
