package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/yourorg/commune-insights/geo"
	"github.com/yourorg/commune-insights/internal/canon"
	"github.com/yourorg/commune-insights/internal/events"
	"github.com/yourorg/commune-insights/internal/stats"
	"github.com/yourorg/commune-insights/scrape"
)

type Resolver interface {
	ResolveByName(ctx context.Context, name string) (geo.Municipality, error)
	ResolveByCode(ctx context.Context, code string) (geo.Municipality, error)
}

type PriceFetcher interface {
	Fetch(ctx context.Context, m geo.Municipality) (scrape.PriceEstimate, error)
}

type DemographicFetcher interface {
	Fetch(ctx context.Context, m geo.Municipality) (scrape.DemographicProfile, error)
}

// Analyzer runs one analysis: resolution, the transaction fallback chain,
// statistics, and the two late categories.
type Analyzer struct {
	Geo          Resolver
	Transactions *Orchestrator
	Prices       PriceFetcher
	Demographics DemographicFetcher
	Events       events.Publisher
	Logger       *logrus.Logger

	NewID func() string
	Now   func() time.Time
}

// Run is a started analysis. Session is settled except for the late
// categories, which arrive on Late; Late is closed once both have been sent.
type Run struct {
	Session *Session
	Late    <-chan LateUpdate
}

// Wait merges late updates into the session until Late is closed or ctx
// is done.
func (r *Run) Wait(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case u, ok := <-r.Late:
			if !ok {
				return nil
			}
			if err := r.Session.Merge(u); err != nil {
				return err
			}
		}
	}
}

// Resolve picks a code lookup for commune codes and a name search otherwise.
func (a *Analyzer) Resolve(ctx context.Context, query string) (geo.Municipality, error) {
	q := strings.TrimSpace(query)
	if canon.IsCommuneCode(q) {
		return a.Geo.ResolveByCode(ctx, strings.ToUpper(q))
	}
	return a.Geo.ResolveByName(ctx, q)
}

// Start resolves query and runs the primary pass. The only error it returns
// is a wrapped geo.ErrNotFound; every source failure degrades into an
// Exhausted outcome instead.
func (a *Analyzer) Start(ctx context.Context, query string) (*Run, error) {
	m, err := a.Resolve(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("resolve %q: %w", query, err)
	}
	s := &Session{
		ID:           a.newID(),
		Query:        query,
		StartedAt:    a.now(),
		Municipality: m,
		Outcomes: map[Category]Outcome{
			CategoryTransactions: {State: Pending},
			CategoryPrices:       {State: Pending},
			CategoryDemographics: {State: Pending},
		},
	}
	log := a.logger().WithFields(logrus.Fields{"session": s.ID, "commune": m.Code})
	log.WithField("name", m.Name).Info("analysis started")

	late := a.startLate(context.WithoutCancel(ctx), s.ID, m)
	s.Outcomes[CategoryPrices] = Outcome{State: Trying, Attempt: 1}
	s.Outcomes[CategoryDemographics] = Outcome{State: Trying, Attempt: 1}

	txs, out := a.Transactions.Transactions(ctx, m.Code)
	s.Transactions = txs
	s.Outcomes[CategoryTransactions] = out
	s.Stats = stats.Compute(txs, m)

	log.WithFields(logrus.Fields{"transactions": len(txs), "valid": s.Stats.ValidCount, "outcome": out.String()}).Info("primary analysis done")
	if a.Events != nil {
		a.Events.Publish(ctx, events.Event{Kind: events.AnalysisCompleted, Key: m.Code, SessionID: s.ID, Detail: "analysis completed"})
	}
	return &Run{Session: s, Late: late}, nil
}

// startLate launches both late categories. The tasks run detached from the
// caller's cancellation; their own relay timeouts bound them.
func (a *Analyzer) startLate(ctx context.Context, id string, m geo.Municipality) <-chan LateUpdate {
	ch := make(chan LateUpdate, 2)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		ch <- a.prices(ctx, id, m)
	}()
	go func() {
		defer wg.Done()
		ch <- a.demographics(ctx, id, m)
	}()
	go func() {
		wg.Wait()
		close(ch)
	}()
	return ch
}

func (a *Analyzer) prices(ctx context.Context, id string, m geo.Municipality) LateUpdate {
	u := LateUpdate{SessionID: id, Category: CategoryPrices}
	if a.Prices == nil {
		return a.failed(u, m, "no price source configured")
	}
	est, err := a.Prices.Fetch(ctx, m)
	if err != nil {
		return a.failed(u, m, err.Error())
	}
	u.Outcome = Outcome{State: Resolved, Attempt: 1, Source: string(CategoryPrices)}
	u.Prices = &est
	return u
}

func (a *Analyzer) demographics(ctx context.Context, id string, m geo.Municipality) LateUpdate {
	u := LateUpdate{SessionID: id, Category: CategoryDemographics}
	if a.Demographics == nil {
		return a.failed(u, m, "no demographic source configured")
	}
	p, err := a.Demographics.Fetch(ctx, m)
	if err != nil {
		return a.failed(u, m, err.Error())
	}
	u.Outcome = Outcome{State: Resolved, Attempt: 1, Source: string(CategoryDemographics)}
	u.Demographics = &p
	return u
}

func (a *Analyzer) failed(u LateUpdate, m geo.Municipality, reason string) LateUpdate {
	a.logger().WithFields(logrus.Fields{"session": u.SessionID, "commune": m.Code, "category": u.Category}).Info("late category unavailable: " + reason)
	u.Outcome = Outcome{State: Exhausted, Attempt: 1}
	u.Err = reason
	return u
}

func (a *Analyzer) newID() string {
	if a.NewID != nil {
		return a.NewID()
	}
	return uuid.NewString()
}

func (a *Analyzer) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now().UTC()
}

var defaultLogger = logrus.New()

func (a *Analyzer) logger() *logrus.Logger {
	if a.Logger == nil {
		return defaultLogger
	}
	return a.Logger
}
