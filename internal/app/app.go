// Package app wires configuration into the running components shared by
// the HTTP server and the CLI.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourorg/commune-insights/dvf"
	"github.com/yourorg/commune-insights/geo"
	"github.com/yourorg/commune-insights/internal/config"
	"github.com/yourorg/commune-insights/internal/events"
	"github.com/yourorg/commune-insights/internal/fetch"
	"github.com/yourorg/commune-insights/internal/hydrator"
	"github.com/yourorg/commune-insights/internal/pipeline"
	"github.com/yourorg/commune-insights/internal/redisx"
	"github.com/yourorg/commune-insights/internal/relay"
	"github.com/yourorg/commune-insights/internal/session"
	"github.com/yourorg/commune-insights/internal/store"
	"github.com/yourorg/commune-insights/scrape"
)

type App struct {
	Config   *config.Config
	Logger   *logrus.Logger
	Geo      *geo.Client
	Analyzer *pipeline.Analyzer
	Events   events.Publisher
	Sessions session.Store

	// Optional backends, nil when not configured.
	Store *store.Store
	Redis *redisx.Client
}

// New builds the app. Postgres and Redis are only dialled when configured,
// and a configured backend that cannot be reached is an error.
func New(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger, Events: events.NewInMemory(256)}

	getter := fetch.NewClient(fetch.Options{RetryMax: cfg.RetryMax, UserAgent: cfg.UserAgent, Logger: logger})
	relays := relay.DefaultRelays
	if len(cfg.Relays) > 0 {
		relays = relay.ParseRelays(cfg.Relays)
	}
	rt := relay.New(getter, relays, cfg.RelayTimeout, logger)

	a.Geo = geo.NewClient(getter, geo.Options{BaseURL: cfg.GeoBaseURL, Timeout: cfg.DirectTimeout, RPS: cfg.GeoRPS, Logger: logger})

	var rec dvf.Recorder
	if cfg.PGDSN != "" {
		st, err := openStore(ctx, cfg.PGDSN)
		if err != nil {
			return nil, err
		}
		a.Store = st
		rec = &hydrator.Hydrator{Store: st, Pub: a.Events, Logger: logger}
	}

	direct := dvf.SourceConfig{Getter: getter, Timeout: cfg.DirectTimeout, Recorder: rec, Logger: logger}
	etalab, opendata := direct, direct
	etalab.URL, opendata.URL = cfg.EtalabURL, cfg.OpenDataURL
	cquest := dvf.SourceConfig{URL: cfg.CquestURL, Getter: getter, Relay: rt, Timeout: cfg.RelayTimeout, Recorder: rec, Logger: logger}

	page := scrape.Config{Relay: rt, Timeout: cfg.RelayTimeout, Logger: logger}
	prices, demographics := page, page
	prices.URL, demographics.URL = cfg.PriceURL, cfg.DemographicsURL

	a.Analyzer = &pipeline.Analyzer{
		Geo: a.Geo,
		Transactions: pipeline.NewOrchestrator(logger,
			dvf.NewEtalabSource(etalab),
			dvf.NewCquestSource(cquest),
			dvf.NewOpenDataSource(opendata),
		),
		Prices:       scrape.NewPriceSource(prices),
		Demographics: scrape.NewDemographicSource(demographics),
		Events:       a.Events,
		Logger:       logger,
	}

	if cfg.Redis.Addr != "" {
		rc := redisx.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := rc.Ping(pingCtx)
		cancel()
		if err != nil {
			a.Close()
			_ = rc.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		a.Redis = rc
		a.Sessions = session.NewRedisStore(rc, cfg.Redis.TTL)
	} else {
		a.Sessions = session.NewMemoryStore()
	}
	return a, nil
}

func openStore(ctx context.Context, dsn string) (*store.Store, error) {
	st, err := store.Open(dsn)
	if err != nil {
		return nil, fmt.Errorf("store open: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := st.Ping(ctx); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("postgres migrate: %w", err)
	}
	return st, nil
}

// Tracker returns a session tracker bound to the app's store.
func (a *App) Tracker() *session.Tracker {
	return &session.Tracker{Store: a.Sessions, Events: a.Events, Logger: a.Logger}
}

func (a *App) Close() {
	if a.Store != nil {
		_ = a.Store.Close()
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
}
