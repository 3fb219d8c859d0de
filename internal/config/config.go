package config

import (
	"time"

	"github.com/caarlos0/env/v6"
)

type Config struct {
	Port      int    `env:"PORT" envDefault:"4002"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Upstream endpoints. DVF templates take {code}; page templates take
	// {slug}, {postal} and {code}.
	GeoBaseURL      string `env:"GEO_BASE_URL" envDefault:"https://geo.api.gouv.fr"`
	EtalabURL       string `env:"ETALAB_URL"`
	CquestURL       string `env:"CQUEST_URL"`
	OpenDataURL     string `env:"OPENDATA_URL"`
	PriceURL        string `env:"PRICE_URL"`
	DemographicsURL string `env:"DEMOGRAPHICS_URL"`

	// Relays are "name=prefix" or bare prefixes, tried in order.
	Relays []string `env:"RELAYS" envSeparator:","`

	DirectTimeout time.Duration `env:"DIRECT_TIMEOUT" envDefault:"10s"`
	RelayTimeout  time.Duration `env:"RELAY_TIMEOUT" envDefault:"12s"`
	RetryMax      int           `env:"HTTP_RETRY_MAX" envDefault:"0"`
	UserAgent     string        `env:"HTTP_USER_AGENT" envDefault:"commune-insights/1.0"`
	GeoRPS        float64       `env:"GEO_RPS" envDefault:"40"`

	Redis struct {
		Addr     string        `env:"REDIS_ADDR"`
		Password string        `env:"REDIS_PASSWORD"`
		DB       int           `env:"REDIS_DB" envDefault:"0"`
		TTL      time.Duration `env:"SESSION_TTL" envDefault:"30m"`
	}

	// PGDSN enables the raw snapshot archive when set.
	PGDSN string `env:"PG_DSN"`

	Batch struct {
		Codes       []string      `env:"BATCH_CODES" envSeparator:","`
		Interval    time.Duration `env:"BATCH_INTERVAL" envDefault:"0s"`
		Workers     int           `env:"BATCH_WORKERS" envDefault:"2"`
		Pause       time.Duration `env:"BATCH_PAUSE" envDefault:"1500ms"`
		OutDir      string        `env:"BATCH_OUT_DIR" envDefault:"exports"`
		LateTimeout time.Duration `env:"BATCH_LATE_TIMEOUT" envDefault:"30s"`
	}
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
