package scrape

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"github.com/yourorg/commune-insights/geo"
	"github.com/yourorg/commune-insights/internal/canon"
	"github.com/yourorg/commune-insights/internal/relay"
)

// Placeholders: {slug}, {postal}, {code}.
const (
	DefaultPriceURL        = "https://www.meilleursagents.com/prix-immobilier/{slug}-{postal}/"
	DefaultDemographicsURL = "https://www.bien-dans-ma-ville.fr/{slug}-{code}/immobilier/"
)

// ErrUnavailable means every relay failed or the page held no usable fact.
var ErrUnavailable = errors.New("source unavailable")

type Config struct {
	URL     string
	Relay   *relay.Retriever
	Timeout time.Duration
	Logger  *logrus.Logger
}

func (c Config) withDefaults(defURL string) Config {
	if c.URL == "" {
		c.URL = defURL
	}
	if c.Timeout <= 0 {
		c.Timeout = 15 * time.Second
	}
	if c.Logger == nil {
		c.Logger = logrus.New()
	}
	return c
}

// PageURL fills a template from the commune.
func PageURL(tmpl string, m geo.Municipality) string {
	r := strings.NewReplacer(
		"{slug}", url.PathEscape(canon.Slug(m.Name)),
		"{postal}", url.PathEscape(m.PostalCode()),
		"{code}", url.PathEscape(m.Code),
	)
	return r.Replace(tmpl)
}

type PriceSource struct{ cfg Config }

func NewPriceSource(cfg Config) *PriceSource {
	return &PriceSource{cfg: cfg.withDefaults(DefaultPriceURL)}
}

func (s *PriceSource) Fetch(ctx context.Context, m geo.Municipality) (PriceEstimate, error) {
	text, err := pageText(ctx, s.cfg, PageURL(s.cfg.URL, m))
	if err != nil {
		return PriceEstimate{}, err
	}
	est := ParsePriceEstimate(text)
	if !est.HasData() {
		return PriceEstimate{}, fmt.Errorf("%w: no price found for %s", ErrUnavailable, m.Code)
	}
	return est, nil
}

type DemographicSource struct{ cfg Config }

func NewDemographicSource(cfg Config) *DemographicSource {
	return &DemographicSource{cfg: cfg.withDefaults(DefaultDemographicsURL)}
}

func (s *DemographicSource) Fetch(ctx context.Context, m geo.Municipality) (DemographicProfile, error) {
	text, err := pageText(ctx, s.cfg, PageURL(s.cfg.URL, m))
	if err != nil {
		return DemographicProfile{}, err
	}
	p := ParseDemographics(text)
	if !p.HasData() {
		return DemographicProfile{}, fmt.Errorf("%w: no housing data for %s", ErrUnavailable, m.Code)
	}
	return p, nil
}

func pageText(ctx context.Context, cfg Config, target string) (string, error) {
	if cfg.Relay == nil {
		return "", fmt.Errorf("%w: no relay configured", ErrUnavailable)
	}
	resp, err := cfg.Relay.Retrieve(ctx, target, relay.FormatText, cfg.Timeout)
	if err != nil {
		cfg.Logger.WithError(err).WithField("url", target).Warn("scrape target unreachable")
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return VisibleText(string(resp.Body))
}

// VisibleText flattens an HTML page into whitespace-separated text, script
// and style content excluded. Text nodes are separated so adjacent cells
// never merge into one number.
func VisibleText(page string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	doc.Find("script, style, noscript, template, svg").Remove()
	var b strings.Builder
	collectText(doc.Selection, &b)
	return strings.Join(strings.Fields(b.String()), " "), nil
}

func collectText(sel *goquery.Selection, b *strings.Builder) {
	sel.Contents().Each(func(_ int, s *goquery.Selection) {
		if goquery.NodeName(s) == "#text" {
			b.WriteString(s.Text())
			b.WriteByte(' ')
			return
		}
		collectText(s, b)
	})
}
