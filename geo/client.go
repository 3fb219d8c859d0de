package geo

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/yourorg/commune-insights/internal/fetch"
)

const DefaultBaseURL = "https://geo.api.gouv.fr"

const fields = "nom,code,codesPostaux,population,surface,departement,region"

// ErrNotFound covers both "no such commune" and "lookup service down".
var ErrNotFound = errors.New("commune not found")

type Client struct {
	baseURL string
	getter  fetch.Getter
	limiter *rate.Limiter
	timeout time.Duration
	logger  *logrus.Logger
}

type Options struct {
	BaseURL string
	Timeout time.Duration
	// RPS caps outbound lookups; 0 disables throttling.
	RPS    float64
	Logger *logrus.Logger
}

func NewClient(getter fetch.Getter, opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RPS), max(1, int(opts.RPS)))
	}
	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		getter:  getter,
		limiter: limiter,
		timeout: opts.Timeout,
		logger:  opts.Logger,
	}
}

// ResolveByName returns the top-ranked (population boosted) match.
func (c *Client) ResolveByName(ctx context.Context, text string) (Municipality, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Municipality{}, ErrNotFound
	}
	found, err := c.search(ctx, text, 5)
	if err != nil || len(found) == 0 {
		return Municipality{}, fmt.Errorf("%w: %q", ErrNotFound, text)
	}
	return found[0], nil
}

func (c *Client) ResolveByCode(ctx context.Context, code string) (Municipality, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return Municipality{}, ErrNotFound
	}
	q := url.Values{}
	q.Set("fields", fields)
	u := fmt.Sprintf("%s/communes/%s?%s", c.baseURL, url.PathEscape(code), q.Encode())

	var out apiCommune
	if err := c.getJSON(ctx, u, &out); err != nil || out.Code == "" {
		return Municipality{}, fmt.Errorf("%w: code %s", ErrNotFound, code)
	}
	return out.municipality(), nil
}

// Search lists candidates for a partial name; lookup failures yield an
// empty list.
func (c *Client) Search(ctx context.Context, text string, limit int) ([]Municipality, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return []Municipality{}, nil
	}
	if limit <= 0 || limit > 20 {
		limit = 10
	}
	found, err := c.search(ctx, text, limit)
	if err != nil {
		return []Municipality{}, nil
	}
	return found, nil
}

func (c *Client) search(ctx context.Context, text string, limit int) ([]Municipality, error) {
	q := url.Values{}
	q.Set("nom", text)
	q.Set("fields", fields)
	q.Set("boost", "population")
	q.Set("limit", fmt.Sprintf("%d", limit))
	u := fmt.Sprintf("%s/communes?%s", c.baseURL, q.Encode())

	var out []apiCommune
	if err := c.getJSON(ctx, u, &out); err != nil {
		return nil, err
	}
	res := make([]Municipality, 0, len(out))
	for _, a := range out {
		if a.Code == "" {
			continue
		}
		res = append(res, a.municipality())
	}
	return res, nil
}

func (c *Client) getJSON(ctx context.Context, u string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	err := fetch.GetJSON(ctx, c.getter, u, c.timeout, out)
	if err != nil {
		c.logger.WithError(err).WithField("url", u).Warn("geo lookup failed")
	}
	return err
}
