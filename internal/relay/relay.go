// Package relay fetches cross-origin targets through an ordered list of
// third-party relay endpoints, first success wins.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourorg/commune-insights/internal/fetch"
)

var ErrAllFailed = errors.New("all relays failed")

type Format int

const (
	FormatText Format = iota
	FormatJSON
)

// Relay is an endpoint prefix; the escaped target is appended verbatim, so
// the prefix ends with the query parameter that carries it (e.g. "?url=").
type Relay struct {
	Name   string
	Prefix string
}

func (r Relay) Wrap(target string) string {
	return r.Prefix + url.QueryEscape(target)
}

// DefaultRelays is the stock relay order.
var DefaultRelays = []Relay{
	{Name: "allorigins", Prefix: "https://api.allorigins.win/raw?url="},
	{Name: "corsproxy", Prefix: "https://corsproxy.io/?url="},
	{Name: "codetabs", Prefix: "https://api.codetabs.com/v1/proxy?quest="},
}

// ParseRelays turns "name=prefix" or bare prefixes into relays.
func ParseRelays(specs []string) []Relay {
	out := make([]Relay, 0, len(specs))
	for i, s := range specs {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		name, prefix, ok := strings.Cut(s, "=")
		if !ok || strings.Contains(name, "/") {
			name, prefix = fmt.Sprintf("relay%d", i+1), s
		}
		out = append(out, Relay{Name: name, Prefix: prefix})
	}
	return out
}

type Retriever struct {
	Relays  []Relay
	Getter  fetch.Getter
	Timeout time.Duration
	Logger  *logrus.Logger
}

func New(getter fetch.Getter, relays []Relay, timeout time.Duration, logger *logrus.Logger) *Retriever {
	if len(relays) == 0 {
		relays = DefaultRelays
	}
	if timeout <= 0 {
		timeout = 12 * time.Second
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Retriever{Relays: relays, Getter: getter, Timeout: timeout, Logger: logger}
}

// Retrieve tries each relay once, in order, and returns the first usable
// response. A zero timeout uses the retriever default.
func (r *Retriever) Retrieve(ctx context.Context, target string, format Format, timeout time.Duration) (fetch.Response, error) {
	if timeout <= 0 {
		timeout = r.Timeout
	}
	var last error
	for i, rl := range r.Relays {
		if ctx.Err() != nil {
			return fetch.Response{}, fmt.Errorf("%w: %v", ErrAllFailed, ctx.Err())
		}
		resp, err := r.Getter.Get(ctx, rl.Wrap(target), timeout)
		if err == nil {
			err = usable(resp, format)
		}
		if err == nil {
			r.Logger.WithFields(logrus.Fields{"relay": rl.Name, "attempt": i + 1, "target": target}).Debug("relay succeeded")
			return resp, nil
		}
		last = err
		r.Logger.WithFields(logrus.Fields{"relay": rl.Name, "attempt": i + 1, "target": target}).WithError(err).Info("relay failed, trying next")
	}
	if last == nil {
		return fetch.Response{}, ErrAllFailed
	}
	return fetch.Response{}, fmt.Errorf("%w: %v", ErrAllFailed, last)
}

func usable(resp fetch.Response, format Format) error {
	if !resp.OK() {
		return fmt.Errorf("status %d", resp.Status)
	}
	if len(strings.TrimSpace(string(resp.Body))) == 0 {
		return errors.New("empty body")
	}
	if format == FormatJSON && !json.Valid(resp.Body) {
		return errors.New("body is not json")
	}
	return nil
}
