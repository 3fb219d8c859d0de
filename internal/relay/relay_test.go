package relay

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/commune-insights/internal/fetch"
)

// scripted answers per relay prefix and records call order.
type scripted struct {
	answers map[string]fetch.Response
	errs    map[string]error
	calls   []string
}

func (s *scripted) Get(_ context.Context, u string, _ time.Duration) (fetch.Response, error) {
	for prefix, resp := range s.answers {
		if strings.HasPrefix(u, prefix) {
			s.calls = append(s.calls, prefix)
			return resp, s.errs[prefix]
		}
	}
	for prefix, err := range s.errs {
		if strings.HasPrefix(u, prefix) {
			s.calls = append(s.calls, prefix)
			return fetch.Response{}, err
		}
	}
	return fetch.Response{Status: 404}, nil
}

var testRelays = []Relay{
	{Name: "a", Prefix: "https://a.test/?u="},
	{Name: "b", Prefix: "https://b.test/?u="},
	{Name: "c", Prefix: "https://c.test/?u="},
}

func TestRelayWrapEscapesTarget(t *testing.T) {
	target := "https://example.fr/prix?ville=Saint-Étienne&cp=42000"
	wrapped := testRelays[0].Wrap(target)
	assert.True(t, strings.HasPrefix(wrapped, "https://a.test/?u="))

	parsed, err := url.Parse(wrapped)
	require.NoError(t, err)
	assert.Equal(t, target, parsed.Query().Get("u"))
}

func TestRetrieve_FirstSuccessWins(t *testing.T) {
	g := &scripted{
		answers: map[string]fetch.Response{
			"https://a.test/": {Status: 503},
			"https://b.test/": {Status: 200, Body: []byte(`{"ok":true}`)},
			"https://c.test/": {Status: 200, Body: []byte(`{"ok":"c"}`)},
		},
	}
	r := New(g, testRelays, time.Second, logrus.New())

	resp, err := r.Retrieve(context.Background(), "https://target.test/x", FormatJSON, 0)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(resp.Body))
	assert.Equal(t, []string{"https://a.test/", "https://b.test/"}, g.calls)
}

func TestRetrieve_RejectsUnusableBodies(t *testing.T) {
	g := &scripted{
		answers: map[string]fetch.Response{
			"https://a.test/": {Status: 200, Body: []byte("<html>blocked</html>")},
			"https://b.test/": {Status: 200, Body: []byte("   ")},
			"https://c.test/": {Status: 200, Body: []byte(`[1,2]`)},
		},
	}
	r := New(g, testRelays, time.Second, logrus.New())

	resp, err := r.Retrieve(context.Background(), "https://target.test/x", FormatJSON, 0)
	require.NoError(t, err)
	assert.Equal(t, `[1,2]`, string(resp.Body))
	assert.Len(t, g.calls, 3)
}

func TestRetrieve_AllFailed(t *testing.T) {
	g := &scripted{
		answers: map[string]fetch.Response{
			"https://a.test/": {Status: 500},
			"https://b.test/": {Status: 403},
		},
		errs: map[string]error{
			"https://c.test/": errors.New("timeout"),
		},
	}
	r := New(g, testRelays, time.Second, logrus.New())

	_, err := r.Retrieve(context.Background(), "https://target.test/x", FormatText, 0)
	require.ErrorIs(t, err, ErrAllFailed)
	assert.Contains(t, err.Error(), "timeout")
	assert.Len(t, g.calls, 3)
}

func TestParseRelays(t *testing.T) {
	got := ParseRelays([]string{"one=https://one.test/?url=", "https://two.test/?q=", " "})
	require.Len(t, got, 2)
	assert.Equal(t, Relay{Name: "one", Prefix: "https://one.test/?url="}, got[0])
	assert.Equal(t, "relay2", got[1].Name)
	assert.Equal(t, "https://two.test/?q=", got[1].Prefix)
}
