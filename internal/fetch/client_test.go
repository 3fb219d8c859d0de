package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Get(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
			_, _ = w.Write([]byte(`{"a":1}`))
		case "/missing":
			w.WriteHeader(http.StatusNotFound)
		case "/slow":
			time.Sleep(200 * time.Millisecond)
			_, _ = w.Write([]byte("late"))
		}
	}))
	defer srv.Close()

	c := NewClient(Options{UserAgent: "test-agent"})
	ctx := context.Background()

	resp, err := c.Get(ctx, srv.URL+"/ok", time.Second)
	require.NoError(t, err)
	assert.True(t, resp.OK())
	assert.JSONEq(t, `{"a":1}`, string(resp.Body))

	resp, err = c.Get(ctx, srv.URL+"/missing", time.Second)
	require.NoError(t, err)
	assert.False(t, resp.OK())
	assert.Equal(t, http.StatusNotFound, resp.Status)

	_, err = c.Get(ctx, srv.URL+"/slow", 20*time.Millisecond)
	assert.Error(t, err)
}

func TestGetJSONAndText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bad" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		_, _ = w.Write([]byte(`{"name":"Paris"}`))
	}))
	defer srv.Close()

	c := NewClient(Options{})
	var out struct {
		Name string `json:"name"`
	}
	require.NoError(t, GetJSON(context.Background(), c, srv.URL, time.Second, &out))
	assert.Equal(t, "Paris", out.Name)

	txt, err := GetText(context.Background(), c, srv.URL, time.Second)
	require.NoError(t, err)
	assert.Contains(t, txt, "Paris")

	err = GetJSON(context.Background(), c, srv.URL+"/bad", time.Second, &out)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusForbidden, se.Status)
}

func TestIOReadAllLimit(t *testing.T) {
	b, err := ioReadAllLimit(strings.NewReader("abcd"), 4)
	require.NoError(t, err)
	assert.Equal(t, "abcd", string(b))

	_, err = ioReadAllLimit(strings.NewReader("abcde"), 4)
	assert.ErrorIs(t, err, ErrPayloadTooLarge)
}
