package session

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/commune-insights/geo"
	"github.com/yourorg/commune-insights/internal/events"
	"github.com/yourorg/commune-insights/internal/pipeline"
	"github.com/yourorg/commune-insights/internal/redisx"
	"github.com/yourorg/commune-insights/scrape"
)

func newSession(id string) *pipeline.Session {
	return &pipeline.Session{
		ID:           id,
		Municipality: geo.Municipality{Name: "Lyon", Code: "69123"},
		Outcomes: map[pipeline.Category]pipeline.Outcome{
			pipeline.CategoryTransactions: {State: pipeline.Resolved, Attempt: 1, Source: "etalab"},
			pipeline.CategoryPrices:       {State: pipeline.Pending},
			pipeline.CategoryDemographics: {State: pipeline.Pending},
		},
	}
}

func priceUpdate(id string) pipeline.LateUpdate {
	v := 5200.0
	return pipeline.LateUpdate{
		SessionID: id,
		Category:  pipeline.CategoryPrices,
		Outcome:   pipeline.Outcome{State: pipeline.Resolved, Attempt: 1},
		Prices:    &scrape.PriceEstimate{Apartment: &scrape.CategoryEstimate{PricePerSqm: &v}},
	}
}

// storeContract runs the behaviour every Store shares.
func storeContract(t *testing.T, st Store, slot string) {
	ctx := context.Background()

	_, err := st.Current(ctx, slot)
	assert.ErrorIs(t, err, ErrNoSession)
	assert.ErrorIs(t, st.Merge(ctx, slot, "a", priceUpdate("a")), ErrNoSession)

	require.NoError(t, st.Begin(ctx, slot, newSession("a")))
	require.NoError(t, st.Merge(ctx, slot, "a", priceUpdate("a")))

	cur, err := st.Current(ctx, slot)
	require.NoError(t, err)
	assert.Equal(t, pipeline.Resolved, cur.Outcomes[pipeline.CategoryPrices].State)
	require.NotNil(t, cur.Prices)
	assert.Equal(t, 5200.0, *cur.Prices.Apartment.PricePerSqm)

	require.NoError(t, st.Begin(ctx, slot, newSession("b")))
	err = st.Merge(ctx, slot, "a", priceUpdate("a"))
	assert.ErrorIs(t, err, ErrSuperseded)

	cur, err = st.Current(ctx, slot)
	require.NoError(t, err)
	assert.Equal(t, "b", cur.ID)
	assert.Nil(t, cur.Prices)
}

func TestMemoryStore(t *testing.T) {
	storeContract(t, NewMemoryStore(), "tab-1")
}

func TestMemoryStore_BeginCopies(t *testing.T) {
	st := NewMemoryStore()
	s := newSession("a")
	require.NoError(t, st.Begin(context.Background(), "x", s))
	require.NoError(t, st.Merge(context.Background(), "x", "a", priceUpdate("a")))
	assert.Nil(t, s.Prices)
	assert.Equal(t, pipeline.Pending, s.Outcomes[pipeline.CategoryPrices].State)
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	c := redisx.New(addr, os.Getenv("REDIS_PASSWORD"), 0)
	defer c.Close()
	require.NoError(t, c.Ping(context.Background()))

	st := NewRedisStore(c, time.Minute)
	st.Prefix = "commune-insights:test:" + t.Name() + ":"
	slot := time.Now().Format("150405.000000")
	defer c.Rdb.Del(context.Background(), st.key(slot))
	storeContract(t, st, slot)
}

func TestTracker_MergesLateUpdatesAndDropsSuperseded(t *testing.T) {
	logger, hook := test.NewNullLogger()
	st := NewMemoryStore()
	pub := events.NewInMemory(8)
	tr := &Tracker{Store: st, Events: pub, Logger: logger}

	late := make(chan pipeline.LateUpdate, 2)
	run := &pipeline.Run{Session: newSession("a"), Late: late}
	ctx, cancel := context.WithCancel(context.Background())
	done, err := tr.Track(ctx, "tab", run)
	require.NoError(t, err)
	cancel()

	late <- priceUpdate("a")
	require.Eventually(t, func() bool {
		cur, err := st.Current(context.Background(), "tab")
		return err == nil && cur.Prices != nil
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, st.Begin(context.Background(), "tab", newSession("b")))
	late <- pipeline.LateUpdate{SessionID: "a", Category: pipeline.CategoryDemographics, Outcome: pipeline.Outcome{State: pipeline.Exhausted}, Err: "unavailable"}
	close(late)
	<-done

	cur, err := st.Current(context.Background(), "tab")
	require.NoError(t, err)
	assert.Equal(t, "b", cur.ID)
	assert.Equal(t, pipeline.Pending, cur.Outcomes[pipeline.CategoryDemographics].State)
	assert.Equal(t, "late update dropped", hook.LastEntry().Message)

	evt := <-pub.Subscribe()
	assert.Equal(t, events.LateMerged, evt.Kind)
	assert.Equal(t, "69123", evt.Key)
}
