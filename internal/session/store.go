// Package session keeps the current analysis per slot (a browser tab, an
// API client). Starting a new analysis in a slot supersedes the previous
// one; late updates for a superseded session are rejected.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourorg/commune-insights/internal/events"
	"github.com/yourorg/commune-insights/internal/pipeline"
	"github.com/yourorg/commune-insights/internal/redisx"
)

var (
	ErrSuperseded = pipeline.ErrSuperseded
	ErrNoSession  = errors.New("no session in slot")
)

type Store interface {
	Begin(ctx context.Context, slot string, s *pipeline.Session) error
	Current(ctx context.Context, slot string) (*pipeline.Session, error)
	Merge(ctx context.Context, slot, id string, u pipeline.LateUpdate) error
}

type MemoryStore struct {
	mu    sync.Mutex
	slots map[string]*pipeline.Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{slots: map[string]*pipeline.Session{}}
}

func (m *MemoryStore) Begin(_ context.Context, slot string, s *pipeline.Session) error {
	cp := *s
	m.mu.Lock()
	m.slots[slot] = &cp
	m.mu.Unlock()
	return nil
}

// Current returns a copy; later merges do not show through it.
func (m *MemoryStore) Current(_ context.Context, slot string) (*pipeline.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[slot]
	if !ok {
		return nil, ErrNoSession
	}
	cp := *s
	return &cp, nil
}

func (m *MemoryStore) Merge(_ context.Context, slot, id string, u pipeline.LateUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[slot]
	if !ok {
		return ErrNoSession
	}
	if s.ID != id {
		return fmt.Errorf("%w: slot %s now holds %s", ErrSuperseded, slot, s.ID)
	}
	return s.Merge(u)
}

type RedisStore struct {
	Client *redisx.Client
	TTL    time.Duration
	Prefix string
}

func NewRedisStore(c *redisx.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &RedisStore{Client: c, TTL: ttl, Prefix: "commune-insights:session:"}
}

func (r *RedisStore) key(slot string) string { return r.Prefix + slot }

func (r *RedisStore) Begin(ctx context.Context, slot string, s *pipeline.Session) error {
	return r.Client.SetJSON(ctx, r.key(slot), s, r.TTL)
}

func (r *RedisStore) Current(ctx context.Context, slot string) (*pipeline.Session, error) {
	var s pipeline.Session
	if err := r.Client.GetJSON(ctx, r.key(slot), &s); err != nil {
		if errors.Is(err, redisx.ErrMiss) {
			return nil, ErrNoSession
		}
		return nil, err
	}
	return &s, nil
}

func (r *RedisStore) Merge(ctx context.Context, slot, id string, u pipeline.LateUpdate) error {
	err := r.Client.Update(ctx, r.key(slot), func(cur []byte) ([]byte, error) {
		var s pipeline.Session
		if err := json.Unmarshal(cur, &s); err != nil {
			return nil, err
		}
		if s.ID != id {
			return nil, fmt.Errorf("%w: slot %s now holds %s", ErrSuperseded, slot, s.ID)
		}
		if err := s.Merge(u); err != nil {
			return nil, err
		}
		return json.Marshal(&s)
	})
	if errors.Is(err, redisx.ErrMiss) {
		return ErrNoSession
	}
	return err
}

// Tracker stores a run in its slot and merges late updates as they land.
type Tracker struct {
	Store  Store
	Events events.Publisher
	Logger *logrus.Logger
}

// Track begins the session and returns a channel closed once every late
// update has been handled. Merges outlive ctx cancellation.
func (t *Tracker) Track(ctx context.Context, slot string, run *pipeline.Run) (<-chan struct{}, error) {
	if err := t.Store.Begin(ctx, slot, run.Session); err != nil {
		return nil, fmt.Errorf("begin session: %w", err)
	}
	logger := t.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	done := make(chan struct{})
	bg := context.WithoutCancel(ctx)
	go func() {
		defer close(done)
		for u := range run.Late {
			log := logger.WithFields(logrus.Fields{"slot": slot, "session": u.SessionID, "category": u.Category})
			err := t.Store.Merge(bg, slot, run.Session.ID, u)
			switch {
			case errors.Is(err, ErrSuperseded), errors.Is(err, ErrNoSession):
				log.WithError(err).Info("late update dropped")
				continue
			case err != nil:
				log.WithError(err).Error("late update merge failed")
				continue
			}
			log.WithField("state", u.Outcome.State.String()).Debug("late update merged")
			if t.Events != nil {
				t.Events.Publish(bg, events.Event{Kind: events.LateMerged, Key: run.Session.Municipality.Code, SessionID: u.SessionID, Detail: string(u.Category) + " merged"})
			}
		}
	}()
	return done, nil
}
