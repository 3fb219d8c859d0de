package events

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

type Kind string

const (
	SnapshotArchived  Kind = "snapshot.archived"
	AnalysisCompleted Kind = "analysis.completed"
	LateMerged        Kind = "analysis.late_merged"
)

// Event is a small notification; Key is the commune code.
type Event struct {
	Kind      Kind
	Key       string
	SessionID string
	Detail    string
	At        time.Time
}

type Publisher interface {
	Publish(ctx context.Context, evt Event)
	Subscribe() <-chan Event
}

type inMemory struct{ ch chan Event }

func NewInMemory(buffer int) Publisher {
	if buffer <= 0 {
		buffer = 256
	}
	return &inMemory{ch: make(chan Event, buffer)}
}

// Publish never blocks; events are dropped when the buffer is full.
func (m *inMemory) Publish(_ context.Context, evt Event) {
	if evt.At.IsZero() {
		evt.At = time.Now()
	}
	select {
	case m.ch <- evt:
	default:
	}
}

func (m *inMemory) Subscribe() <-chan Event { return m.ch }

// Drain logs events until ctx is done.
func Drain(ctx context.Context, pub Publisher, logger *logrus.Logger) {
	sub := pub.Subscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-sub:
			logger.WithFields(logrus.Fields{
				"event":   evt.Kind,
				"commune": evt.Key,
				"session": evt.SessionID,
				"at":      evt.At.Format(time.RFC3339),
			}).Info(evt.Detail)
		}
	}
}
