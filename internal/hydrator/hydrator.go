package hydrator

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/yourorg/commune-insights/dvf"
	"github.com/yourorg/commune-insights/internal/events"
	"github.com/yourorg/commune-insights/internal/store"
)

type SnapshotWriter interface {
	WriteSnapshot(ctx context.Context, in store.SnapshotInput) (string, bool, error)
}

// Hydrator archives raw transaction payloads as sources fetch them. It
// satisfies dvf.Recorder; archive failures are logged, never returned to
// the source.
type Hydrator struct {
	Store  SnapshotWriter
	Pub    events.Publisher
	Logger *logrus.Logger
}

func (h *Hydrator) Enabled() bool { return h != nil && h.Store != nil }

func (h *Hydrator) Record(ctx context.Context, snap dvf.Snapshot) {
	if !h.Enabled() {
		return
	}
	if err := h.Write(ctx, snap); err != nil && h.Logger != nil {
		h.Logger.WithError(err).WithFields(logrus.Fields{"provider": snap.Provider, "commune": snap.CommuneCode}).Warn("snapshot archive failed")
	}
}

func (h *Hydrator) Write(ctx context.Context, snap dvf.Snapshot) error {
	id, inserted, err := h.Store.WriteSnapshot(ctx, store.SnapshotInput{
		Provider:    snap.Provider,
		Endpoint:    snap.Endpoint,
		CommuneCode: snap.CommuneCode,
		RowCount:    snap.Count,
		PayloadJSON: snap.Payload,
	})
	if err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if !inserted {
		return nil
	}
	if h.Pub != nil {
		h.Pub.Publish(ctx, events.Event{
			Kind:   events.SnapshotArchived,
			Key:    snap.CommuneCode,
			Detail: fmt.Sprintf("%s snapshot %s archived (%d rows)", snap.Provider, id, snap.Count),
		})
	}
	return nil
}
