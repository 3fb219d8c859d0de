package pipeline

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/yourorg/commune-insights/dvf"
)

// Orchestrator tries transaction sources one after another in priority
// order. A source is only called once the previous one has returned.
type Orchestrator struct {
	Sources []dvf.Source
	Logger  *logrus.Logger
	// Observe, when set, sees every state transition.
	Observe func(Outcome)
}

func NewOrchestrator(logger *logrus.Logger, sources ...dvf.Source) *Orchestrator {
	if logger == nil {
		logger = logrus.New()
	}
	return &Orchestrator{Sources: sources, Logger: logger}
}

// Transactions returns the first non-empty result. When every source comes
// back empty the outcome is Exhausted and the slice is empty, never nil.
func (o *Orchestrator) Transactions(ctx context.Context, code string) ([]dvf.Transaction, Outcome) {
	o.observe(Outcome{State: Pending})
	log := o.Logger.WithField("commune", code)
	tried := 0
	for i, src := range o.Sources {
		if ctx.Err() != nil {
			log.WithError(ctx.Err()).Warn("transaction lookup cancelled")
			break
		}
		out := Outcome{State: Trying, Attempt: i + 1, Source: src.Name()}
		o.observe(out)
		tried++
		txs := src.Fetch(ctx, code)
		if len(txs) > 0 {
			out.State = Resolved
			o.observe(out)
			log.WithFields(logrus.Fields{"source": src.Name(), "count": len(txs)}).Info("transactions resolved")
			return txs, out
		}
		log.WithField("source", src.Name()).Info("source returned no transactions, falling back")
	}
	out := Outcome{State: Exhausted, Attempt: tried}
	o.observe(out)
	log.Warn("every transaction source exhausted")
	return []dvf.Transaction{}, out
}

func (o *Orchestrator) observe(out Outcome) {
	if o.Observe != nil {
		o.Observe(out)
	}
}
