package dvf

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourorg/commune-insights/internal/fetch"
	"github.com/yourorg/commune-insights/internal/relay"
)

// Default URL templates; "{code}" is replaced by the INSEE commune code.
const (
	DefaultEtalabURL   = "https://app.dvf.etalab.gouv.fr/api/mutations3/{code}"
	DefaultCquestURL   = "https://api.cquest.org/dvf?code_commune={code}"
	DefaultOpenDataURL = "https://data.economie.gouv.fr/api/explore/v2.1/catalog/datasets/demandes-de-valeurs-foncieres/records?where=code_commune%3D%22{code}%22&limit=100"
)

// Source yields canonical transactions for one commune. An empty slice
// means "no data" whatever the reason.
type Source interface {
	Name() string
	Fetch(ctx context.Context, code string) []Transaction
}

// Snapshot is a raw upstream payload handed to a Recorder.
type Snapshot struct {
	Provider    string
	Endpoint    string
	CommuneCode string
	Payload     []byte
	Count       int
}

type Recorder interface {
	Record(ctx context.Context, snap Snapshot)
}

type SourceConfig struct {
	URL      string
	Getter   fetch.Getter
	Relay    *relay.Retriever
	Timeout  time.Duration
	Recorder Recorder
	Logger   *logrus.Logger
}

type HTTPSource struct {
	name   string
	decode func([]byte) ([]Transaction, error)
	cfg    SourceConfig
}

// NewEtalabSource is the authoritative API, reached directly.
func NewEtalabSource(cfg SourceConfig) *HTTPSource {
	cfg.Relay = nil
	return newSource(SourceEtalab, DefaultEtalabURL, DecodeEtalab, cfg)
}

// NewCquestSource is the community API; it needs a relay.
func NewCquestSource(cfg SourceConfig) *HTTPSource {
	return newSource(SourceCquest, DefaultCquestURL, DecodeCquest, cfg)
}

// NewOpenDataSource is the open-data catalog, reached directly.
func NewOpenDataSource(cfg SourceConfig) *HTTPSource {
	cfg.Relay = nil
	return newSource(SourceOpenData, DefaultOpenDataURL, DecodeOpenData, cfg)
}

func newSource(name, defURL string, decode func([]byte) ([]Transaction, error), cfg SourceConfig) *HTTPSource {
	if cfg.URL == "" {
		cfg.URL = defURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &HTTPSource{name: name, decode: decode, cfg: cfg}
}

func (s *HTTPSource) Name() string { return s.name }

func (s *HTTPSource) URL(code string) string {
	return strings.ReplaceAll(s.cfg.URL, "{code}", url.PathEscape(code))
}

func (s *HTTPSource) Fetch(ctx context.Context, code string) []Transaction {
	log := s.cfg.Logger.WithFields(logrus.Fields{"source": s.name, "commune": code})
	u := s.URL(code)

	var resp fetch.Response
	var err error
	if s.cfg.Relay != nil {
		resp, err = s.cfg.Relay.Retrieve(ctx, u, relay.FormatJSON, s.cfg.Timeout)
	} else {
		resp, err = s.cfg.Getter.Get(ctx, u, s.cfg.Timeout)
	}
	if err != nil {
		log.WithError(err).Warn("transaction source unreachable")
		return []Transaction{}
	}
	if !resp.OK() {
		log.WithField("status", resp.Status).Warn("transaction source returned non-success")
		return []Transaction{}
	}
	txs, err := s.decode(resp.Body)
	if err != nil {
		log.WithError(err).Warn("transaction source payload not understood")
		return []Transaction{}
	}
	if len(txs) == 0 {
		log.Info("transaction source returned no rows")
		return []Transaction{}
	}
	if s.cfg.Recorder != nil {
		s.cfg.Recorder.Record(ctx, Snapshot{Provider: s.name, Endpoint: u, CommuneCode: code, Payload: resp.Body, Count: len(txs)})
	}
	log.WithField("count", len(txs)).Info("transactions fetched")
	return txs
}
