package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Store archives raw upstream payloads. Nothing in an analysis reads them
// back.
type Store struct{ DB *sql.DB }

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return &Store{DB: db}, nil
}

func (s *Store) Ping(ctx context.Context) error { return s.DB.PingContext(ctx) }

func (s *Store) Close() error { return s.DB.Close() }

var migrations = []string{
	`CREATE EXTENSION IF NOT EXISTS pgcrypto;`,
	`CREATE TABLE IF NOT EXISTS provider_raw_snapshots (
        id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
        provider       TEXT NOT NULL,
        endpoint       TEXT NOT NULL,
        commune_code   TEXT NOT NULL,
        row_count      INTEGER NOT NULL DEFAULT 0,
        payload        JSONB NOT NULL,
        fetched_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
        payload_sha256 TEXT NOT NULL
    );`,
	`CREATE INDEX IF NOT EXISTS idx_snapshots_commune ON provider_raw_snapshots(commune_code, provider, fetched_at DESC);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_snapshots_payload ON provider_raw_snapshots(provider, commune_code, payload_sha256);`,
}

func (s *Store) Migrate(ctx context.Context) error {
	for _, q := range migrations {
		if _, err := s.DB.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

type SnapshotInput struct {
	Provider    string
	Endpoint    string
	CommuneCode string
	RowCount    int
	PayloadJSON []byte
}

// WriteSnapshot stores one payload. An identical payload already archived
// for the same provider and commune is skipped and reported with
// inserted=false.
func (s *Store) WriteSnapshot(ctx context.Context, in SnapshotInput) (id string, inserted bool, err error) {
	if s.DB == nil {
		return "", false, errors.New("nil db")
	}
	if in.Provider == "" || in.CommuneCode == "" {
		return "", false, errors.New("snapshot needs provider and commune code")
	}
	sum := sha256.Sum256(in.PayloadJSON)
	sha := hex.EncodeToString(sum[:])
	err = s.DB.QueryRowContext(ctx, `
        INSERT INTO provider_raw_snapshots (provider, endpoint, commune_code, row_count, payload, payload_sha256)
        VALUES ($1,$2,$3,$4,$5,$6)
        ON CONFLICT (provider, commune_code, payload_sha256) DO NOTHING
        RETURNING id`,
		in.Provider, in.Endpoint, in.CommuneCode, in.RowCount, string(in.PayloadJSON), sha,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return id, true, nil
}
