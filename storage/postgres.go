package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"immopipe/identity"
	"immopipe/models"
)

// PostgresSink mirrors exported listings into Postgres for downstream
// consumers. It is optional; runs without POSTGRES_DSN skip it entirely.
type PostgresSink struct {
	pool *pgxpool.Pool
}

func NewPostgresSink(ctx context.Context, connString string) (*PostgresSink, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	sink := &PostgresSink{pool: pool}
	if err := sink.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return sink, nil
}

func (s *PostgresSink) Close() {
	s.pool.Close()
}

func (s *PostgresSink) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS listings (
			dedupe_key TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			source_id TEXT NOT NULL,
			url TEXT NOT NULL,
			title TEXT,
			deal_type TEXT,
			property_type TEXT,
			price DOUBLE PRECISION,
			size DOUBLE PRECISION,
			rooms INTEGER,
			address TEXT,
			posted_date DATE,
			extracted_date TIMESTAMPTZ,
			record JSONB NOT NULL,
			created_at TIMESTAMPTZ DEFAULT NOW(),
			updated_at TIMESTAMPTZ DEFAULT NOW()
		)`)
	if err != nil {
		return fmt.Errorf("migrate listings: %w", err)
	}
	return nil
}

// UpsertListing writes one listing; repeated runs update the stored record
// in place.
func (s *PostgresSink) UpsertListing(ctx context.Context, l *models.PropertyListing, record map[string]any) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO listings (
			dedupe_key, source, source_id, url, title, deal_type, property_type,
			price, size, rooms, address, posted_date, extracted_date, record
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (dedupe_key) DO UPDATE SET
			url = EXCLUDED.url,
			title = EXCLUDED.title,
			price = COALESCE(EXCLUDED.price, listings.price),
			size = COALESCE(EXCLUDED.size, listings.size),
			rooms = COALESCE(EXCLUDED.rooms, listings.rooms),
			address = COALESCE(EXCLUDED.address, listings.address),
			posted_date = COALESCE(EXCLUDED.posted_date, listings.posted_date),
			extracted_date = EXCLUDED.extracted_date,
			record = EXCLUDED.record,
			updated_at = NOW()`,
		identity.DedupeKey(l), l.Source, l.SourceID, l.URL, l.Title, l.DealType, l.PropertyType,
		l.Price, l.Size, l.Rooms, l.Address, l.PostedDate, l.ExtractedDate, data)
	if err != nil {
		return fmt.Errorf("upsert listing %s: %w", identity.DedupeKey(l), err)
	}
	return nil
}
