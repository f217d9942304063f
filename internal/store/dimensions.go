package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/quantfold/marketcurator/internal/model"
)

// UpsertSeries replaces series rows keyed by ticker. The incoming row wins
// only when its last_update is newer, so out-of-order deliveries are safe,
// and re-upserting restores a soft-deleted row.
func (s *Store) UpsertSeries(ctx context.Context, rows []model.Series) error {
	if len(rows) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`
			INSERT INTO series (ticker, title, category, frequency, tags, metadata, last_update, deleted)
			VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE)
			ON CONFLICT (ticker) DO UPDATE SET
				title = EXCLUDED.title,
				category = EXCLUDED.category,
				frequency = EXCLUDED.frequency,
				tags = EXCLUDED.tags,
				metadata = EXCLUDED.metadata,
				last_update = EXCLUDED.last_update,
				deleted = FALSE
			WHERE series.last_update <= EXCLUDED.last_update
		`, r.Ticker, r.Title, r.Category, r.Frequency, tagsToJSON(r.Tags), metadataToJSON(r.Metadata), r.LastUpdate)
	}

	return s.execBatch(ctx, batch, len(rows), "upsert series")
}

// UpsertEvents replaces event rows keyed by event_ticker.
func (s *Store) UpsertEvents(ctx context.Context, rows []model.Event) error {
	if len(rows) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`
			INSERT INTO events (event_ticker, series_ticker, title, category, strike_date, strike_period, mutually_exclusive, last_update, deleted)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, FALSE)
			ON CONFLICT (event_ticker) DO UPDATE SET
				series_ticker = EXCLUDED.series_ticker,
				title = EXCLUDED.title,
				category = EXCLUDED.category,
				strike_date = EXCLUDED.strike_date,
				strike_period = EXCLUDED.strike_period,
				mutually_exclusive = EXCLUDED.mutually_exclusive,
				last_update = EXCLUDED.last_update,
				deleted = FALSE
			WHERE events.last_update <= EXCLUDED.last_update
		`, r.EventTicker, r.SeriesTicker, r.Title, r.Category, nullableTime(r.StrikeDate), r.StrikePeriod, r.MutuallyExclusive, r.LastUpdate)
	}

	return s.execBatch(ctx, batch, len(rows), "upsert events")
}

// GetEvent returns one event dimension row.
func (s *Store) GetEvent(ctx context.Context, eventTicker string) (*model.Event, error) {
	var e model.Event
	err := s.db.QueryRow(ctx, `
		SELECT event_ticker, series_ticker, title, category,
			COALESCE(strike_date, 'epoch'::timestamptz), strike_period,
			mutually_exclusive, last_update, deleted
		FROM events WHERE event_ticker = $1
	`, eventTicker).Scan(
		&e.EventTicker, &e.SeriesTicker, &e.Title, &e.Category,
		&e.StrikeDate, &e.StrikePeriod, &e.MutuallyExclusive, &e.LastUpdate, &e.Deleted,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	return &e, nil
}

// GetSeries returns one series dimension row.
func (s *Store) GetSeries(ctx context.Context, ticker string) (*model.Series, error) {
	var (
		r        model.Series
		tags     []byte
		metadata []byte
	)
	err := s.db.QueryRow(ctx, `
		SELECT ticker, title, category, frequency, tags, metadata, last_update, deleted
		FROM series WHERE ticker = $1
	`, ticker).Scan(&r.Ticker, &r.Title, &r.Category, &r.Frequency, &tags, &metadata, &r.LastUpdate, &r.Deleted)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get series: %w", err)
	}
	r.Tags = tagsFromJSON(tags)
	r.Metadata = metadataFromJSON(metadata)
	return &r, nil
}

// execBatch sends a batch and drains all results.
func (s *Store) execBatch(ctx context.Context, batch *pgx.Batch, n int, op string) error {
	results := s.db.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < n; i++ {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	return nil
}
