package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/quantfold/marketcurator/internal/model"
)

// ListTagCategories returns all (category, tag) rows, including soft-deleted
// ones so the sync diff can restore rows that reappear upstream.
func (s *Store) ListTagCategories(ctx context.Context) ([]model.TagCategory, error) {
	rows, err := s.db.Query(ctx, `
		SELECT category, tag, last_update, deleted
		FROM tags_categories
	`)
	if err != nil {
		return nil, fmt.Errorf("list tag categories: %w", err)
	}
	defer rows.Close()

	var out []model.TagCategory
	for rows.Next() {
		var tc model.TagCategory
		if err := rows.Scan(&tc.Category, &tc.Tag, &tc.LastUpdate, &tc.Deleted); err != nil {
			return nil, fmt.Errorf("scan tag category: %w", err)
		}
		out = append(out, tc)
	}
	return out, rows.Err()
}

// UpsertTagCategories bumps present rows and restores previously deleted
// ones.
func (s *Store) UpsertTagCategories(ctx context.Context, rows []model.TagCategory) error {
	if len(rows) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`
			INSERT INTO tags_categories (category, tag, last_update, deleted)
			VALUES ($1, $2, $3, FALSE)
			ON CONFLICT (category, tag) DO UPDATE SET
				last_update = EXCLUDED.last_update,
				deleted = FALSE
		`, r.Category, r.Tag, r.LastUpdate)
	}

	return s.execBatch(ctx, batch, len(rows), "upsert tag categories")
}

// SoftDeleteTagCategories marks rows deleted without removing them.
func (s *Store) SoftDeleteTagCategories(ctx context.Context, rows []model.TagCategory, now time.Time) error {
	if len(rows) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`
			UPDATE tags_categories
			SET deleted = TRUE, last_update = $3
			WHERE category = $1 AND tag = $2 AND NOT deleted
		`, r.Category, r.Tag, now)
	}

	return s.execBatch(ctx, batch, len(rows), "soft delete tag categories")
}
