package syncer

import (
	"context"
	"fmt"

	"github.com/quantfold/marketcurator/internal/bus"
	"github.com/quantfold/marketcurator/internal/model"
)

// handleCategoryJob refreshes the tags_categories dimension by diffing the
// upstream category-to-tags map against stored rows. Rows that vanished
// upstream are soft-deleted; rows that reappear are restored by the upsert.
func (s *Syncer) handleCategoryJob(ctx context.Context, payload []byte) error {
	var job bus.CategorySyncJob
	if !s.decodeJob(bus.QueueMarketCategories, payload, &job) {
		return nil
	}

	resp, err := s.upstream.GetTagsByCategories(ctx)
	if err != nil {
		if s.dropOnRateLimit(bus.QueueMarketCategories, err) {
			return nil
		}
		return err
	}

	now := s.now().UTC()

	desired := make(map[[2]string]struct{})
	var upserts []model.TagCategory
	for category, tags := range resp.TagsByCategory {
		for _, tag := range tags {
			key := [2]string{category, tag}
			if _, ok := desired[key]; ok {
				continue
			}
			desired[key] = struct{}{}
			upserts = append(upserts, model.TagCategory{
				Category:   category,
				Tag:        tag,
				LastUpdate: now,
			})
		}
	}

	existing, err := s.storage.ListTagCategories(ctx)
	if err != nil {
		return fmt.Errorf("list tag categories: %w", err)
	}

	var removals []model.TagCategory
	for _, row := range existing {
		if row.Deleted {
			continue
		}
		if _, ok := desired[[2]string{row.Category, row.Tag}]; !ok {
			removals = append(removals, row)
		}
	}

	err = s.retryStore(ctx, func() error {
		if err := s.storage.UpsertTagCategories(ctx, upserts); err != nil {
			return err
		}
		return s.storage.SoftDeleteTagCategories(ctx, removals, now)
	})
	if err != nil {
		return fmt.Errorf("store tag categories: %w", err)
	}
	s.countRows("tags_categories", len(upserts), 0)

	s.logger.Info("tag categories synced", "upserted", len(upserts), "soft_deleted", len(removals))
	return nil
}
