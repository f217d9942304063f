// Package bookdiff derives orderbook change events by comparing two
// consecutive depth snapshots of the same market.
//
// Each price level that appears, disappears, or changes size produces one
// event. Identical snapshots produce none, so re-capturing an unchanged
// book writes nothing.
package bookdiff

import (
	"sort"

	"github.com/google/uuid"

	"github.com/quantfold/marketcurator/internal/model"
)

// Diff compares prior against current and returns one event per changed
// price level on either side. All events share current.CapturedAt as their
// event time. A nil prior means every level of current is an ADD.
func Diff(prior, current *model.OrderbookSnapshot) []model.OrderbookEvent {
	var events []model.OrderbookEvent

	events = append(events, diffSide(prior, current, model.SideYes)...)
	events = append(events, diffSide(prior, current, model.SideNo)...)

	return events
}

func diffSide(prior, current *model.OrderbookSnapshot, side model.Side) []model.OrderbookEvent {
	before := sideLevels(prior, side)
	after := sideLevels(current, side)

	prev := make(map[int]int, len(before))
	for _, lvl := range before {
		prev[lvl.Price] = lvl.Size
	}
	next := make(map[int]int, len(after))
	for _, lvl := range after {
		next[lvl.Price] = lvl.Size
	}

	var events []model.OrderbookEvent
	emit := func(price, size int, kind model.OrderbookEventType) {
		events = append(events, model.OrderbookEvent{
			EventID:   uuid.New(),
			Ticker:    current.Ticker,
			EventTime: current.CapturedAt,
			Side:      side,
			Price:     price,
			Size:      size,
			Type:      kind,
		})
	}

	prices := make([]int, 0, len(prev)+len(next))
	seen := make(map[int]bool, len(prev)+len(next))
	for p := range prev {
		prices = append(prices, p)
		seen[p] = true
	}
	for p := range next {
		if !seen[p] {
			prices = append(prices, p)
		}
	}
	sort.Ints(prices)

	for _, price := range prices {
		oldSize, hadBefore := prev[price]
		newSize, hasNow := next[price]

		switch {
		case hadBefore && !hasNow:
			emit(price, 0, model.OrderbookRemove)
		case !hadBefore && hasNow:
			emit(price, newSize, model.OrderbookAdd)
		case oldSize != newSize:
			emit(price, newSize, model.OrderbookUpdate)
		}
	}

	return events
}

func sideLevels(s *model.OrderbookSnapshot, side model.Side) []model.PriceLevel {
	if s == nil {
		return nil
	}
	if side == model.SideYes {
		return s.Yes
	}
	return s.No
}
