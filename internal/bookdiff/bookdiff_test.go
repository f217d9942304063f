package bookdiff

import (
	"testing"
	"time"

	"github.com/quantfold/marketcurator/internal/model"
)

func snap(ticker string, capturedAt time.Time, yes, no []model.PriceLevel) *model.OrderbookSnapshot {
	return &model.OrderbookSnapshot{
		Ticker:     ticker,
		CapturedAt: capturedAt,
		Yes:        yes,
		No:         no,
	}
}

func findEvent(events []model.OrderbookEvent, side model.Side, price int) *model.OrderbookEvent {
	for i := range events {
		if events[i].Side == side && events[i].Price == price {
			return &events[i]
		}
	}
	return nil
}

func TestDiffAddRemove(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	prior := snap("MKT-A", now.Add(-time.Minute),
		[]model.PriceLevel{{Price: 40, Size: 10}, {Price: 41, Size: 5}}, nil)
	current := snap("MKT-A", now,
		[]model.PriceLevel{{Price: 40, Size: 10}, {Price: 42, Size: 7}}, nil)

	events := Diff(prior, current)
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}

	removed := findEvent(events, model.SideYes, 41)
	if removed == nil {
		t.Fatal("expected REMOVE at price 41")
	}
	if removed.Type != model.OrderbookRemove || removed.Size != 0 {
		t.Errorf("expected REMOVE with size 0, got %s size %d", removed.Type, removed.Size)
	}

	added := findEvent(events, model.SideYes, 42)
	if added == nil {
		t.Fatal("expected ADD at price 42")
	}
	if added.Type != model.OrderbookAdd || added.Size != 7 {
		t.Errorf("expected ADD with size 7, got %s size %d", added.Type, added.Size)
	}

	if findEvent(events, model.SideYes, 40) != nil {
		t.Error("unchanged level 40 should produce no event")
	}
}

func TestDiffUpdate(t *testing.T) {
	now := time.Now().UTC()
	prior := snap("MKT-A", now.Add(-time.Minute), []model.PriceLevel{{Price: 40, Size: 10}}, nil)
	current := snap("MKT-A", now, []model.PriceLevel{{Price: 40, Size: 25}}, nil)

	events := Diff(prior, current)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Type != model.OrderbookUpdate || events[0].Size != 25 {
		t.Errorf("expected UPDATE with size 25, got %s size %d", events[0].Type, events[0].Size)
	}
}

func TestDiffIdenticalSnapshots(t *testing.T) {
	now := time.Now().UTC()
	yes := []model.PriceLevel{{Price: 40, Size: 10}, {Price: 41, Size: 5}}
	no := []model.PriceLevel{{Price: 55, Size: 8}}

	events := Diff(snap("MKT-A", now.Add(-time.Minute), yes, no), snap("MKT-A", now, yes, no))
	if len(events) != 0 {
		t.Errorf("identical snapshots should produce no events, got %d", len(events))
	}
}

func TestDiffNilPrior(t *testing.T) {
	now := time.Now().UTC()
	current := snap("MKT-A", now,
		[]model.PriceLevel{{Price: 40, Size: 10}},
		[]model.PriceLevel{{Price: 55, Size: 8}})

	events := Diff(nil, current)
	if len(events) != 2 {
		t.Fatalf("expected 2 ADD events, got %d", len(events))
	}
	for _, e := range events {
		if e.Type != model.OrderbookAdd {
			t.Errorf("expected ADD for %s/%d, got %s", e.Side, e.Price, e.Type)
		}
	}
}

func TestDiffEventTimeShared(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	prior := snap("MKT-A", now.Add(-time.Minute),
		[]model.PriceLevel{{Price: 40, Size: 10}},
		[]model.PriceLevel{{Price: 55, Size: 8}})
	current := snap("MKT-A", now,
		[]model.PriceLevel{{Price: 41, Size: 3}},
		[]model.PriceLevel{{Price: 56, Size: 2}})

	for _, e := range Diff(prior, current) {
		if !e.EventTime.Equal(now) {
			t.Errorf("event %s/%d has time %v, want %v", e.Side, e.Price, e.EventTime, now)
		}
	}
}

// Replaying the diff on the prior ladder must reproduce the current ladder.
func TestDiffReplay(t *testing.T) {
	now := time.Now().UTC()
	prior := snap("MKT-A", now.Add(-time.Minute),
		[]model.PriceLevel{{Price: 40, Size: 10}, {Price: 41, Size: 5}, {Price: 43, Size: 2}},
		[]model.PriceLevel{{Price: 55, Size: 8}})
	current := snap("MKT-A", now,
		[]model.PriceLevel{{Price: 40, Size: 12}, {Price: 42, Size: 7}, {Price: 43, Size: 2}},
		[]model.PriceLevel{{Price: 56, Size: 1}})

	replayed := map[model.Side]map[int]int{
		model.SideYes: ladderMap(prior.Yes),
		model.SideNo:  ladderMap(prior.No),
	}

	for _, e := range Diff(prior, current) {
		switch e.Type {
		case model.OrderbookRemove:
			delete(replayed[e.Side], e.Price)
		default:
			replayed[e.Side][e.Price] = e.Size
		}
	}

	assertLadder(t, replayed[model.SideYes], current.Yes)
	assertLadder(t, replayed[model.SideNo], current.No)
}

func ladderMap(levels []model.PriceLevel) map[int]int {
	m := make(map[int]int, len(levels))
	for _, lvl := range levels {
		m[lvl.Price] = lvl.Size
	}
	return m
}

func assertLadder(t *testing.T, got map[int]int, want []model.PriceLevel) {
	t.Helper()
	if len(got) != len(want) {
		t.Errorf("ladder has %d levels, want %d", len(got), len(want))
	}
	for _, lvl := range want {
		if got[lvl.Price] != lvl.Size {
			t.Errorf("price %d has size %d, want %d", lvl.Price, got[lvl.Price], lvl.Size)
		}
	}
}
