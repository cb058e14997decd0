package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"liquidityPilot/internal/model"
)

func TestJsonlEventRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "events.jsonl")
	sink := NewJsonlStorage(path)

	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	first := []model.LiquidityEvent{{
		ID:            "evt-1",
		OwnerID:       "alice",
		PoolID:        "pool",
		PrincipalSide: model.SideA,
		Price:         decimal.RequireFromString("0.1"),
		AmountA:       decimal.RequireFromString("45.3125"),
		AmountB:       decimal.RequireFromString("5.49"),
		Range:         model.PriceRange{Min: 0.08, Max: 0.12},
		CreatedAt:     created,
	}}
	second := []model.LiquidityEvent{{ID: "evt-2", OwnerID: "alice", CreatedAt: created}}

	if err := sink.PutEventBatch(first); err != nil {
		t.Fatalf("first batch: %v", err)
	}
	if err := sink.PutEventBatch(second); err != nil {
		t.Fatalf("second batch: %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer file.Close()

	events, err := ReadEvents(file)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	got := events[0]
	if got.ID != "evt-1" || !got.AmountA.Equal(first[0].AmountA) || !got.CreatedAt.Equal(created) || got.Range != first[0].Range {
		t.Fatalf("unexpected event: %+v", got)
	}
}
