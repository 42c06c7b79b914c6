package memory

import (
	"context"
	"errors"
	"testing"

	"marketfinder/internal/domain"
	"marketfinder/internal/storage"
)

func TestSyncLogStoreInsertAndGet(t *testing.T) {
	ctx := context.Background()
	store := NewSyncLogStore()

	logs := []*domain.SyncLog{
		{SyncID: "s1", ExecutionID: "e1", Venue: domain.VenueKalshi, MarketsFetched: 100, Status: "ok"},
		{SyncID: "s2", ExecutionID: "e1", Venue: domain.VenuePolymarket, MarketsFetched: 200, Status: "ok"},
		{SyncID: "s3", ExecutionID: "e2", Venue: domain.VenueKalshi, MarketsFetched: 50, Status: "ok"},
	}
	for _, l := range logs {
		if err := store.Insert(ctx, l); err != nil {
			t.Fatalf("insert %s: %v", l.SyncID, err)
		}
	}

	got, err := store.GetByExecution(ctx, "e1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Venue != domain.VenueKalshi {
		t.Errorf("order: %s first", got[0].Venue)
	}
}

func TestSyncLogStoreDuplicate(t *testing.T) {
	ctx := context.Background()
	store := NewSyncLogStore()
	if err := store.Insert(ctx, &domain.SyncLog{SyncID: "s1"}); err != nil {
		t.Fatal(err)
	}
	if err := store.Insert(ctx, &domain.SyncLog{SyncID: "s1"}); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Fatalf("err = %v, want ErrDuplicateKey", err)
	}
}

func TestSyncLogStoreRejectsEmptyID(t *testing.T) {
	err := NewSyncLogStore().Insert(context.Background(), &domain.SyncLog{})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}
