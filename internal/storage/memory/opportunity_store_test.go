package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"marketfinder/internal/domain"
	"marketfinder/internal/storage"
)

func testOpportunity(id string, priority float64, expiresAt int64) *domain.Opportunity {
	return &domain.Opportunity{
		OpportunityID: id,
		PairID:        "pair-" + id,
		Type:          domain.TypeSimple,
		PositionSize:  decimal.NewFromInt(1000),
		NetProfit:     decimal.NewFromInt(80),
		Priority:      priority,
		Status:        domain.OpportunityActive,
		ExpiresAt:     expiresAt,
	}
}

func TestOpportunityStoreInsertAndGet(t *testing.T) {
	ctx := context.Background()
	store := NewOpportunityStore()

	if err := store.InsertBulk(ctx, []*domain.Opportunity{testOpportunity("o1", 0.5, 100)}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	got, err := store.GetByID(ctx, "o1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.PairID != "pair-o1" {
		t.Errorf("got %+v", got)
	}
}

func TestOpportunityStoreDuplicate(t *testing.T) {
	ctx := context.Background()
	store := NewOpportunityStore()
	if err := store.InsertBulk(ctx, []*domain.Opportunity{testOpportunity("o1", 0.5, 100)}); err != nil {
		t.Fatal(err)
	}
	err := store.InsertBulk(ctx, []*domain.Opportunity{testOpportunity("o1", 0.7, 100)})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Fatalf("err = %v, want ErrDuplicateKey", err)
	}
}

func TestOpportunityStoreListActiveByPriority(t *testing.T) {
	ctx := context.Background()
	store := NewOpportunityStore()
	opps := []*domain.Opportunity{
		testOpportunity("o1", 0.3, 100),
		testOpportunity("o2", 0.9, 100),
		testOpportunity("o3", 0.6, 100),
	}
	if err := store.InsertBulk(ctx, opps); err != nil {
		t.Fatal(err)
	}

	got, err := store.ListActive(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d", len(got))
	}
	if got[0].OpportunityID != "o2" || got[2].OpportunityID != "o1" {
		t.Errorf("order: %s %s %s", got[0].OpportunityID, got[1].OpportunityID, got[2].OpportunityID)
	}
}

func TestOpportunityStoreExpireBefore(t *testing.T) {
	ctx := context.Background()
	store := NewOpportunityStore()
	if err := store.InsertBulk(ctx, []*domain.Opportunity{
		testOpportunity("o1", 0.5, 100),
		testOpportunity("o2", 0.5, 300),
	}); err != nil {
		t.Fatal(err)
	}

	n, err := store.ExpireBefore(ctx, 200)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expired = %d, want 1", n)
	}

	active, _ := store.ListActive(ctx, 0)
	if len(active) != 1 || active[0].OpportunityID != "o2" {
		t.Errorf("active after expiry: %d", len(active))
	}
	expired, _ := store.GetByID(ctx, "o1")
	if expired.Status != domain.OpportunityExpired {
		t.Errorf("o1 status = %s", expired.Status)
	}
}
