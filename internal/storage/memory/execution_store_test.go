package memory

import (
	"context"
	"errors"
	"testing"

	"marketfinder/internal/domain"
	"marketfinder/internal/storage"
)

func testExecution(id string, startedAt int64) *domain.PipelineExecution {
	return &domain.PipelineExecution{
		ExecutionID: id,
		Status:      domain.ExecutionRunning,
		StartedAt:   startedAt,
		StageMetrics: []domain.StageMetrics{
			{Stage: domain.StageFiltering, InputCount: 10, OutputCount: 3,
				RejectReasons: map[string]int{"low_liquidity": 7}},
		},
	}
}

func TestExecutionStoreInsertAndGet(t *testing.T) {
	ctx := context.Background()
	store := NewExecutionStore()

	if err := store.Insert(ctx, testExecution("e1", 100)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	got, err := store.GetByID(ctx, "e1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.ExecutionRunning {
		t.Errorf("status = %s", got.Status)
	}
	if got.StageMetrics[0].RejectReasons["low_liquidity"] != 7 {
		t.Errorf("stage metrics not preserved: %+v", got.StageMetrics)
	}
}

func TestExecutionStoreInsertDuplicate(t *testing.T) {
	ctx := context.Background()
	store := NewExecutionStore()

	if err := store.Insert(ctx, testExecution("e1", 100)); err != nil {
		t.Fatal(err)
	}
	if err := store.Insert(ctx, testExecution("e1", 200)); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Fatalf("err = %v, want ErrDuplicateKey", err)
	}
}

func TestExecutionStoreUpdate(t *testing.T) {
	ctx := context.Background()
	store := NewExecutionStore()

	exec := testExecution("e1", 100)
	if err := store.Insert(ctx, exec); err != nil {
		t.Fatal(err)
	}

	done := int64(500)
	exec.Status = domain.ExecutionCompleted
	exec.CompletedAt = &done
	if err := store.Update(ctx, exec); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, _ := store.GetByID(ctx, "e1")
	if got.Status != domain.ExecutionCompleted || got.CompletedAt == nil || *got.CompletedAt != 500 {
		t.Errorf("got %+v", got)
	}
}

func TestExecutionStoreUpdateMissing(t *testing.T) {
	store := NewExecutionStore()
	err := store.Update(context.Background(), testExecution("nope", 1))
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestExecutionStoreListRecent(t *testing.T) {
	ctx := context.Background()
	store := NewExecutionStore()
	for i, id := range []string{"e1", "e2", "e3"} {
		if err := store.Insert(ctx, testExecution(id, int64(100*(i+1)))); err != nil {
			t.Fatal(err)
		}
	}

	got, err := store.ListRecent(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].ExecutionID != "e3" || got[1].ExecutionID != "e2" {
		t.Errorf("order: %s, %s", got[0].ExecutionID, got[1].ExecutionID)
	}
}

func TestExecutionStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewExecutionStore()
	if err := store.Insert(ctx, testExecution("e1", 100)); err != nil {
		t.Fatal(err)
	}

	got, _ := store.GetByID(ctx, "e1")
	got.StageMetrics[0].RejectReasons["low_liquidity"] = 999

	again, _ := store.GetByID(ctx, "e1")
	if again.StageMetrics[0].RejectReasons["low_liquidity"] != 7 {
		t.Fatal("store returned a shared reference")
	}
}
