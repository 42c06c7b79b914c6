package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"marketfinder/internal/domain"
	"marketfinder/internal/storage"
)

func TestEvaluationCacheSetGet(t *testing.T) {
	ctx := context.Background()
	cache := NewEvaluationCache()

	eval := &domain.Evaluation{PairID: "p1", ConfidenceScore: 0.8}
	if err := cache.Set(ctx, "k1", eval, time.Hour); err != nil {
		t.Fatalf("set: %v", err)
	}

	got, err := cache.Get(ctx, "k1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ConfidenceScore != 0.8 {
		t.Errorf("got %+v", got)
	}
}

func TestEvaluationCacheMiss(t *testing.T) {
	cache := NewEvaluationCache()
	_, err := cache.Get(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestEvaluationCacheExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	cache := NewEvaluationCache().WithClock(func() time.Time { return now })

	if err := cache.Set(ctx, "k1", &domain.Evaluation{PairID: "p1"}, time.Hour); err != nil {
		t.Fatal(err)
	}

	now = now.Add(30 * time.Minute)
	if _, err := cache.Get(ctx, "k1"); err != nil {
		t.Fatalf("entry expired early: %v", err)
	}

	now = now.Add(31 * time.Minute)
	if _, err := cache.Get(ctx, "k1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound after ttl", err)
	}
	if cache.Len() != 0 {
		t.Errorf("expired entry not dropped, len = %d", cache.Len())
	}
}

func TestEvaluationCacheRejectsInvalid(t *testing.T) {
	ctx := context.Background()
	cache := NewEvaluationCache()
	if err := cache.Set(ctx, "", &domain.Evaluation{}, time.Hour); !errors.Is(err, storage.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
	if err := cache.Set(ctx, "k", nil, time.Hour); !errors.Is(err, storage.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
	if err := cache.Set(ctx, "k", &domain.Evaluation{}, 0); !errors.Is(err, storage.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestEvaluationCacheReturnsCopies(t *testing.T) {
	ctx := context.Background()
	cache := NewEvaluationCache()
	if err := cache.Set(ctx, "k1", &domain.Evaluation{Reasoning: "original"}, time.Hour); err != nil {
		t.Fatal(err)
	}

	got, _ := cache.Get(ctx, "k1")
	got.Reasoning = "mutated"

	again, _ := cache.Get(ctx, "k1")
	if again.Reasoning != "original" {
		t.Fatal("cache returned a shared reference")
	}
}
