package persistence

import (
	"context"
	"errors"
	"testing"
)

// failingBackend fails every operation, standing in for an unreachable
// store.
type failingBackend struct{}

var _ Backend = (*failingBackend)(nil)

var errBackendDown = errors.New("backend down")

func (failingBackend) LoadUserRecord(ctx context.Context, userID string) (map[string]any, error) {
	return nil, errBackendDown
}

func (failingBackend) SaveUserRecord(ctx context.Context, userID string, record map[string]any) error {
	return errBackendDown
}

func (failingBackend) RemoveUserRecord(ctx context.Context, userID string) (bool, error) {
	return false, errBackendDown
}

func (failingBackend) HealthCheck(ctx context.Context) bool {
	return false
}

func (failingBackend) ListUserIDs(ctx context.Context) ([]string, error) {
	return nil, errBackendDown
}

func TestCompositeBackend_ReadPrefersCache(t *testing.T) {
	cache := NewMemoryBackend()
	durable := NewMemoryBackend()
	composite := NewCompositeBackend(cache, durable, nil)
	ctx := context.Background()

	cached := sampleRecord()
	cached["tax-guide"].(map[string]any)["status"] = "completed"
	if err := cache.SaveUserRecord(ctx, "user-1", cached); err != nil {
		t.Fatalf("seed cache failed: %v", err)
	}
	if err := durable.SaveUserRecord(ctx, "user-1", sampleRecord()); err != nil {
		t.Fatalf("seed durable failed: %v", err)
	}

	got, err := composite.LoadUserRecord(ctx, "user-1")
	if err != nil {
		t.Fatalf("LoadUserRecord failed: %v", err)
	}
	if got["tax-guide"].(map[string]any)["status"] != "completed" {
		t.Fatal("expected the cached copy to win")
	}
}

func TestCompositeBackend_ReadFallsBackOnCacheFailure(t *testing.T) {
	durable := NewMemoryBackend()
	composite := NewCompositeBackend(failingBackend{}, durable, nil)
	ctx := context.Background()

	if err := durable.SaveUserRecord(ctx, "user-1", sampleRecord()); err != nil {
		t.Fatalf("seed durable failed: %v", err)
	}

	got, err := composite.LoadUserRecord(ctx, "user-1")
	if err != nil {
		t.Fatalf("LoadUserRecord failed: %v", err)
	}
	if _, ok := got["tax-guide"]; !ok {
		t.Fatalf("expected durable copy, got %#v", got)
	}
}

func TestCompositeBackend_ReadFallsBackOnCacheMiss(t *testing.T) {
	cache := NewMemoryBackend()
	durable := NewMemoryBackend()
	composite := NewCompositeBackend(cache, durable, nil)
	ctx := context.Background()

	if err := durable.SaveUserRecord(ctx, "user-1", sampleRecord()); err != nil {
		t.Fatalf("seed durable failed: %v", err)
	}

	got, err := composite.LoadUserRecord(ctx, "user-1")
	if err != nil {
		t.Fatalf("LoadUserRecord failed: %v", err)
	}
	if _, ok := got["tax-guide"]; !ok {
		t.Fatal("expected fallback to durable on empty cache")
	}
}

func TestCompositeBackend_WriteSurvivesSingleFailure(t *testing.T) {
	durable := NewMemoryBackend()
	composite := NewCompositeBackend(failingBackend{}, durable, nil)
	ctx := context.Background()

	if err := composite.SaveUserRecord(ctx, "user-1", sampleRecord()); err != nil {
		t.Fatalf("expected save to succeed with one backend down, got %v", err)
	}

	got, err := durable.LoadUserRecord(ctx, "user-1")
	if err != nil {
		t.Fatalf("LoadUserRecord failed: %v", err)
	}
	if len(got) == 0 {
		t.Fatal("expected durable backend to hold the record")
	}
}

func TestCompositeBackend_WriteFailsWhenBothFail(t *testing.T) {
	composite := NewCompositeBackend(failingBackend{}, failingBackend{}, nil)

	err := composite.SaveUserRecord(context.Background(), "user-1", sampleRecord())
	if !errors.Is(err, ErrAllBackendsFailed) {
		t.Fatalf("expected ErrAllBackendsFailed, got %v", err)
	}
}

func TestCompositeBackend_RemoveSucceedsIfEitherRemoved(t *testing.T) {
	cache := NewMemoryBackend()
	composite := NewCompositeBackend(cache, failingBackend{}, nil)
	ctx := context.Background()

	if err := cache.SaveUserRecord(ctx, "user-1", sampleRecord()); err != nil {
		t.Fatalf("seed cache failed: %v", err)
	}

	removed, err := composite.RemoveUserRecord(ctx, "user-1")
	if err != nil {
		t.Fatalf("RemoveUserRecord failed: %v", err)
	}
	if !removed {
		t.Fatal("expected removed=true when the cache removal succeeded")
	}
}

func TestCompositeBackend_HealthAndList(t *testing.T) {
	cache := NewMemoryBackend()
	durable := NewMemoryBackend()
	composite := NewCompositeBackend(cache, durable, nil)
	ctx := context.Background()

	if err := cache.SaveUserRecord(ctx, "cached-user", sampleRecord()); err != nil {
		t.Fatalf("seed cache failed: %v", err)
	}
	if err := durable.SaveUserRecord(ctx, "durable-user", sampleRecord()); err != nil {
		t.Fatalf("seed durable failed: %v", err)
	}

	ids, err := composite.ListUserIDs(ctx)
	if err != nil {
		t.Fatalf("ListUserIDs failed: %v", err)
	}
	if len(ids) != 2 || ids[0] != "cached-user" || ids[1] != "durable-user" {
		t.Fatalf("expected sorted union, got %v", ids)
	}

	if !composite.HealthCheck(ctx) {
		t.Fatal("expected healthy composite")
	}

	degraded := NewCompositeBackend(failingBackend{}, durable, nil)
	if !degraded.HealthCheck(ctx) {
		t.Fatal("expected composite to stay healthy with one backend down")
	}
}
