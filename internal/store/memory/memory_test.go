package memory

import (
	"context"
	"errors"
	"testing"

	"aqualedger/backend/internal/store"
)

func TestPutGetRemove(t *testing.T) {
	ctx := context.Background()
	s := New()

	if _, err := s.Get(ctx, store.KeyOrders); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	doc := []byte(`[{"id":"o1"}]`)
	if err := s.Put(ctx, store.KeyOrders, doc); err != nil {
		t.Fatalf("put: %v", err)
	}
	doc[0] = 'x'

	got, err := s.Get(ctx, store.KeyOrders)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != `[{"id":"o1"}]` {
		t.Fatalf("stored document mutated through caller slice: %s", got)
	}

	keys, _ := s.Keys(ctx)
	if len(keys) != 1 || keys[0] != store.KeyOrders {
		t.Fatalf("unexpected keys %v", keys)
	}

	if err := s.Remove(ctx, store.KeyOrders); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := s.Get(ctx, store.KeyOrders); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found after remove, got %v", err)
	}
}
