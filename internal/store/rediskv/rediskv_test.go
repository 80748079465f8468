package rediskv

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"aqualedger/backend/internal/store"
)

func TestDocumentRoundTripIntegration(t *testing.T) {
	addr := os.Getenv("AQUALEDGER_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set AQUALEDGER_TEST_REDIS_ADDR to run redis integration test")
	}

	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr})
	s := New(client, fmt.Sprintf("aqualedger:test:%d:", time.Now().UnixNano()))
	t.Cleanup(func() {
		_ = s.Remove(ctx, store.KeyLanguage)
		_ = s.Close()
	})

	if _, err := s.Get(ctx, store.KeyLanguage); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := s.Put(ctx, store.KeyLanguage, []byte(`"en"`)); err != nil {
		t.Fatalf("put: %v", err)
	}
	body, err := s.Get(ctx, store.KeyLanguage)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(body) != `"en"` {
		t.Fatalf("unexpected body %s", body)
	}
	keys, err := s.Keys(ctx)
	if err != nil || len(keys) != 1 || keys[0] != store.KeyLanguage {
		t.Fatalf("unexpected keys %v (%v)", keys, err)
	}
}

func TestDefaultPrefix(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	t.Cleanup(func() { _ = client.Close() })

	s := New(client, "")
	if s.prefix != defaultPrefix {
		t.Fatalf("expected default prefix, got %q", s.prefix)
	}
}
