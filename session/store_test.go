package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"visa-assessor/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewStoreWithClient(client, time.Hour)
}

func TestStoreRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sess := New()
	sess.Step = models.StepResultsFree
	sess.Premium = true
	sess.Result = &models.AnalysisResult{Score: 64, Summary: "solid"}

	if err := store.Put(ctx, sess); err != nil {
		t.Fatalf("Put() error: %v", err)
	}

	got, err := store.Get(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.Step != models.StepResultsFree || !got.Premium {
		t.Errorf("reloaded session lost state: %+v", got)
	}
	if got.Result == nil || got.Result.Score != 64 {
		t.Errorf("reloaded session lost result: %+v", got.Result)
	}
}

func TestStoreGetMissing(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Get(context.Background(), "no-such-id")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestStoreDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sess := New()
	if err := store.Put(ctx, sess); err != nil {
		t.Fatalf("Put() error: %v", err)
	}
	if err := store.Delete(ctx, sess.ID); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if _, err := store.Get(ctx, sess.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after delete = %v, want ErrNotFound", err)
	}
}

func TestStoreTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	store := NewStoreWithClient(client, time.Minute)
	ctx := context.Background()

	sess := New()
	if err := store.Put(ctx, sess); err != nil {
		t.Fatalf("Put() error: %v", err)
	}

	mr.FastForward(2 * time.Minute)
	if _, err := store.Get(ctx, sess.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("session should expire after the TTL, got %v", err)
	}
}
