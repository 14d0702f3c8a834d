package lock

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestMemoryLocker_Exclusive(t *testing.T) {
	l := NewMemoryLocker()
	ctx := context.Background()

	release, ok, err := l.TryLock(ctx, "job-1")
	if err != nil || !ok {
		t.Fatalf("first TryLock: ok=%v err=%v", ok, err)
	}
	if _, ok, _ := l.TryLock(ctx, "job-1"); ok {
		t.Fatal("second TryLock on a held key should fail")
	}
	if _, ok, _ := l.TryLock(ctx, "job-2"); !ok {
		t.Fatal("a different key should be free")
	}

	release()
	release() // idempotent

	if _, ok, _ := l.TryLock(ctx, "job-1"); !ok {
		t.Fatal("key should be free after release")
	}
}

func TestMemoryLocker_ConcurrentSingleWinner(t *testing.T) {
	l := NewMemoryLocker()
	var wins atomic.Int32
	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok, _ := l.TryLock(context.Background(), "hot"); ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	if wins.Load() != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins.Load())
	}
}

// Runs only with a reachable Redis:
// JOBENRICH_TEST_REDIS_URL=redis://localhost:6379/15 go test ./internal/lock
func TestRedisLocker(t *testing.T) {
	url := os.Getenv("JOBENRICH_TEST_REDIS_URL")
	if url == "" {
		t.Skip("JOBENRICH_TEST_REDIS_URL not set")
	}
	ctx := context.Background()
	rdb, err := NewRedisClient(ctx, url)
	if err != nil {
		t.Fatalf("NewRedisClient: %v", err)
	}
	t.Cleanup(func() { rdb.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a := NewRedisLocker(rdb, time.Minute, logger)
	b := NewRedisLocker(rdb, time.Minute, logger)
	key := "test-" + uuid.NewString()

	release, ok, err := a.TryLock(ctx, key)
	if err != nil || !ok {
		t.Fatalf("a.TryLock: ok=%v err=%v", ok, err)
	}
	if _, ok, err := b.TryLock(ctx, key); err != nil || ok {
		t.Fatalf("b.TryLock on held key: ok=%v err=%v", ok, err)
	}
	release()
	releaseB, ok, err := b.TryLock(ctx, key)
	if err != nil || !ok {
		t.Fatalf("b.TryLock after release: ok=%v err=%v", ok, err)
	}
	releaseB()
}
