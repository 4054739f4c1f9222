package repository

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"campus-locator/internal/models"
)

type storeCase struct {
	store DocumentStore
	// replaces is false for drivers where merge=false cannot drop fields
	replaces bool
	// realtime is false for drivers whose Subscribe needs a live server
	realtime bool
}

// runStoreSuite checks the behavior every DocumentStore driver shares
func runStoreSuite(t *testing.T, sc storeCase) {
	ctx := context.Background()
	s := sc.store
	collection := "suite_" + NewDocumentID()

	t.Run("get missing", func(t *testing.T) {
		if _, err := s.Get(ctx, collection, "missing"); !errors.Is(err, models.ErrNotFound) {
			t.Errorf("Get() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("set and merge", func(t *testing.T) {
		if err := s.Set(ctx, collection, "a", Fields{"name": "Ana", "room": "G110"}, false); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
		if err := s.Set(ctx, collection, "a", Fields{"room": "G120"}, true); err != nil {
			t.Fatalf("Set(merge) error = %v", err)
		}
		doc, err := s.Get(ctx, collection, "a")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if doc.Fields.String("name") != "Ana" || doc.Fields.String("room") != "G120" {
			t.Errorf("fields = %v, want merged", doc.Fields)
		}

		if !sc.replaces {
			return
		}
		if err := s.Set(ctx, collection, "a", Fields{"name": "Ana"}, false); err != nil {
			t.Fatalf("Set(replace) error = %v", err)
		}
		doc, _ = s.Get(ctx, collection, "a")
		if _, ok := doc.Fields["room"]; ok {
			t.Errorf("fields = %v, want room dropped by replace", doc.Fields)
		}
	})

	t.Run("update", func(t *testing.T) {
		if err := s.Update(ctx, collection, "ghost", Fields{"x": "y"}); !errors.Is(err, models.ErrNotFound) {
			t.Errorf("Update(missing) error = %v, want ErrNotFound", err)
		}
		if err := s.Update(ctx, collection, "a", Fields{"status": "approved"}); err != nil {
			t.Fatalf("Update() error = %v", err)
		}
		doc, _ := s.Get(ctx, collection, "a")
		if doc.Fields.String("status") != "approved" || doc.Fields.String("name") != "Ana" {
			t.Errorf("fields = %v", doc.Fields)
		}
	})

	t.Run("query", func(t *testing.T) {
		s.Set(ctx, collection, "b", Fields{"name": "Ben", "status": "pending"}, false)
		s.Set(ctx, collection, "c", Fields{"name": "Cy", "status": "approved"}, false)

		docs, err := s.Query(ctx, collection, Filter{"status": "approved"})
		if err != nil {
			t.Fatalf("Query() error = %v", err)
		}
		if ids := docIDs(docs); len(ids) != 2 || !ids["a"] || !ids["c"] {
			t.Errorf("Query(approved) = %v, want a and c", ids)
		}
		all, _ := s.Query(ctx, collection, nil)
		if len(all) != 3 {
			t.Errorf("Query(nil) = %d docs, want 3", len(all))
		}
		none, err := s.Query(ctx, "empty_"+NewDocumentID(), nil)
		if err != nil || len(none) != 0 {
			t.Errorf("Query(empty collection) = (%v, %v)", none, err)
		}
	})

	t.Run("delete", func(t *testing.T) {
		if err := s.Delete(ctx, collection, "b"); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		if err := s.Delete(ctx, collection, "b"); err != nil {
			t.Errorf("Delete(missing) error = %v", err)
		}
		if _, err := s.Get(ctx, collection, "b"); !errors.Is(err, models.ErrNotFound) {
			t.Errorf("Get(deleted) error = %v", err)
		}
	})

	if !sc.realtime {
		return
	}
	t.Run("subscribe", func(t *testing.T) {
		subCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		var mu sync.Mutex
		var snapshots [][]Document
		last := func() []Document {
			mu.Lock()
			defer mu.Unlock()
			if len(snapshots) == 0 {
				return nil
			}
			return snapshots[len(snapshots)-1]
		}

		stop, err := s.Subscribe(subCtx, collection, Filter{"status": "approved"}, func(docs []Document) {
			mu.Lock()
			defer mu.Unlock()
			snapshots = append(snapshots, docs)
		})
		if err != nil {
			t.Fatalf("Subscribe() error = %v", err)
		}
		defer stop()

		if len(last()) != 2 {
			t.Fatalf("initial snapshot = %v, want 2 docs", last())
		}
		s.Set(ctx, collection, "d", Fields{"name": "Dee", "status": "approved"}, false)
		waitUntil(t, func() bool { return len(last()) == 3 })
		s.Delete(ctx, collection, "a")
		waitUntil(t, func() bool { return len(last()) == 2 })
	})
}

func docIDs(docs []Document) map[string]bool {
	ids := make(map[string]bool, len(docs))
	for _, d := range docs {
		ids[d.ID] = true
	}
	return ids
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestMemoryStore(t *testing.T) {
	runStoreSuite(t, storeCase{store: NewMemoryStore(), replaces: true, realtime: true})
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr, Password: os.Getenv("REDIS_PASSWORD")})
	t.Cleanup(func() { client.Close() })
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	runStoreSuite(t, storeCase{store: NewRedisStore(client, "test_"+NewDocumentID()), replaces: true, realtime: true})
}

func TestPostgresStore(t *testing.T) {
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := NewPostgresPool(ctx, url)
	if err != nil {
		t.Skipf("postgres unavailable: %v", err)
	}
	t.Cleanup(pool.Close)

	store := NewPostgresStore(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	runStoreSuite(t, storeCase{store: store, replaces: true, realtime: true})
}

func TestPocketBaseStore(t *testing.T) {
	pb := newFakePocketBase(t)
	runStoreSuite(t, storeCase{store: NewPocketBaseStore(pb.URL, "token")})
}
