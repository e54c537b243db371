package memory

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "nested", "memory.db"), "")
	if err != nil {
		t.Fatalf("failed to init sqlite store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStoreCreateAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	got, err := store.GetMemoryByID(ctx, "n1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got != nil {
		t.Fatalf("expected no record, got %+v", got)
	}

	record := Record{
		ID:                "n1",
		Kind:              KindNotification,
		Feed:              "notifications",
		Author:            "bob",
		Content:           "hello there",
		ImageDescriptions: []string{"a cat"},
		Response:          "hi bob",
		Actions:           []string{"favourite", "reply"},
		CreatedAt:         time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	if err := store.CreateMemory(ctx, record); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	got, err = store.GetMemoryByID(ctx, "n1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got == nil {
		t.Fatalf("expected record")
	}
	if got.Kind != KindNotification || got.Author != "bob" || got.Response != "hi bob" {
		t.Fatalf("unexpected record %+v", got)
	}
	if len(got.Actions) != 2 || got.Actions[1] != "reply" {
		t.Fatalf("unexpected actions %v", got.Actions)
	}
	if len(got.ImageDescriptions) != 1 || got.ImageDescriptions[0] != "a cat" {
		t.Fatalf("unexpected image descriptions %v", got.ImageDescriptions)
	}
	if !got.CreatedAt.Equal(record.CreatedAt) {
		t.Fatalf("expected created_at %v, got %v", record.CreatedAt, got.CreatedAt)
	}
}

func TestSQLiteStoreCreateIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.CreateMemory(ctx, Record{ID: "s1", Kind: KindStatus, Content: "first"}); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := store.CreateMemory(ctx, Record{ID: "s1", Kind: KindStatus, Content: "second"}); err != nil {
		t.Fatalf("second create failed: %v", err)
	}
	got, err := store.GetMemoryByID(ctx, "s1")
	if err != nil || got == nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Content != "first" {
		t.Fatalf("expected original content to survive, got %q", got.Content)
	}
	var count int
	if err := store.db.QueryRow(`SELECT COUNT(*) FROM "memories"`).Scan(&count); err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 row, got %d", count)
	}
}

func TestSQLiteStoreRecentMemories(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"p1", "p2", "p3"} {
		if err := store.CreateMemory(ctx, Record{ID: id, Kind: KindPost, Content: id, CreatedAt: base.Add(time.Duration(i) * time.Hour)}); err != nil {
			t.Fatalf("create failed: %v", err)
		}
	}
	if err := store.CreateMemory(ctx, Record{ID: "s1", Kind: KindStatus, CreatedAt: base.Add(10 * time.Hour)}); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	recent, err := store.RecentMemories(ctx, KindPost, 2)
	if err != nil {
		t.Fatalf("recent failed: %v", err)
	}
	if len(recent) != 2 || recent[0].ID != "p3" || recent[1].ID != "p2" {
		t.Fatalf("unexpected recent memories %+v", recent)
	}
}

func TestSQLiteStoreRejectsBadTable(t *testing.T) {
	if _, err := NewSQLiteStore(filepath.Join(t.TempDir(), "m.db"), "bad-name"); err == nil {
		t.Fatalf("expected invalid table name error")
	}
	if _, err := NewSQLiteStore("", ""); err == nil {
		t.Fatalf("expected dsn error")
	}
}

func TestSQLiteStoreRequiresID(t *testing.T) {
	store := newTestStore(t)
	if err := store.CreateMemory(context.Background(), Record{Kind: KindPost}); err == nil {
		t.Fatalf("expected missing id error")
	}
}
