package ledger

import (
	"sync"
	"testing"
)

func TestCompareIDs(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"9", "10", -1},
		{"110000000000000001", "109999999999999999", 1},
		{"0012", "12", 0},
		{"abc", "abd", -1},
		{"5", "5", 0},
	}
	for _, tc := range cases {
		if got := CompareIDs(tc.a, tc.b); got != tc.want {
			t.Errorf("CompareIDs(%q, %q) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestAdvanceNeverRegresses(t *testing.T) {
	l := New()
	if _, ok := l.Watermark("user:alice"); ok {
		t.Fatalf("expected no watermark before first advance")
	}
	if !l.Advance("user:alice", "100") {
		t.Fatalf("expected first advance to succeed")
	}
	if l.Advance("user:alice", "99") {
		t.Fatalf("expected older id to be rejected")
	}
	if l.Advance("user:alice", "100") {
		t.Fatalf("expected equal id to be a no-op")
	}
	if !l.Advance("user:alice", "1000") {
		t.Fatalf("expected newer id to advance")
	}
	got, _ := l.Watermark("user:alice")
	if got != "1000" {
		t.Fatalf("expected watermark 1000, got %s", got)
	}
	if l.Advance("user:alice", "") {
		t.Fatalf("expected empty id to be ignored")
	}
}

func TestWatermarksArePerKey(t *testing.T) {
	l := New()
	l.Advance("a", "5")
	l.Advance("b", "2")
	if got, _ := l.Watermark("a"); got != "5" {
		t.Fatalf("unexpected watermark for a: %s", got)
	}
	if got, _ := l.Watermark("b"); got != "2" {
		t.Fatalf("unexpected watermark for b: %s", got)
	}
}

func TestProcessedSet(t *testing.T) {
	l := New()
	var wg sync.WaitGroup
	for _, id := range []string{"n1", "n2", "n3", "n1"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			l.MarkProcessed(id)
		}(id)
	}
	wg.Wait()
	if l.ProcessedCount() != 3 {
		t.Fatalf("expected 3 processed ids, got %d", l.ProcessedCount())
	}
	if !l.IsProcessed("n2") || l.IsProcessed("n4") {
		t.Fatalf("unexpected processed membership")
	}
}

func TestNewest(t *testing.T) {
	if got := Newest([]string{"3", "12", "7"}); got != "12" {
		t.Fatalf("expected 12, got %s", got)
	}
	if got := Newest(nil); got != "" {
		t.Fatalf("expected empty, got %s", got)
	}
}
