// Package ledger tracks which remote items have already been handled during the
// lifetime of the process, plus a per-feed watermark of the newest id seen.
package ledger

import (
	"strings"
	"sync"
)

// Ledger is safe for concurrent use by independent feed loops.
// The processed set is never evicted.
type Ledger struct {
	mu         sync.Mutex
	processed  map[string]struct{}
	watermarks map[string]string
}

func New() *Ledger {
	return &Ledger{
		processed:  make(map[string]struct{}),
		watermarks: make(map[string]string),
	}
}

func (l *Ledger) IsProcessed(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.processed[id]
	return ok
}

func (l *Ledger) MarkProcessed(id string) {
	if id == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.processed[id] = struct{}{}
}

func (l *Ledger) ProcessedCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.processed)
}

// Watermark returns the newest id recorded for the feed key.
func (l *Ledger) Watermark(key string) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	id, ok := l.watermarks[key]
	return id, ok
}

// Advance moves the watermark for key to id if id is newer than the current value.
// It reports whether the watermark changed.
func (l *Ledger) Advance(key, id string) bool {
	if id == "" {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	current, ok := l.watermarks[key]
	if ok && CompareIDs(id, current) <= 0 {
		return false
	}
	l.watermarks[key] = id
	return true
}

// CompareIDs orders platform ids. Numeric ids compare by value, anything else
// falls back to a plain string comparison.
func CompareIDs(a, b string) int {
	if isDigits(a) && isDigits(b) {
		a = strings.TrimLeft(a, "0")
		b = strings.TrimLeft(b, "0")
		if len(a) != len(b) {
			if len(a) < len(b) {
				return -1
			}
			return 1
		}
	}
	return strings.Compare(a, b)
}

// Newest returns the greatest id in ids, or "" when ids is empty.
func Newest(ids []string) string {
	newest := ""
	for _, id := range ids {
		if id == "" {
			continue
		}
		if newest == "" || CompareIDs(id, newest) > 0 {
			newest = id
		}
	}
	return newest
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
