package poster

import (
	"sync"

	"github.com/google/uuid"
)

// Entry is a queued status waiting to be posted.
type Entry struct {
	ID         string
	Status     string
	ReplyToID  string
	QuoteID    string
	MediaIDs   []string
	Visibility string
}

// Outbox is a FIFO of entries. Failed entries go back to the head with PushFront.
type Outbox struct {
	mu      sync.Mutex
	entries []Entry
}

func NewOutbox() *Outbox {
	return &Outbox{}
}

// Push appends entry, assigning an id when it has none.
func (o *Outbox) Push(entry Entry) Entry {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	o.mu.Lock()
	o.entries = append(o.entries, entry)
	o.mu.Unlock()
	return entry
}

func (o *Outbox) PushFront(entry Entry) {
	o.mu.Lock()
	o.entries = append([]Entry{entry}, o.entries...)
	o.mu.Unlock()
}

func (o *Outbox) Pop() (Entry, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.entries) == 0 {
		return Entry{}, false
	}
	entry := o.entries[0]
	o.entries = o.entries[1:]
	return entry, true
}

func (o *Outbox) Peek() (Entry, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.entries) == 0 {
		return Entry{}, false
	}
	return o.entries[0], true
}

func (o *Outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.entries)
}
