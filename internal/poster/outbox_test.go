package poster

import "testing"

func TestOutboxFIFOWithPushFront(t *testing.T) {
	o := NewOutbox()
	a := o.Push(Entry{Status: "a"})
	o.Push(Entry{Status: "b"})
	if a.ID == "" {
		t.Fatalf("expected Push to assign an id")
	}

	got, ok := o.Pop()
	if !ok || got.Status != "a" {
		t.Fatalf("expected a, got %+v (ok=%v)", got, ok)
	}
	o.PushFront(got)
	if o.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", o.Len())
	}
	head, _ := o.Peek()
	if head.ID != a.ID {
		t.Fatalf("expected requeued entry at head, got %+v", head)
	}
	o.Pop()
	o.Pop()
	if _, ok := o.Pop(); ok {
		t.Fatalf("expected empty outbox")
	}
}
