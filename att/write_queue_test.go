package att

import "testing"

func TestPrepareWriteQueueEnforcesCapacity(t *testing.T) {
	q := NewPrepareWriteQueue(2)
	if !q.Enqueue(PreparedWrite{Handle: 1}) {
		t.Fatal("first Enqueue unexpectedly failed")
	}
	if !q.Enqueue(PreparedWrite{Handle: 2}) {
		t.Fatal("second Enqueue unexpectedly failed")
	}
	if q.Enqueue(PreparedWrite{Handle: 3}) {
		t.Fatal("Enqueue past capacity unexpectedly succeeded")
	}
	if !q.Full() {
		t.Fatal("Full() = false at capacity")
	}
	if q.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", q.Len())
	}
}

func TestPrepareWriteQueueClearResetsState(t *testing.T) {
	q := NewPrepareWriteQueue(1)
	q.Enqueue(PreparedWrite{Handle: 1})
	q.Clear()
	if q.Len() != 0 || q.Full() {
		t.Fatal("Clear did not reset the queue")
	}
	if !q.Enqueue(PreparedWrite{Handle: 2}) {
		t.Fatal("Enqueue after Clear unexpectedly failed")
	}
}

func TestPrepareWriteQueuePreservesOrder(t *testing.T) {
	q := NewPrepareWriteQueue(3)
	q.Enqueue(PreparedWrite{Handle: 1, Value: []byte("a")})
	q.Enqueue(PreparedWrite{Handle: 2, Value: []byte("b")})
	entries := q.Entries()
	if len(entries) != 2 || entries[0].Handle != 1 || entries[1].Handle != 2 {
		t.Fatalf("Entries() = %+v, want handles [1 2] in order", entries)
	}
}
