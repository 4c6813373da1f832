package systemevent

import "testing"

func TestEnqueueDrain(t *testing.T) {
	q := NewQueue()
	q.Enqueue("Model switched to opus.", "model")
	q.Enqueue("Telegram connected.", "")
	got := q.Drain()
	if len(got) != 2 || got[0] != "Model switched to opus." || got[1] != "Telegram connected." {
		t.Fatalf("got %v", got)
	}
	if q.Len() != 0 {
		t.Fatalf("queue not emptied: %d", q.Len())
	}
}

func TestContextKeyReplaces(t *testing.T) {
	q := NewQueue()
	q.Enqueue("Model switched to opus.", "model")
	q.Enqueue("Model switched to sonnet.", "model")
	got := q.Drain()
	if len(got) != 1 || got[0] != "Model switched to sonnet." {
		t.Fatalf("got %v", got)
	}
}

func TestBlankLinesIgnored(t *testing.T) {
	q := NewQueue()
	q.Enqueue("   ", "")
	if q.Len() != 0 {
		t.Fatal("blank line queued")
	}
}

func TestBoundedQueue(t *testing.T) {
	q := NewQueue()
	for i := 0; i < maxQueued+10; i++ {
		q.Enqueue("event", "")
	}
	if q.Len() != maxQueued {
		t.Fatalf("queue grew past bound: %d", q.Len())
	}
}
