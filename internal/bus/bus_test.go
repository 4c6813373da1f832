package bus

import (
	"context"
	"strconv"
	"testing"
	"time"
)

func TestInboundRoundtrip(t *testing.T) {
	b := New()
	b.PublishInbound(InboundMessage{Surface: "telegram", ChatID: "42", Content: "hi"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msg, ok := b.ConsumeInbound(ctx)
	if !ok {
		t.Fatal("expected a message")
	}
	if msg.Surface != "telegram" || msg.Content != "hi" {
		t.Errorf("got %+v", msg)
	}
}

func TestConsumeInboundHonorsContext(t *testing.T) {
	b := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, ok := b.ConsumeInbound(ctx); ok {
		t.Error("canceled context should return ok=false")
	}
}

func TestInboundFullQueueDrops(t *testing.T) {
	b := New()
	for i := 0; i < queueCapacity+10; i++ {
		b.PublishInbound(InboundMessage{MessageID: strconv.Itoa(i)})
	}
	// No deadlock and no panic is the assertion; drain what fits.
	if len(b.inbound) != queueCapacity {
		t.Errorf("queue len = %d, want %d", len(b.inbound), queueCapacity)
	}
}

func TestBroadcastReachesSubscribers(t *testing.T) {
	b := New()
	var got []string
	b.Subscribe("ws-1", func(e Event) { got = append(got, e.Name) })
	b.Broadcast(Event{Name: "chat"})
	b.Unsubscribe("ws-1")
	b.Broadcast(Event{Name: "health"})

	if len(got) != 1 || got[0] != "chat" {
		t.Errorf("got %v", got)
	}
}

func TestDedupe(t *testing.T) {
	d := NewDedupe()
	if d.Seen("tg:1") {
		t.Error("first sighting should not be a dupe")
	}
	if !d.Seen("tg:1") {
		t.Error("second sighting should be a dupe")
	}
	if d.Seen("") {
		t.Error("empty keys are never deduplicated")
	}
}

func TestDedupeBounded(t *testing.T) {
	d := NewDedupe()
	for i := 0; i < dedupeMaxEntries+50; i++ {
		d.Seen("key-" + strconv.Itoa(i))
	}
	if len(d.entries) > dedupeMaxEntries {
		t.Errorf("entries = %d, want <= %d", len(d.entries), dedupeMaxEntries)
	}
}
