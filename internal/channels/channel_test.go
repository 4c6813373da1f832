package channels

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/clawrelay/clawrelay/internal/bus"
)

func TestIsAllowed(t *testing.T) {
	tests := []struct {
		name      string
		allowList []string
		senderID  string
		want      bool
	}{
		{name: "empty list allows everyone", allowList: nil, senderID: "12345", want: true},
		{name: "exact id", allowList: []string{"12345"}, senderID: "12345", want: true},
		{name: "unknown id", allowList: []string{"12345"}, senderID: "99999", want: false},
		{name: "compound sender matches id part", allowList: []string{"12345"}, senderID: "12345|alice", want: true},
		{name: "compound sender matches username part", allowList: []string{"alice"}, senderID: "12345|alice", want: true},
		{name: "at-prefixed entry", allowList: []string{"@alice"}, senderID: "12345|alice", want: true},
		{name: "compound entry matches bare id", allowList: []string{"12345|alice"}, senderID: "12345", want: true},
		{name: "compound entry matches bare username", allowList: []string{"12345|alice"}, senderID: "alice", want: true},
		{name: "phone number", allowList: []string{"+15551234567"}, senderID: "+15551234567", want: true},
		{name: "phone with separators", allowList: []string{"+1 (555) 123-4567"}, senderID: "+15551234567", want: true},
		{name: "sender phone with separators", allowList: []string{"+15551234567"}, senderID: "+1 555-123-4567", want: true},
		{name: "wrong username", allowList: []string{"@alice"}, senderID: "12345|bob", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewBaseChannel("test", bus.New(), tt.allowList)
			if got := c.IsAllowed(tt.senderID); got != tt.want {
				t.Errorf("IsAllowed(%q) with %v = %v, want %v", tt.senderID, tt.allowList, got, tt.want)
			}
		})
	}
}

func TestPublishSetsSurfaceAndDedupes(t *testing.T) {
	msgBus := bus.New()
	c := NewBaseChannel("test", msgBus, nil)

	c.Publish(bus.InboundMessage{MessageID: "m1", Content: "first"})
	c.Publish(bus.InboundMessage{MessageID: "m1", Content: "duplicate"})
	c.Publish(bus.InboundMessage{MessageID: "m2", Content: "second"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	got, ok := msgBus.ConsumeInbound(ctx)
	if !ok || got.Content != "first" {
		t.Fatalf("first message: %+v ok=%v", got, ok)
	}
	if got.Surface != "test" {
		t.Errorf("Surface = %q, want test", got.Surface)
	}
	got, ok = msgBus.ConsumeInbound(ctx)
	if !ok || got.Content != "second" {
		t.Fatalf("duplicate not dropped, got %+v", got)
	}
}

func TestPublishWithoutMessageIDNeverDedupes(t *testing.T) {
	msgBus := bus.New()
	c := NewBaseChannel("test", msgBus, nil)

	c.Publish(bus.InboundMessage{Content: "a"})
	c.Publish(bus.InboundMessage{Content: "b"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for _, want := range []string{"a", "b"} {
		got, ok := msgBus.ConsumeInbound(ctx)
		if !ok || got.Content != want {
			t.Fatalf("got %+v ok=%v, want content %q", got, ok, want)
		}
	}
}

func TestInboundRateLimiter(t *testing.T) {
	r := NewInboundRateLimiter()

	for i := 0; i < rateLimitMaxHits; i++ {
		if !r.Allow("k") {
			t.Fatalf("hit %d unexpectedly limited", i)
		}
	}
	if r.Allow("k") {
		t.Error("expected limit after window budget spent")
	}
	if !r.Allow("other") {
		t.Error("independent key should not be limited")
	}
}

func TestInboundRateLimiterBound(t *testing.T) {
	r := NewInboundRateLimiter()
	for i := 0; i < maxTrackedKeys+100; i++ {
		r.Allow(fmt.Sprintf("key-%d", i))
	}
	r.mu.Lock()
	n := len(r.entries)
	r.mu.Unlock()
	if n > maxTrackedKeys {
		t.Errorf("tracked keys %d exceed cap %d", n, maxTrackedKeys)
	}
}
