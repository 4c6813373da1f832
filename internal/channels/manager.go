package channels

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/time/rate"

	"github.com/clawrelay/clawrelay/internal/bus"
)

// Manager owns the registered channels: lifecycle, outbound dispatch and
// per-chat send pacing.
type Manager struct {
	mu       sync.RWMutex
	channels map[string]Channel
	bus      *bus.MessageBus

	limiterMu sync.Mutex
	limiters  map[string]*rate.Limiter // surface:chatID -> pacer

	dispatchCancel context.CancelFunc
}

// Outbound messages per chat are paced so a burst of payloads does not trip
// platform flood control.
const (
	sendRate  = rate.Limit(1) // messages per second per chat
	sendBurst = 3
)

// NewManager creates a channel manager on the given bus.
func NewManager(msgBus *bus.MessageBus) *Manager {
	return &Manager{
		channels: make(map[string]Channel),
		bus:      msgBus,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Register adds a channel.
func (m *Manager) Register(ch Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels[ch.Name()] = ch
}

// Get returns a channel by surface name.
func (m *Manager) Get(name string) (Channel, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ch, ok := m.channels[name]
	return ch, ok
}

// Names lists the registered surfaces.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.channels))
	for name := range m.channels {
		names = append(names, name)
	}
	return names
}

// Status reports the running state per surface.
func (m *Manager) Status() map[string]bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	status := make(map[string]bool, len(m.channels))
	for name, ch := range m.channels {
		status[name] = ch.IsRunning()
	}
	return status
}

// StartAll starts every channel and the outbound dispatcher. A channel that
// fails to start is logged and skipped; the rest keep going.
func (m *Manager) StartAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	dispatchCtx, cancel := context.WithCancel(ctx)
	m.dispatchCancel = cancel
	go m.dispatchOutbound(dispatchCtx)

	if len(m.channels) == 0 {
		slog.Warn("no channels enabled")
		return nil
	}

	for name, ch := range m.channels {
		slog.Info("starting channel", "channel", name)
		if err := ch.Start(ctx); err != nil {
			slog.Error("failed to start channel", "channel", name, "error", err)
		}
	}
	return nil
}

// StopAll stops the dispatcher and every channel.
func (m *Manager) StopAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.dispatchCancel != nil {
		m.dispatchCancel()
		m.dispatchCancel = nil
	}
	for name, ch := range m.channels {
		if err := ch.Stop(ctx); err != nil {
			slog.Error("error stopping channel", "channel", name, "error", err)
		}
	}
	return nil
}

// Send delivers a message to a surface directly, bypassing the bus. Used by
// the heartbeat runner for its delivery target.
func (m *Manager) Send(ctx context.Context, msg bus.OutboundMessage) error {
	ch, ok := m.Get(msg.Surface)
	if !ok {
		return fmt.Errorf("channel %s not found", msg.Surface)
	}
	return ch.Send(ctx, msg)
}

// dispatchOutbound consumes replies from the bus and routes each to its
// surface, pacing per chat.
func (m *Manager) dispatchOutbound(ctx context.Context) {
	slog.Info("outbound dispatcher started")
	for {
		msg, ok := m.bus.SubscribeOutbound(ctx)
		if !ok {
			slog.Info("outbound dispatcher stopped")
			return
		}

		ch, exists := m.Get(msg.Surface)
		if !exists {
			slog.Warn("unknown surface for outbound message", "surface", msg.Surface)
			continue
		}

		if err := m.limiterFor(msg.Surface + ":" + msg.ChatID).Wait(ctx); err != nil {
			return
		}

		if err := ch.Send(ctx, msg); err != nil {
			slog.Error("error sending message",
				"surface", msg.Surface, "chat_id", msg.ChatID, "error", err)
		}
	}
}

func (m *Manager) limiterFor(key string) *rate.Limiter {
	m.limiterMu.Lock()
	defer m.limiterMu.Unlock()
	lim, ok := m.limiters[key]
	if !ok {
		lim = rate.NewLimiter(sendRate, sendBurst)
		m.limiters[key] = lim
	}
	return lim
}
