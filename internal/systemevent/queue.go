// Package systemevent buffers one-line operational notices (model switches,
// channel connects, restarts) until the next main-session agent turn drains
// them into the prompt.
package systemevent

import (
	"strings"
	"sync"
)

const maxQueued = 64

// Queue is a bounded FIFO of system event lines. Events with the same
// context key replace their predecessor so repeated transitions do not pile
// up between turns.
type Queue struct {
	mu     sync.Mutex
	lines  []string
	keyIdx map[string]int
}

func NewQueue() *Queue {
	return &Queue{keyIdx: make(map[string]int)}
}

// Enqueue adds an event line. contextKey may be empty; when set, a queued
// event with the same key is replaced in place.
func (q *Queue) Enqueue(line, contextKey string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if contextKey != "" {
		if idx, ok := q.keyIdx[contextKey]; ok {
			q.lines[idx] = line
			return
		}
	}
	if len(q.lines) >= maxQueued {
		// Drop the oldest line and shift the key index down.
		q.lines = q.lines[1:]
		for k, idx := range q.keyIdx {
			if idx == 0 {
				delete(q.keyIdx, k)
			} else {
				q.keyIdx[k] = idx - 1
			}
		}
	}
	q.lines = append(q.lines, line)
	if contextKey != "" {
		q.keyIdx[contextKey] = len(q.lines) - 1
	}
}

// Drain returns all queued lines and empties the queue.
func (q *Queue) Drain() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.lines
	q.lines = nil
	q.keyIdx = make(map[string]int)
	return out
}

// Len reports the number of queued lines.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.lines)
}
