package agent

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/clawrelay/clawrelay/internal/providers"
)

// transcriptLine is one JSONL record in a session transcript.
type transcriptLine struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Ts      int64  `json:"ts"`
}

// historyLimit caps how many prior messages are replayed into a turn.
const historyLimit = 40

// loadTranscript reads the tail of a transcript file as provider messages.
// A missing file is an empty history; corrupt lines are skipped.
func loadTranscript(path string) []providers.Message {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var msgs []providers.Message
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var line transcriptLine
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			continue
		}
		if line.Role != "user" && line.Role != "assistant" {
			continue
		}
		msgs = append(msgs, providers.Message{Role: line.Role, Content: line.Content})
	}
	if len(msgs) > historyLimit {
		msgs = msgs[len(msgs)-historyLimit:]
	}
	return msgs
}

// appendTranscript appends records to the transcript file, creating parent
// directories on first write.
func appendTranscript(path string, lines ...transcriptLine) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create transcript dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open transcript: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	now := time.Now().UnixMilli()
	for _, line := range lines {
		if line.Ts == 0 {
			line.Ts = now
		}
		if err := enc.Encode(line); err != nil {
			return fmt.Errorf("write transcript: %w", err)
		}
	}
	return nil
}
