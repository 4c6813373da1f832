// Package transcribe turns inbound voice notes into text by shelling out to
// a configured transcriber command (whisper-cli, a wrapper script, etc.).
package transcribe

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"os/exec"
)

const defaultTimeout = 30 * time.Second

// Transcriber runs an external speech-to-text command. The audio file path
// is appended as the final argument; stdout is the transcript.
type Transcriber struct {
	argv    []string
	timeout time.Duration
}

// New builds a transcriber from the configured argv. An empty argv yields a
// disabled transcriber that returns empty transcripts.
func New(argv []string) *Transcriber {
	return &Transcriber{argv: argv, timeout: defaultTimeout}
}

// Enabled reports whether a transcriber command is configured.
func (t *Transcriber) Enabled() bool {
	return t != nil && len(t.argv) > 0
}

// Transcribe runs the command on the audio file and returns the trimmed
// transcript. A disabled transcriber or empty path returns ("", nil) so
// callers can skip silently.
func (t *Transcriber) Transcribe(ctx context.Context, audioPath string) (string, error) {
	if !t.Enabled() || audioPath == "" {
		return "", nil
	}

	runCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	args := append(append([]string{}, t.argv[1:]...), audioPath)
	cmd := exec.CommandContext(runCtx, t.argv[0], args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("transcriber %q: %w (stderr: %s)",
			t.argv[0], err, strings.TrimSpace(stderr.String()))
	}

	transcript := strings.TrimSpace(stdout.String())
	slog.Debug("transcribed audio",
		"path", audioPath,
		"chars", len(transcript),
		"took", time.Since(start).Round(time.Millisecond),
	)
	return transcript, nil
}
