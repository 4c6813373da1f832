package autoreply

import "time"

// TurnRecord summarizes one completed agent turn for archival.
type TurnRecord struct {
	At           time.Time
	Surface      string
	SessionKey   string
	SessionID    string
	Model        string
	InputTokens  int64
	OutputTokens int64
	UserChars    int
	ReplyChars   int
	Aborted      bool
}

// TurnRecorder receives completed turns. Implementations must not block;
// recording is best-effort and failures never affect the reply path.
type TurnRecorder interface {
	RecordTurn(rec TurnRecord)
}

// SetRecorder installs a turn recorder. Call before serving traffic.
func (e *Engine) SetRecorder(r TurnRecorder) {
	e.recorder = r
}
