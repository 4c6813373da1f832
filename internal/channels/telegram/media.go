package telegram

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/mymmrac/telego"

	"github.com/clawrelay/clawrelay/internal/bus"
	"github.com/clawrelay/clawrelay/internal/media"
)

const (
	// mediaMaxBytes caps downloads at the Bot API file limit (20MB).
	mediaMaxBytes int64 = 20 * 1024 * 1024

	downloadMaxRetries = 3
)

// resolveMedia downloads the message's primary attachment and fills the
// inbound message's media fields. Photos are normalized for vision use;
// voice notes and audio are transcribed when a transcriber is configured.
func (c *Channel) resolveMedia(ctx context.Context, message *telego.Message, msg *bus.InboundMessage) {
	switch {
	case len(message.Photo) > 0:
		// Highest resolution variant is last.
		photo := message.Photo[len(message.Photo)-1]
		path, err := c.downloadMedia(ctx, photo.FileID)
		if err != nil {
			slog.Warn("failed to download photo", "file_id", photo.FileID, "error", err)
			return
		}
		normalized, err := media.NormalizeImage(path)
		if err != nil {
			slog.Warn("image normalization failed, using original", "error", err)
			normalized = path
		}
		msg.MediaPath = normalized
		msg.MediaType = "image"

	case message.Voice != nil:
		c.resolveAudio(ctx, message.Voice.FileID, msg)

	case message.Audio != nil:
		c.resolveAudio(ctx, message.Audio.FileID, msg)

	case message.Document != nil:
		path, err := c.downloadMedia(ctx, message.Document.FileID)
		if err != nil {
			slog.Warn("failed to download document",
				"file_id", message.Document.FileID, "error", err)
			return
		}
		msg.MediaPath = path
		msg.MediaType = "document"
	}
}

func (c *Channel) resolveAudio(ctx context.Context, fileID string, msg *bus.InboundMessage) {
	path, err := c.downloadMedia(ctx, fileID)
	if err != nil {
		slog.Warn("failed to download audio", "file_id", fileID, "error", err)
		return
	}
	msg.MediaPath = path
	msg.MediaType = "audio"

	if !c.transcriber.Enabled() {
		return
	}
	transcript, err := c.transcriber.Transcribe(ctx, path)
	if err != nil {
		slog.Warn("voice transcription failed", "error", err)
		return
	}
	msg.Transcript = transcript
}

// downloadMedia fetches a file by file_id with retry and a size cap, and
// returns the local temp file path.
func (c *Channel) downloadMedia(ctx context.Context, fileID string) (string, error) {
	var file *telego.File
	var err error
	for attempt := 1; attempt <= downloadMaxRetries; attempt++ {
		file, err = c.bot.GetFile(ctx, &telego.GetFileParams{FileID: fileID})
		if err == nil {
			break
		}
		if attempt < downloadMaxRetries {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}
	}
	if err != nil {
		return "", fmt.Errorf("get file info after %d attempts: %w", downloadMaxRetries, err)
	}
	if file.FilePath == "" {
		return "", fmt.Errorf("empty file path for file_id %s", fileID)
	}
	if int64(file.FileSize) > mediaMaxBytes {
		return "", fmt.Errorf("file too large: %d bytes (max %d)", file.FileSize, mediaMaxBytes)
	}

	downloadURL := fmt.Sprintf("https://api.telegram.org/file/bot%s/%s", c.config.Token, file.FilePath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download failed with status %d", resp.StatusCode)
	}

	ext := filepath.Ext(file.FilePath)
	if ext == "" {
		ext = ".bin"
	}
	tmpFile, err := os.CreateTemp("", "clawrelay_media_*"+ext)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer tmpFile.Close()

	written, err := io.Copy(tmpFile, io.LimitReader(resp.Body, mediaMaxBytes+1))
	if err != nil {
		os.Remove(tmpFile.Name())
		return "", fmt.Errorf("save file: %w", err)
	}
	if written > mediaMaxBytes {
		os.Remove(tmpFile.Name())
		return "", fmt.Errorf("file exceeds max size during download: %d bytes", written)
	}
	return tmpFile.Name(), nil
}
