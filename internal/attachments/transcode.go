package attachments

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"
)

// Transcoder re-encodes an audio payload into a broadly-playable format.
type Transcoder interface {
	// Transcode returns the re-encoded bytes plus their MIME type and
	// file extension.
	Transcode(ctx context.Context, data []byte) ([]byte, string, string, error)
}

// FFmpegTranscoder shells out to ffmpeg to re-encode webm/opus voice
// recordings to mp3 before they are persisted.
type FFmpegTranscoder struct {
	Path    string
	Timeout time.Duration
}

func NewFFmpegTranscoder(path string, timeout time.Duration) *FFmpegTranscoder {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &FFmpegTranscoder{Path: path, Timeout: timeout}
}

func (t *FFmpegTranscoder) Transcode(ctx context.Context, data []byte) ([]byte, string, string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, t.Path,
		"-i", "pipe:0",
		"-vn",
		"-codec:a", "libmp3lame",
		"-qscale:a", "4",
		"-f", "mp3",
		"pipe:1",
	)
	cmd.Stdin = bytes.NewReader(data)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, "", "", fmt.Errorf("transcode timed out after %s", t.Timeout)
		}
		return nil, "", "", fmt.Errorf("ffmpeg failed: %w: %s", err, stderr.String())
	}
	return stdout.Bytes(), "audio/mpeg", "mp3", nil
}
