package client

import (
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"github.com/marketlane/backend/internal/attachments"
)

// Recorder is the device audio recorder: started with a negotiated MIME
// type, it yields the captured bytes on Stop.
type Recorder interface {
	Start(mimeType string) error
	Stop() ([]byte, error)
}

// VoiceCapture wires the recorder to the negotiated capture format. The
// format is picked once per session from the device's support profile.
type VoiceCapture struct {
	recorder Recorder
	profile  attachments.PlaybackCapabilityProfile
}

func NewVoiceCapture(recorder Recorder, profile attachments.PlaybackCapabilityProfile) *VoiceCapture {
	return &VoiceCapture{recorder: recorder, profile: profile}
}

// Begin starts a recording in the session's negotiated format.
func (v *VoiceCapture) Begin() error {
	return v.recorder.Start(v.profile.RecordingMime)
}

// Finish stops the recording and packages it for SendMedia.
func (v *VoiceCapture) Finish() (MediaFile, error) {
	data, err := v.recorder.Stop()
	if err != nil {
		return MediaFile{}, fmt.Errorf("recording failed: %w", err)
	}
	if len(data) == 0 {
		return MediaFile{}, fmt.Errorf("recording produced no audio")
	}
	return MediaFile{
		Name:     "voice-message." + v.profile.RecordingExt,
		MimeType: v.profile.RecordingMime,
		Bytes:    data,
	}, nil
}

// ValidatePick fast-fails a picked file before any bytes travel: size
// against the upload ceiling and MIME type against the allow-list. The MIME
// type is taken from the file's declared type, falling back to its
// extension.
func ValidatePick(name, declaredMime string, size int64) (string, error) {
	if size > attachments.MaxAttachmentSize {
		return "", fmt.Errorf("%s exceeds the 50MB limit", name)
	}

	mimeType := strings.TrimSpace(declaredMime)
	if mimeType == "" || mimeType == "application/octet-stream" {
		if byExt := mime.TypeByExtension(filepath.Ext(name)); byExt != "" {
			mimeType = byExt
		}
	}
	if !attachments.AllowedType(mimeType) {
		return "", fmt.Errorf("%s has an unsupported type %q", name, declaredMime)
	}
	return mimeType, nil
}

// ReadPick validates and buffers one picked file.
func ReadPick(name, declaredMime string, size int64, r io.Reader) (MediaFile, error) {
	mimeType, err := ValidatePick(name, declaredMime, size)
	if err != nil {
		return MediaFile{}, err
	}
	data, err := io.ReadAll(io.LimitReader(r, attachments.MaxAttachmentSize+1))
	if err != nil {
		return MediaFile{}, fmt.Errorf("failed to read %s: %w", name, err)
	}
	if int64(len(data)) > attachments.MaxAttachmentSize {
		return MediaFile{}, fmt.Errorf("%s exceeds the 50MB limit", name)
	}
	return MediaFile{Name: name, MimeType: mimeType, Bytes: data}, nil
}
