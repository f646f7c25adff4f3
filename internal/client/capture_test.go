package client

import (
	"errors"
	"strings"
	"testing"

	"github.com/marketlane/backend/internal/attachments"
)

type fakeRecorder struct {
	startedWith string
	data        []byte
	stopErr     error
}

func (f *fakeRecorder) Start(mimeType string) error {
	f.startedWith = mimeType
	return nil
}

func (f *fakeRecorder) Stop() ([]byte, error) {
	return f.data, f.stopErr
}

func TestVoiceCapture_UsesNegotiatedFormat(t *testing.T) {
	supports := func(mime string) bool { return mime == "audio/mpeg" }
	profile := attachments.NewPlaybackProfile(false, supports)

	rec := &fakeRecorder{data: []byte("audio-bytes")}
	vc := NewVoiceCapture(rec, profile)

	if err := vc.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if rec.startedWith != "audio/mpeg" {
		t.Fatalf("recorder started with %q, want audio/mpeg", rec.startedWith)
	}

	file, err := vc.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if file.Name != "voice-message.mp3" || file.MimeType != "audio/mpeg" {
		t.Fatalf("unexpected file %+v", file)
	}
}

func TestVoiceCapture_EmptyRecordingFails(t *testing.T) {
	profile := attachments.NewPlaybackProfile(false, func(string) bool { return true })
	vc := NewVoiceCapture(&fakeRecorder{}, profile)

	if _, err := vc.Finish(); err == nil {
		t.Fatal("expected error for empty recording")
	}
}

func TestVoiceCapture_RecorderError(t *testing.T) {
	profile := attachments.NewPlaybackProfile(false, func(string) bool { return true })
	vc := NewVoiceCapture(&fakeRecorder{stopErr: errors.New("device lost")}, profile)

	if _, err := vc.Finish(); err == nil {
		t.Fatal("expected recorder error to surface")
	}
}

func TestValidatePick(t *testing.T) {
	tests := []struct {
		name     string
		fileName string
		mime     string
		size     int64
		wantErr  bool
	}{
		{"allowed image", "photo.jpg", "image/jpeg", 1024, false},
		{"at the ceiling", "big.pdf", "application/pdf", 50 << 20, false},
		{"over the ceiling", "huge.pdf", "application/pdf", 50<<20 + 1, true},
		{"unsupported type", "script.sh", "application/x-sh", 10, true},
		{"fallback to extension", "notes.txt", "", 10, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidatePick(tt.fileName, tt.mime, tt.size)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePick(%q, %q, %d) error = %v, wantErr %v",
					tt.fileName, tt.mime, tt.size, err, tt.wantErr)
			}
		})
	}
}

func TestReadPick(t *testing.T) {
	file, err := ReadPick("doc.pdf", "application/pdf", 11, strings.NewReader("hello world"))
	if err != nil {
		t.Fatalf("ReadPick: %v", err)
	}
	if string(file.Bytes) != "hello world" || file.MimeType != "application/pdf" {
		t.Fatalf("unexpected file %+v", file)
	}
}
