package attachments

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/marketlane/backend/internal/messaging"
	"github.com/marketlane/backend/internal/observability"
)

type fakeBlobStore struct {
	keys        []string
	contentType string
	data        []byte
	err         error
}

func (f *fakeBlobStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.keys = append(f.keys, key)
	f.contentType = contentType
	f.data = data
	return "https://cdn.test/" + key, nil
}

func TestPipeline_RejectsOversizedPayload(t *testing.T) {
	p := NewPipeline(&fakeBlobStore{}, observability.WithComponent("test"))

	oversized := make([]byte, MaxAttachmentSize+1)
	_, err := p.ProcessAttachment(context.Background(), messaging.Upload{
		Bytes:    oversized,
		MimeType: "image/png",
		FileName: "big.png",
	})
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
}

func TestPipeline_AcceptsExactCeiling(t *testing.T) {
	store := &fakeBlobStore{}
	p := NewPipeline(store, observability.WithComponent("test"))

	exact := make([]byte, MaxAttachmentSize)
	att, err := p.ProcessAttachment(context.Background(), messaging.Upload{
		Bytes:    exact,
		MimeType: "application/pdf",
		FileName: "contract.pdf",
	})
	if err != nil {
		t.Fatalf("payload at the ceiling must be accepted: %v", err)
	}
	if att.FileSize != MaxAttachmentSize {
		t.Errorf("FileSize = %d, want %d", att.FileSize, MaxAttachmentSize)
	}
}

func TestPipeline_RejectsUnlistedMime(t *testing.T) {
	p := NewPipeline(&fakeBlobStore{}, observability.WithComponent("test"))

	_, err := p.ProcessAttachment(context.Background(), messaging.Upload{
		Bytes:    []byte("#!/bin/sh"),
		MimeType: "application/x-sh",
		FileName: "evil.sh",
	})
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("expected ErrUnsupportedType, got %v", err)
	}
}

func TestPipeline_NamespacesByCategory(t *testing.T) {
	tests := []struct {
		mime      string
		namespace string
	}{
		{"image/jpeg", "images/"},
		{"audio/mpeg", "audio/"},
		{"video/mp4", "videos/"},
		{"application/pdf", "files/"},
	}

	for _, tt := range tests {
		t.Run(tt.mime, func(t *testing.T) {
			store := &fakeBlobStore{}
			p := NewPipeline(store, observability.WithComponent("test"))

			att, err := p.ProcessAttachment(context.Background(), messaging.Upload{
				Bytes:    []byte("payload"),
				MimeType: tt.mime,
				FileName: "original-name",
			})
			if err != nil {
				t.Fatalf("ProcessAttachment: %v", err)
			}
			if len(store.keys) != 1 || !strings.HasPrefix(store.keys[0], tt.namespace) {
				t.Errorf("key %v, want prefix %q", store.keys, tt.namespace)
			}
			if att.OriginalName != "original-name" {
				t.Errorf("OriginalName = %q", att.OriginalName)
			}
			if !strings.HasPrefix(att.FileURL, "https://cdn.test/") {
				t.Errorf("FileURL = %q", att.FileURL)
			}
		})
	}
}

func TestPipeline_UploadFailureIsTransportError(t *testing.T) {
	store := &fakeBlobStore{err: errors.New("connection reset")}
	p := NewPipeline(store, observability.WithComponent("test"))

	_, err := p.ProcessAttachment(context.Background(), messaging.Upload{
		Bytes:    []byte("payload"),
		MimeType: "image/png",
		FileName: "a.png",
	})
	if !errors.Is(err, ErrUploadTransport) {
		t.Fatalf("expected ErrUploadTransport, got %v", err)
	}
}

type fakeTranscoder struct {
	called bool
	err    error
}

func (f *fakeTranscoder) Transcode(ctx context.Context, data []byte) ([]byte, string, string, error) {
	f.called = true
	if f.err != nil {
		return nil, "", "", f.err
	}
	return []byte("mp3-bytes"), "audio/mpeg", "mp3", nil
}

func TestPipeline_ReencodesLastResortAudio(t *testing.T) {
	store := &fakeBlobStore{}
	tc := &fakeTranscoder{}
	p := NewPipeline(store, observability.WithComponent("test"), WithTranscoder(tc))

	att, err := p.ProcessAttachment(context.Background(), messaging.Upload{
		Bytes:    []byte("webm-bytes"),
		MimeType: "audio/webm",
		FileName: "voice.webm",
	})
	if err != nil {
		t.Fatalf("ProcessAttachment: %v", err)
	}
	if !tc.called {
		t.Fatal("transcoder was not invoked for last-resort audio")
	}
	if att.MimeType != "audio/mpeg" || !strings.HasSuffix(att.FileName, ".mp3") {
		t.Errorf("stored attachment kept the capture format: %+v", att)
	}
	if string(store.data) != "mp3-bytes" {
		t.Error("re-encoded bytes were not the ones persisted")
	}
}

func TestPipeline_TranscodeFailureStoresOriginal(t *testing.T) {
	store := &fakeBlobStore{}
	tc := &fakeTranscoder{err: errors.New("ffmpeg missing")}
	p := NewPipeline(store, observability.WithComponent("test"), WithTranscoder(tc))

	att, err := p.ProcessAttachment(context.Background(), messaging.Upload{
		Bytes:    []byte("webm-bytes"),
		MimeType: "audio/webm",
		FileName: "voice.webm",
	})
	if err != nil {
		t.Fatalf("a failed re-encode must not fail the upload: %v", err)
	}
	if att.MimeType != "audio/webm" {
		t.Errorf("expected original format preserved, got %q", att.MimeType)
	}
}

func TestPipeline_OtherAudioSkipsTranscoder(t *testing.T) {
	tc := &fakeTranscoder{}
	p := NewPipeline(&fakeBlobStore{}, observability.WithComponent("test"), WithTranscoder(tc))

	_, err := p.ProcessAttachment(context.Background(), messaging.Upload{
		Bytes:    []byte("mp3-bytes"),
		MimeType: "audio/mpeg",
		FileName: "voice.mp3",
	})
	if err != nil {
		t.Fatalf("ProcessAttachment: %v", err)
	}
	if tc.called {
		t.Fatal("transcoder must only run for the last-resort format")
	}
}

func TestAllowedType(t *testing.T) {
	tests := []struct {
		mime string
		want bool
	}{
		{"image/jpeg", true},
		{"IMAGE/JPEG", true},
		{"audio/ogg;codecs=opus", true},
		{"text/plain; charset=utf-8", true},
		{"application/x-sh", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := AllowedType(tt.mime); got != tt.want {
			t.Errorf("AllowedType(%q) = %v, want %v", tt.mime, got, tt.want)
		}
	}
}
