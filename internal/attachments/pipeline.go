package attachments

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/marketlane/backend/internal/blob"
	"github.com/marketlane/backend/internal/messaging"
	"github.com/marketlane/backend/internal/metrics"
	"github.com/marketlane/backend/internal/models"
)

// MaxAttachmentSize is the upload ceiling. The boundary is inclusive: a
// payload of exactly this size is accepted.
const MaxAttachmentSize = 50 << 20 // 50 MB

const defaultUploadTimeout = 60 * time.Second

// allowedTypes is the MIME allow-list mapped to stored file extensions.
var allowedTypes = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/gif":  "gif",
	"image/webp": "webp",

	"audio/mpeg":            "mp3",
	"audio/mp4":             "m4a",
	"audio/ogg":             "ogg",
	"audio/ogg;codecs=opus": "ogg",
	"audio/wav":             "wav",
	"audio/webm":            "webm",

	"video/mp4":       "mp4",
	"video/webm":      "webm",
	"video/quicktime": "mov",

	"application/pdf":    "pdf",
	"application/msword": "doc",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": "docx",
	"application/vnd.ms-excel": "xls",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":       "xlsx",
	"application/zip": "zip",
	"text/plain":      "txt",
	"text/csv":        "csv",
}

// AllowedType reports whether a MIME type passes the upload allow-list.
// Clients use it to refuse a pick before any bytes travel.
func AllowedType(mimeType string) bool {
	_, ok := allowedTypes[normalizeMime(mimeType)]
	return ok
}

// Pipeline validates, re-encodes where needed and persists attachments,
// producing the metadata stored on the message.
type Pipeline struct {
	store      blob.Store
	transcoder Transcoder
	timeout    time.Duration
	log        *slog.Logger
}

type PipelineOption func(*Pipeline)

// WithTranscoder enables server-side audio re-encoding.
func WithTranscoder(t Transcoder) PipelineOption {
	return func(p *Pipeline) { p.transcoder = t }
}

// WithUploadTimeout bounds a single upload.
func WithUploadTimeout(d time.Duration) PipelineOption {
	return func(p *Pipeline) { p.timeout = d }
}

func NewPipeline(store blob.Store, log *slog.Logger, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		store:   store,
		timeout: defaultUploadTimeout,
		log:     log,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ProcessAttachment validates one file, re-encodes last-resort audio and
// uploads the result. Implements messaging.Processor.
func (p *Pipeline) ProcessAttachment(ctx context.Context, up messaging.Upload) (models.Attachment, error) {
	if int64(len(up.Bytes)) > MaxAttachmentSize {
		metrics.AttachmentFailures.WithLabelValues("too_large").Inc()
		return models.Attachment{}, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(up.Bytes))
	}

	mimeType := normalizeMime(up.MimeType)
	ext, ok := allowedTypes[mimeType]
	if !ok {
		metrics.AttachmentFailures.WithLabelValues("unsupported_type").Inc()
		return models.Attachment{}, fmt.Errorf("%w: %s", ErrUnsupportedType, up.MimeType)
	}

	data := up.Bytes
	// Stored audio must not be hostage to the sender's capture format:
	// re-encode the last-resort default before persisting.
	if mimeType == LastResortAudioMime && p.transcoder != nil {
		encoded, outMime, outExt, err := p.transcoder.Transcode(ctx, data)
		if err != nil {
			p.log.Warn("audio re-encode failed, storing original", "error", err)
		} else {
			data = encoded
			mimeType = outMime
			ext = outExt
		}
	}

	fileName := fmt.Sprintf("%s.%s", uuid.New(), ext)
	key := namespaceFor(mimeType) + "/" + fileName

	uploadCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	url, err := p.store.Put(uploadCtx, key, data, mimeType)
	if err != nil {
		metrics.AttachmentFailures.WithLabelValues("upload").Inc()
		return models.Attachment{}, fmt.Errorf("%w: %v", ErrUploadTransport, err)
	}
	metrics.AttachmentBytes.Observe(float64(len(data)))

	return models.Attachment{
		FileName:     fileName,
		OriginalName: up.FileName,
		FileURL:      url,
		FileSize:     int64(len(data)),
		MimeType:     mimeType,
	}, nil
}

// namespaceFor picks the storage prefix for a MIME category.
func namespaceFor(mimeType string) string {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return "images"
	case strings.HasPrefix(mimeType, "audio/"):
		return "audio"
	case strings.HasPrefix(mimeType, "video/"):
		return "videos"
	default:
		return "files"
	}
}

// normalizeMime lowercases and strips parameters except the opus codec tag,
// which distinguishes an allow-listed format.
func normalizeMime(mimeType string) string {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if mimeType == "audio/ogg;codecs=opus" {
		return mimeType
	}
	parsed, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return mimeType
	}
	return parsed
}
