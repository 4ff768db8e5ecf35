// Package photos turns wizard uploads into small JPEGs and stores them either inline
// as data URIs or in a Cloud Storage bucket.
package photos

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"mime/multipart"

	"github.com/dustin/go-humanize"
	"github.com/nfnt/resize"
	"go.uber.org/zap"
)

const (
	DefaultMaxDimension   uint  = 800
	DefaultJPEGQuality          = 80
	DefaultMaxUploadBytes int64 = 10 << 20
	ContentType                 = "image/jpeg"
)

var (
	// ErrTooManyPhotos reports that some files were skipped because the gift is full.
	ErrTooManyPhotos = errors.New("photos: photo limit reached")
	ErrTooLarge      = errors.New("photos: file too large")
	ErrUnsupported   = errors.New("photos: unsupported image")
)

// Store persists a processed JPEG and returns the URL the gift should reference.
type Store interface {
	Put(ctx context.Context, data []byte, contentType string) (string, error)
}

type Processor struct {
	maxDimension uint
	quality      int
	maxBytes     int64
}

type ProcessorOption func(*Processor)

func WithMaxDimension(px uint) ProcessorOption {
	return func(p *Processor) {
		if px > 0 {
			p.maxDimension = px
		}
	}
}

func WithJPEGQuality(q int) ProcessorOption {
	return func(p *Processor) {
		if q > 0 && q <= 100 {
			p.quality = q
		}
	}
}

func WithMaxBytes(n int64) ProcessorOption {
	return func(p *Processor) {
		if n > 0 {
			p.maxBytes = n
		}
	}
}

func NewProcessor(opts ...ProcessorOption) *Processor {
	p := &Processor{
		maxDimension: DefaultMaxDimension,
		quality:      DefaultJPEGQuality,
		maxBytes:     DefaultMaxUploadBytes,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// Process decodes r, shrinks it so neither side exceeds the max dimension and
// re-encodes it as JPEG.
func (p *Processor) Process(r io.Reader) ([]byte, error) {
	raw, err := io.ReadAll(io.LimitReader(r, p.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("photos: read upload: %w", err)
	}
	if int64(len(raw)) > p.maxBytes {
		return nil, fmt.Errorf("%w: limit is %s", ErrTooLarge, humanize.IBytes(uint64(p.maxBytes)))
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupported, err)
	}

	bounds := img.Bounds()
	if uint(bounds.Dx()) > p.maxDimension || uint(bounds.Dy()) > p.maxDimension {
		if bounds.Dx() >= bounds.Dy() {
			img = resize.Resize(p.maxDimension, 0, img, resize.Lanczos3)
		} else {
			img = resize.Resize(0, p.maxDimension, img, resize.Lanczos3)
		}
	}

	var out bytes.Buffer
	if err := jpeg.Encode(&out, img, &jpeg.Options{Quality: p.quality}); err != nil {
		return nil, fmt.Errorf("photos: encode jpeg: %w", err)
	}
	return out.Bytes(), nil
}

// Uploader processes multipart files and hands them to a Store.
type Uploader struct {
	processor *Processor
	store     Store
	logger    *zap.Logger
}

func NewUploader(processor *Processor, store Store, logger *zap.Logger) *Uploader {
	if processor == nil {
		processor = NewProcessor()
	}
	if store == nil {
		store = InlineStore{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Uploader{processor: processor, store: store, logger: logger}
}

// Upload stores at most capacity files, in order. Files past capacity are skipped and
// reported with ErrTooManyPhotos alongside the URLs that were accepted.
func (u *Uploader) Upload(ctx context.Context, capacity int, files []*multipart.FileHeader) ([]string, error) {
	if capacity < 0 {
		capacity = 0
	}
	accepted := files
	var overflow error
	if len(files) > capacity {
		accepted = files[:capacity]
		overflow = fmt.Errorf("%w: %d file(s) skipped", ErrTooManyPhotos, len(files)-capacity)
	}

	urls := make([]string, 0, len(accepted))
	for _, fh := range accepted {
		url, err := u.uploadOne(ctx, fh)
		if err != nil {
			u.logger.Warn("photo upload failed",
				zap.String("filename", fh.Filename),
				zap.String("size", humanize.IBytes(uint64(fh.Size))),
				zap.Error(err),
			)
			return urls, err
		}
		urls = append(urls, url)
	}
	return urls, overflow
}

func (u *Uploader) uploadOne(ctx context.Context, fh *multipart.FileHeader) (string, error) {
	f, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("photos: open %s: %w", fh.Filename, err)
	}
	defer f.Close()

	data, err := u.processor.Process(f)
	if err != nil {
		return "", err
	}
	return u.store.Put(ctx, data, ContentType)
}
