package photos

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/oklog/ulid/v2"
	"google.golang.org/api/option"
)

// InlineStore embeds the image in the gift itself as a data URI.
type InlineStore struct{}

func (InlineStore) Put(_ context.Context, data []byte, contentType string) (string, error) {
	if len(data) == 0 {
		return "", errors.New("photos: empty image")
	}
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

type objectOpener func(ctx context.Context, object, contentType string) io.WriteCloser

// BucketStore uploads images to Cloud Storage under a ULID object name.
type BucketStore struct {
	bucket    string
	prefix    string
	publicURL string
	open      objectOpener
	newID     func() string
	closer    io.Closer
}

type BucketOption func(*BucketStore)

// WithPublicURL sets the URL prefix objects are served from. Defaults to
// https://storage.googleapis.com/<bucket>.
func WithPublicURL(u string) BucketOption {
	return func(s *BucketStore) {
		if strings.TrimSpace(u) != "" {
			s.publicURL = strings.TrimRight(strings.TrimSpace(u), "/")
		}
	}
}

func WithObjectPrefix(prefix string) BucketOption {
	return func(s *BucketStore) {
		s.prefix = strings.Trim(prefix, "/")
	}
}

// NewBucketStore opens a storage client using application default credentials.
func NewBucketStore(ctx context.Context, bucket string, clientOpts []option.ClientOption, opts ...BucketOption) (*BucketStore, error) {
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, errors.New("photos: bucket name is required")
	}
	client, err := storage.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("photos: create storage client: %w", err)
	}
	handle := client.Bucket(bucket)
	open := func(ctx context.Context, object, contentType string) io.WriteCloser {
		w := handle.Object(object).NewWriter(ctx)
		w.ContentType = contentType
		w.CacheControl = "public, max-age=31536000, immutable"
		return w
	}
	s := newBucketStore(bucket, open, opts...)
	s.closer = client
	return s, nil
}

func newBucketStore(bucket string, open objectOpener, opts ...BucketOption) *BucketStore {
	s := &BucketStore{
		bucket:    bucket,
		prefix:    "gifts",
		publicURL: "https://storage.googleapis.com/" + bucket,
		open:      open,
		newID:     func() string { return ulid.Make().String() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *BucketStore) Put(ctx context.Context, data []byte, contentType string) (string, error) {
	if len(data) == 0 {
		return "", errors.New("photos: empty image")
	}
	object := strings.ToLower(s.newID()) + ".jpg"
	if s.prefix != "" {
		object = s.prefix + "/" + object
	}
	w := s.open(ctx, object, contentType)
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("photos: write %s: %w", object, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("photos: finalize %s: %w", object, err)
	}
	return s.publicURL + "/" + object, nil
}

func (s *BucketStore) Name() string { return s.bucket }

func (s *BucketStore) Close() error {
	if s == nil || s.closer == nil {
		return nil
	}
	return s.closer.Close()
}
