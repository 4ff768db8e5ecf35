package photos

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"mime/multipart"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 212, G: 36, B: 38, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func formFiles(t *testing.T, files map[string][]byte, order []string) []*multipart.FileHeader {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, name := range order {
		part, err := mw.CreateFormFile("photos", name)
		require.NoError(t, err)
		_, err = part.Write(files[name])
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	form, err := multipart.NewReader(&body, mw.Boundary()).ReadForm(32 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })
	return form.File["photos"]
}

func TestProcessDownscalesLandscape(t *testing.T) {
	p := NewProcessor(WithMaxDimension(100))
	out, err := p.Process(bytes.NewReader(pngBytes(t, 400, 200)))
	require.NoError(t, err)

	img, err := jpeg.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 100, img.Bounds().Dx())
	assert.Equal(t, 50, img.Bounds().Dy())
}

func TestProcessDownscalesPortrait(t *testing.T) {
	p := NewProcessor(WithMaxDimension(100))
	out, err := p.Process(bytes.NewReader(pngBytes(t, 100, 300)))
	require.NoError(t, err)

	img, err := jpeg.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 100, img.Bounds().Dy())
}

func TestProcessKeepsSmallImages(t *testing.T) {
	out, err := NewProcessor().Process(bytes.NewReader(pngBytes(t, 64, 32)))
	require.NoError(t, err)

	img, err := jpeg.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 64, 32), img.Bounds())
}

func TestProcessRejects(t *testing.T) {
	_, err := NewProcessor().Process(strings.NewReader("not an image"))
	assert.ErrorIs(t, err, ErrUnsupported)

	_, err = NewProcessor(WithMaxBytes(10)).Process(bytes.NewReader(pngBytes(t, 20, 20)))
	assert.ErrorIs(t, err, ErrTooLarge)
	assert.Contains(t, err.Error(), "10 B")
}

func TestInlineStore(t *testing.T) {
	url, err := InlineStore{}.Put(context.Background(), []byte{0xff, 0xd8}, ContentType)
	require.NoError(t, err)
	assert.Equal(t, "data:image/jpeg;base64,/9g=", url)

	_, err = InlineStore{}.Put(context.Background(), nil, ContentType)
	assert.Error(t, err)
}

type memWriter struct {
	bytes.Buffer
	closed   bool
	closeErr error
}

func (m *memWriter) Close() error {
	m.closed = true
	return m.closeErr
}

func TestBucketStorePut(t *testing.T) {
	writers := map[string]*memWriter{}
	open := func(_ context.Context, object, contentType string) io.WriteCloser {
		assert.Equal(t, ContentType, contentType)
		w := &memWriter{}
		writers[object] = w
		return w
	}
	s := newBucketStore("gifts-bucket", open, WithPublicURL("https://cdn.example.com/"))
	s.newID = func() string { return "01HZX3J5Q0ABCDEF" }

	url, err := s.Put(context.Background(), []byte("jpeg"), ContentType)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/gifts/01hzx3j5q0abcdef.jpg", url)

	w := writers["gifts/01hzx3j5q0abcdef.jpg"]
	require.NotNil(t, w)
	assert.True(t, w.closed)
	assert.Equal(t, "jpeg", w.String())
	assert.Equal(t, "gifts-bucket", s.Name())
	assert.NoError(t, s.Close())
}

func TestBucketStoreDefaultURLAndCloseError(t *testing.T) {
	open := func(context.Context, string, string) io.WriteCloser {
		return &memWriter{closeErr: errors.New("upload aborted")}
	}
	s := newBucketStore("b", open, WithObjectPrefix(""))
	assert.Equal(t, "https://storage.googleapis.com/b", s.publicURL)

	_, err := s.Put(context.Background(), []byte("x"), ContentType)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upload aborted")
}

func TestUploaderRespectsCapacity(t *testing.T) {
	files := formFiles(t, map[string][]byte{
		"a.png": pngBytes(t, 10, 10),
		"b.png": pngBytes(t, 10, 10),
		"c.png": pngBytes(t, 10, 10),
	}, []string{"a.png", "b.png", "c.png"})

	u := NewUploader(nil, nil, nil)
	urls, err := u.Upload(context.Background(), 2, files)
	assert.ErrorIs(t, err, ErrTooManyPhotos)
	require.Len(t, urls, 2)
	for _, url := range urls {
		assert.True(t, strings.HasPrefix(url, "data:image/jpeg;base64,"))
	}
}

func TestUploaderStopsOnBadFile(t *testing.T) {
	files := formFiles(t, map[string][]byte{
		"ok.png":  pngBytes(t, 10, 10),
		"bad.txt": []byte("hello"),
	}, []string{"ok.png", "bad.txt"})

	urls, err := NewUploader(nil, nil, nil).Upload(context.Background(), 8, files)
	assert.ErrorIs(t, err, ErrUnsupported)
	assert.Len(t, urls, 1)
}
