package gift

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
)

// QueryParam is the URL query parameter carrying an encoded gift.
const QueryParam = "gift"

const dateLayout = "2006-01-02"

var (
	ErrEmptyPayload     = errors.New("gift: empty payload")
	ErrMalformedPayload = errors.New("gift: malformed payload")
)

// PhotoPolicy decides which photos are written into a payload. Inline data URIs
// quickly push a link past what browsers and QR codes can carry.
type PhotoPolicy string

const (
	PhotosOmit  PhotoPolicy = "omit"
	PhotosLinks PhotoPolicy = "links"
	PhotosAll   PhotoPolicy = "all"
)

// LookupPhotoPolicy reports whether value names a photo policy. Case and
// surrounding spaces are ignored.
func LookupPhotoPolicy(value string) (PhotoPolicy, bool) {
	switch policy := PhotoPolicy(strings.ToLower(strings.TrimSpace(value))); policy {
	case PhotosOmit, PhotosLinks, PhotosAll:
		return policy, true
	}
	return PhotosLinks, false
}

// ParsePhotoPolicy maps unknown values to PhotosLinks.
func ParsePhotoPolicy(value string) PhotoPolicy {
	policy, _ := LookupPhotoPolicy(value)
	return policy
}

// wireRecord is the compact JSON shape written into the gift parameter.
type wireRecord struct {
	Title        string   `json:"t,omitempty"`
	Message      string   `json:"m,omitempty"`
	Date         string   `json:"d,omitempty"`
	Photos       []string `json:"p,omitempty"`
	PhotoMode    string   `json:"pm,omitempty"`
	Music        string   `json:"mu,omitempty"`
	MusicURL     string   `json:"muu,omitempty"`
	Background   string   `json:"bg,omitempty"`
	CustomEmojis string   `json:"e,omitempty"`
}

// wireKey pairs the compact key with the verbose key older links were written with.
type wireKey struct {
	short string
	long  string
}

var (
	keyTitle        = wireKey{"t", "title"}
	keyMessage      = wireKey{"m", "message"}
	keyDate         = wireKey{"d", "date"}
	keyPhotos       = wireKey{"p", "photos"}
	keyPhotoMode    = wireKey{"pm", "photoMode"}
	keyMusic        = wireKey{"mu", "music"}
	keyMusicURL     = wireKey{"muu", "musicUrl"}
	keyBackground   = wireKey{"bg", "background"}
	keyCustomEmojis = wireKey{"e", "customEmojis"}
)

// Codec converts records to and from gift payloads. It is immutable after
// construction and safe for concurrent use.
type Codec struct {
	photos   PhotoPolicy
	now      func() time.Time
	location *time.Location
	logger   *zap.Logger
}

type Option func(*Codec)

// WithPhotoPolicy sets which photos Encode writes. Defaults to PhotosLinks.
func WithPhotoPolicy(policy PhotoPolicy) Option {
	return func(c *Codec) {
		c.photos = ParsePhotoPolicy(string(policy))
	}
}

// WithClock overrides the clock used for the default date.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLocation sets the time zone "today" is computed in.
func WithLocation(loc *time.Location) Option {
	return func(c *Codec) {
		if loc != nil {
			c.location = loc
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Codec) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func NewCodec(opts ...Option) *Codec {
	c := &Codec{
		photos:   PhotosLinks,
		now:      time.Now,
		location: time.Local,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Today formats the codec's current date in its location.
func (c *Codec) Today() string {
	return c.now().In(c.location).Format(dateLayout)
}

// Now returns the codec clock's current time in its location.
func (c *Codec) Now() time.Time {
	return c.now().In(c.location)
}

// Encode writes rec with the codec's photo policy.
func (c *Codec) Encode(rec Record) (string, error) {
	return c.EncodeWith(rec, c.photos)
}

// EncodeWith writes rec as compact JSON, then UTF-8, then unpadded base64url.
// Email and SelectedPlan are never written.
func (c *Codec) EncodeWith(rec Record, policy PhotoPolicy) (string, error) {
	wire := wireRecord{
		Title:        rec.Title,
		Message:      rec.Message,
		Date:         rec.Date,
		Photos:       filterPhotos(rec.Photos, policy),
		PhotoMode:    string(rec.PhotoMode),
		Music:        rec.Music,
		MusicURL:     rec.MusicURL,
		Background:   string(rec.Background),
		CustomEmojis: rec.CustomEmojis,
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(wire); err != nil {
		return "", fmt.Errorf("gift: encode json: %w", err)
	}
	// encoding/json already replaced invalid UTF-8 with U+FFFD.
	raw := bytes.TrimRight(buf.Bytes(), "\n")
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// PhotoPolicy reports the policy Encode applies.
func (c *Codec) PhotoPolicy() PhotoPolicy { return c.photos }

// SharedPhotos returns the subset of photos Encode writes into a payload.
func (c *Codec) SharedPhotos(photos []string) []string {
	return filterPhotos(photos, c.photos)
}

func filterPhotos(photos []string, policy PhotoPolicy) []string {
	switch policy {
	case PhotosOmit:
		return nil
	case PhotosAll:
		return photos
	}
	var kept []string
	for _, photo := range photos {
		if isRemotePhoto(photo) {
			kept = append(kept, photo)
		}
	}
	return kept
}

func isRemotePhoto(photo string) bool {
	lower := strings.ToLower(strings.TrimSpace(photo))
	return strings.HasPrefix(lower, "https://") || strings.HasPrefix(lower, "http://")
}

// DecodeQuery reads the gift parameter. The boolean is false when the parameter is
// absent, empty or unreadable; read failures are logged and otherwise ignored so the
// caller falls back to the landing page.
func (c *Codec) DecodeQuery(query url.Values) (Record, bool) {
	payload := query.Get(QueryParam)
	if payload == "" {
		return Record{}, false
	}
	rec, err := c.Decode(payload)
	if err != nil {
		c.logger.Warn("gift payload rejected",
			zap.Error(err),
			zap.Int("payload_len", len(payload)),
		)
		return Record{}, false
	}
	return rec, true
}

// Decode reverses Encode. Both the compact and the verbose key sets are accepted, the
// compact key winning when it holds a value. Missing or mistyped fields take defaults.
func (c *Codec) Decode(payload string) (Record, error) {
	raw, err := decodeBase64(payload)
	if err != nil {
		return Record{}, err
	}
	if !utf8.Valid(raw) {
		return Record{}, fmt.Errorf("%w: invalid utf-8", ErrMalformedPayload)
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return Record{}, fmt.Errorf("%w: json: %v", ErrMalformedPayload, err)
	}
	if obj == nil {
		return Record{}, fmt.Errorf("%w: not an object", ErrMalformedPayload)
	}

	rec := Record{
		Title:        stringField(obj, keyTitle),
		Message:      stringField(obj, keyMessage),
		Date:         stringField(obj, keyDate),
		Photos:       photosField(obj, keyPhotos),
		PhotoMode:    ParsePhotoMode(stringField(obj, keyPhotoMode)),
		Music:        stringField(obj, keyMusic),
		MusicURL:     stringField(obj, keyMusicURL),
		Background:   ParseBackground(stringField(obj, keyBackground)),
		CustomEmojis: stringField(obj, keyCustomEmojis),
	}
	if rec.Title == "" {
		rec.Title = DefaultTitle
	}
	if rec.Date == "" {
		rec.Date = c.Today()
	}
	return rec, nil
}

// decodeBase64 accepts the url-safe and the standard alphabet, padded or not. A '+'
// that went through form decoding arrives as a space.
func decodeBase64(payload string) ([]byte, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil, ErrEmptyPayload
	}
	payload = strings.NewReplacer(" ", "-", "+", "-", "/", "_", "\n", "", "\r", "").Replace(payload)
	payload = strings.TrimRight(payload, "=")
	raw, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: base64: %v", ErrMalformedPayload, err)
	}
	return raw, nil
}

func stringField(obj map[string]json.RawMessage, key wireKey) string {
	if value, ok := stringValue(obj[key.short]); ok && value != "" {
		return value
	}
	value, _ := stringValue(obj[key.long])
	return value
}

func stringValue(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return "", false
	}
	return value, true
}

// photosField prefers the compact key whenever it holds an array, even an empty one.
func photosField(obj map[string]json.RawMessage, key wireKey) []string {
	if photos, ok := photoList(obj[key.short]); ok {
		return photos
	}
	if photos, ok := photoList(obj[key.long]); ok {
		return photos
	}
	return []string{}
}

func photoList(raw json.RawMessage) ([]string, bool) {
	if len(raw) == 0 {
		return nil, false
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil || items == nil {
		return nil, false
	}
	photos := make([]string, 0, len(items))
	for _, item := range items {
		if photo, ok := stringValue(item); ok && photo != "" {
			photos = append(photos, photo)
		}
	}
	return photos, true
}
