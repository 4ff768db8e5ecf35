package gift

import (
	"strings"
	"unicode/utf8"
)

const (
	// DefaultQRMaxURLLength is the longest URL a 300x300 QR code stays scannable at.
	DefaultQRMaxURLLength = 1800

	LiteMessagePlaceholder = "Mensagem completa no link..."
	DefaultOversizeWarning = "Sua mensagem é muito longa para o QR Code. O QR Code abrirá uma versão resumida, mas o Link Copiado contém tudo!"
)

// SizePolicy decides what the QR code points at when the share URL is too long.
type SizePolicy string

const (
	// SizePolicyLite points the QR code at a reduced payload.
	SizePolicyLite SizePolicy = "lite"
	// SizePolicyWarn keeps the full URL in the QR code and only warns.
	SizePolicyWarn SizePolicy = "warn"
)

func ParseSizePolicy(value string) SizePolicy {
	if SizePolicy(strings.ToLower(strings.TrimSpace(value))) == SizePolicyWarn {
		return SizePolicyWarn
	}
	return SizePolicyLite
}

// Reduction names a field removed from the QR payload.
type Reduction string

const (
	ReducedPhotos   Reduction = "photos"
	ReducedMessage  Reduction = "message"
	ReducedMusicURL Reduction = "musicUrl"
)

// QRImager turns the URL a QR code should encode into an image URL.
type QRImager interface {
	ImageURL(target string) string
}

// ShareLink is what the last wizard step hands to the user.
type ShareLink struct {
	Payload    string      `json:"-"`
	URL        string      `json:"url"`
	QRTarget   string      `json:"qrTarget"`
	QRImageURL string      `json:"qrImageUrl"`
	Length     int         `json:"length"`
	Oversize   bool        `json:"oversize"`
	Degraded   bool        `json:"degraded"`
	Reductions []Reduction `json:"reductions,omitempty"`
	Warning    string      `json:"warning,omitempty"`
	// DroppedPhotos counts photos the photo policy kept out of the payload,
	// typically inline uploads under the links policy.
	DroppedPhotos int `json:"droppedPhotos,omitempty"`
}

// Sharer builds share links. The link always carries the full payload; only the QR
// target is reduced.
type Sharer struct {
	codec   *Codec
	qr      QRImager
	maxLen  int
	policy  SizePolicy
	warning string
}

type SharerOption func(*Sharer)

func WithMaxURLLength(n int) SharerOption {
	return func(s *Sharer) {
		if n > 0 {
			s.maxLen = n
		}
	}
}

func WithSizePolicy(policy SizePolicy) SharerOption {
	return func(s *Sharer) {
		s.policy = ParseSizePolicy(string(policy))
	}
}

// WithWarning replaces the oversize warning, usually with a localized one.
func WithWarning(text string) SharerOption {
	return func(s *Sharer) {
		if strings.TrimSpace(text) != "" {
			s.warning = text
		}
	}
}

func NewSharer(codec *Codec, qr QRImager, opts ...SharerOption) *Sharer {
	if codec == nil {
		codec = NewCodec()
	}
	s := &Sharer{
		codec:   codec,
		qr:      qr,
		maxLen:  DefaultQRMaxURLLength,
		policy:  SizePolicyLite,
		warning: DefaultOversizeWarning,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *Sharer) MaxURLLength() int { return s.maxLen }

// Share encodes rec and derives the QR target for base, the origin the viewer is served from.
func (s *Sharer) Share(base string, rec Record) (ShareLink, error) {
	payload, err := s.codec.Encode(rec)
	if err != nil {
		return ShareLink{}, err
	}
	link := ShareLink{
		Payload: payload,
		URL:     BuildURL(base, payload),
	}
	link.DroppedPhotos = len(rec.Photos) - len(s.codec.SharedPhotos(rec.Photos))
	link.Length = len(link.URL)
	link.QRTarget = link.URL

	if link.Length > s.maxLen {
		link.Oversize = true
		link.Warning = s.warning
		if s.policy == SizePolicyLite {
			target, reductions, err := s.liteTarget(base, rec)
			if err != nil {
				return ShareLink{}, err
			}
			if len(target) < link.Length {
				link.QRTarget = target
				link.Degraded = true
				link.Reductions = reductions
			}
		}
	}

	if s.qr != nil {
		link.QRImageURL = s.qr.ImageURL(link.QRTarget)
	}
	return link, nil
}

// liteTarget removes photos, then the message, then the music URL, stopping as soon
// as the URL fits.
func (s *Sharer) liteTarget(base string, rec Record) (string, []Reduction, error) {
	lite := rec.Clone()
	var reductions []Reduction
	steps := []struct {
		reduction Reduction
		apply     func(*Record) bool
	}{
		{ReducedPhotos, func(r *Record) bool {
			if len(r.Photos) == 0 {
				return false
			}
			r.Photos = nil
			return true
		}},
		{ReducedMessage, func(r *Record) bool {
			if utf8.RuneCountInString(r.Message) <= utf8.RuneCountInString(LiteMessagePlaceholder) {
				return false
			}
			r.Message = LiteMessagePlaceholder
			return true
		}},
		{ReducedMusicURL, func(r *Record) bool {
			if r.MusicURL == "" {
				return false
			}
			r.MusicURL = ""
			return true
		}},
	}

	target := ""
	for _, step := range steps {
		if !step.apply(&lite) {
			continue
		}
		reductions = append(reductions, step.reduction)
		payload, err := s.codec.Encode(lite)
		if err != nil {
			return "", nil, err
		}
		target = BuildURL(base, payload)
		if len(target) <= s.maxLen {
			break
		}
	}
	if target == "" {
		payload, err := s.codec.Encode(lite)
		if err != nil {
			return "", nil, err
		}
		target = BuildURL(base, payload)
	}
	return target, reductions, nil
}

// BuildURL joins the viewer origin and payload as "<base>/?gift=<payload>".
func BuildURL(base, payload string) string {
	return strings.TrimRight(strings.TrimSpace(base), "/") + "/?" + QueryParam + "=" + payload
}
