// Package gift holds the greeting-page record built by the wizard and the codec that
// packs it into, and reads it back from, the shareable "gift" query parameter.
package gift

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

const (
	MaxPhotos        = 8
	MaxTitleLength   = 40
	MaxMessageLength = 1200

	DefaultTitle = "Um Presente Especial"
)

// PhotoMode selects the gallery animation used by the viewer.
type PhotoMode string

const (
	PhotoModeCoverflow PhotoMode = "coverflow"
	PhotoModeCube      PhotoMode = "cube"
	PhotoModeCards     PhotoMode = "cards"
	PhotoModeFlip      PhotoMode = "flip"
)

var photoModes = []PhotoMode{PhotoModeCoverflow, PhotoModeCube, PhotoModeCards, PhotoModeFlip}

// PhotoModes lists the supported gallery modes in wizard order.
func PhotoModes() []PhotoMode {
	return append([]PhotoMode(nil), photoModes...)
}

// ParsePhotoMode maps unknown or empty values to coverflow.
func ParsePhotoMode(value string) PhotoMode {
	for _, mode := range photoModes {
		if string(mode) == value {
			return mode
		}
	}
	return PhotoModeCoverflow
}

// Background selects the animated effect behind the greeting.
type Background string

const (
	BackgroundNone         Background = "none"
	BackgroundHearts       Background = "hearts"
	BackgroundStarsComets  Background = "stars_comets"
	BackgroundStarsMeteors Background = "stars_meteors"
	BackgroundAurora       Background = "aurora"
	BackgroundVortex       Background = "vortex"
	BackgroundClouds       Background = "clouds"
	BackgroundTrees        Background = "trees"
	BackgroundEmojis       Background = "emojis"
)

var backgrounds = []Background{
	BackgroundNone,
	BackgroundHearts,
	BackgroundStarsComets,
	BackgroundStarsMeteors,
	BackgroundAurora,
	BackgroundVortex,
	BackgroundClouds,
	BackgroundTrees,
	BackgroundEmojis,
}

func Backgrounds() []Background {
	return append([]Background(nil), backgrounds...)
}

// ParseBackground maps unknown or empty values to none.
func ParseBackground(value string) Background {
	for _, bg := range backgrounds {
		if string(bg) == value {
			return bg
		}
	}
	return BackgroundNone
}

// Plan is the subscription chosen on the last wizard step. The zero value means no choice yet.
type Plan string

const (
	PlanNone     Plan = ""
	PlanAnnual   Plan = "annual"
	PlanLifetime Plan = "lifetime"
)

func ParsePlan(value string) Plan {
	switch Plan(strings.TrimSpace(value)) {
	case PlanAnnual:
		return PlanAnnual
	case PlanLifetime:
		return PlanLifetime
	default:
		return PlanNone
	}
}

// Record is everything the wizard collects. Email and SelectedPlan never leave the
// wizard: the share payload carries only the presentation fields.
type Record struct {
	Title        string     `json:"title"`
	Message      string     `json:"message"`
	Date         string     `json:"date"`
	Photos       []string   `json:"photos"`
	PhotoMode    PhotoMode  `json:"photoMode"`
	Music        string     `json:"music"`
	MusicURL     string     `json:"musicUrl"`
	Background   Background `json:"background"`
	CustomEmojis string     `json:"customEmojis,omitempty"`
	Email        string     `json:"email,omitempty"`
	SelectedPlan Plan       `json:"selectedPlan,omitempty"`
}

// New returns the record a fresh wizard starts from.
func New(today string) Record {
	return Record{
		Date:       today,
		Photos:     []string{},
		PhotoMode:  PhotoModeCoverflow,
		Background: BackgroundNone,
	}
}

// AddPhotos appends photos until MaxPhotos is reached and reports how many were accepted.
func (r *Record) AddPhotos(photos ...string) int {
	accepted := 0
	for _, photo := range photos {
		if len(r.Photos) >= MaxPhotos {
			break
		}
		if strings.TrimSpace(photo) == "" {
			continue
		}
		r.Photos = append(r.Photos, photo)
		accepted++
	}
	return accepted
}

// RemovePhoto drops the photo at index i.
func (r *Record) RemovePhoto(i int) bool {
	if i < 0 || i >= len(r.Photos) {
		return false
	}
	r.Photos = append(r.Photos[:i:i], r.Photos[i+1:]...)
	return true
}

// Normalize applies the wizard's input limits: text is NFC-normalized and trimmed to
// the title and message lengths, enums fall back to their defaults.
func (r Record) Normalize() Record {
	r.Title = truncateRunes(norm.NFC.String(strings.TrimSpace(r.Title)), MaxTitleLength)
	r.Message = truncateRunes(norm.NFC.String(r.Message), MaxMessageLength)
	r.Date = strings.TrimSpace(r.Date)
	r.Music = norm.NFC.String(strings.TrimSpace(r.Music))
	r.MusicURL = strings.TrimSpace(r.MusicURL)
	r.Email = strings.TrimSpace(r.Email)
	r.PhotoMode = ParsePhotoMode(string(r.PhotoMode))
	r.Background = ParseBackground(string(r.Background))
	r.SelectedPlan = ParsePlan(string(r.SelectedPlan))
	if r.Photos == nil {
		r.Photos = []string{}
	}
	if len(r.Photos) > MaxPhotos {
		r.Photos = r.Photos[:MaxPhotos]
	}
	return r
}

// Clone returns a copy that does not share the photo slice.
func (r Record) Clone() Record {
	r.Photos = append([]string{}, r.Photos...)
	return r
}

func truncateRunes(value string, limit int) string {
	if utf8.RuneCountInString(value) <= limit {
		return value
	}
	runes := []rune(value)
	return string(runes[:limit])
}
