// Package music backs the wizard's song picker: a small YAML catalog searched with
// accent-insensitive matching, and generated variants when nothing matches.
package music

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

// MinQueryLength is the shortest query that produces suggestions.
const MinQueryLength = 3

const defaultLimit = 6

type Track struct {
	Title  string `yaml:"title"`
	Artist string `yaml:"artist"`
	URL    string `yaml:"url"`
}

// Name is the label stored in the gift record.
func (t Track) Name() string {
	if t.Artist == "" {
		return t.Title
	}
	return t.Title + " - " + t.Artist
}

type Suggestion struct {
	Name    string `json:"name"`
	URL     string `json:"url,omitempty"`
	Catalog bool   `json:"catalog"`
}

type Catalog struct {
	tracks []Track
	keys   []string
	limit  int
}

// NewCatalog indexes tracks, skipping entries without a title.
func NewCatalog(tracks []Track) *Catalog {
	c := &Catalog{limit: defaultLimit}
	for _, t := range tracks {
		t.Title = strings.TrimSpace(t.Title)
		t.Artist = strings.TrimSpace(t.Artist)
		t.URL = strings.TrimSpace(t.URL)
		if t.Title == "" {
			continue
		}
		c.tracks = append(c.tracks, t)
		c.keys = append(c.keys, Fold(t.Title+" "+t.Artist))
	}
	return c
}

// LoadCatalog reads a YAML document with a top-level "tracks" list. A missing file
// yields an empty catalog.
func LoadCatalog(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewCatalog(nil), nil
		}
		return nil, fmt.Errorf("music: read catalog: %w", err)
	}
	var doc struct {
		Tracks []Track `yaml:"tracks"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("music: parse catalog %s: %w", path, err)
	}
	return NewCatalog(doc.Tracks), nil
}

func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.tracks)
}

// Search returns catalog hits for query, best first. When the catalog has nothing the
// generated variants are returned instead. Queries shorter than MinQueryLength runes
// return nil.
func (c *Catalog) Search(query string) []Suggestion {
	query = strings.Join(strings.Fields(query), " ")
	if utf8.RuneCountInString(query) < MinQueryLength {
		return nil
	}
	if hits := c.match(query); len(hits) > 0 {
		return hits
	}
	return Variants(query)
}

func (c *Catalog) match(query string) []Suggestion {
	if c == nil || len(c.tracks) == 0 {
		return nil
	}
	folded := Fold(query)
	terms := strings.Fields(folded)

	type hit struct {
		idx    int
		prefix bool
	}
	var hits []hit
	for i, key := range c.keys {
		if !containsAll(key, terms) {
			continue
		}
		hits = append(hits, hit{idx: i, prefix: strings.HasPrefix(key, folded)})
	}
	sort.SliceStable(hits, func(a, b int) bool {
		if hits[a].prefix != hits[b].prefix {
			return hits[a].prefix
		}
		return c.keys[hits[a].idx] < c.keys[hits[b].idx]
	})
	if len(hits) > c.limit {
		hits = hits[:c.limit]
	}
	out := make([]Suggestion, 0, len(hits))
	for _, h := range hits {
		t := c.tracks[h.idx]
		out = append(out, Suggestion{Name: t.Name(), URL: t.URL, Catalog: true})
	}
	return out
}

// Variants builds the placeholder suggestions shown for free-text songs.
func Variants(query string) []Suggestion {
	return []Suggestion{
		{Name: query + " - Original Mix"},
		{Name: query + " - Acoustic Version"},
		{Name: "Best of " + query},
		{Name: "Cover of " + query},
	}
}

// Fold lower-cases s and strips combining marks so "Noël" matches "noel".
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

func containsAll(key string, terms []string) bool {
	for _, term := range terms {
		if !strings.Contains(key, term) {
			return false
		}
	}
	return true
}
