// Package content loads the localized landing page copy from YAML. Long-form fields
// are markdown, rendered with goldmark and sanitized before they reach templates.
package content

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"gopkg.in/yaml.v3"
)

// ErrNoLanguage is returned when neither the requested nor the fallback language exists.
var ErrNoLanguage = errors.New("content: language not found")

// Landing is the copy of every landing page section in one language.
type Landing struct {
	Hero         Hero
	Steps        Section
	Highlight    Highlight
	Features     Section
	Pricing      Pricing
	Testimonials Testimonials
	FAQ          FAQ
	Declaration  Highlight
	SocialProof  SocialProof
	Footer       Footer
}

type Hero struct {
	Kicker   string
	Title    string
	Subtitle string
	CTA      string
	Rating   string
	Avatars  []string
}

type Card struct {
	Icon  string
	Title string
	Body  template.HTML
}

type Section struct {
	Kicker   string
	Title    string
	Subtitle string
	Cards    []Card
}

type Highlight struct {
	Kicker string
	Title  string
	Body   template.HTML
	Image  string
	CTA    string
}

type Pricing struct {
	Title    string
	Subtitle string
	Badge    string
	Name     string
	Tagline  string
	Price    string
	Note     string
	Intro    string
	Features []string
	CTA      string
}

type Testimonial struct {
	Name   string
	When   string
	Text   string
	Avatar string
}

type Testimonials struct {
	Kicker string
	Title  string
	Items  []Testimonial
	Footer string
}

type FAQItem struct {
	Question string
	Answer   template.HTML
}

type FAQ struct {
	Title    string
	Subtitle string
	Items    []FAQItem
}

type SocialProof struct {
	Count   int
	Message string
	Names   []string
}

type Footer struct {
	Tagline string
	Links   []Link
}

type Link struct {
	Label string
	Href  string
}

type landingYAML struct {
	Hero struct {
		Kicker   string   `yaml:"kicker"`
		Title    string   `yaml:"title"`
		Subtitle string   `yaml:"subtitle"`
		CTA      string   `yaml:"cta"`
		Rating   string   `yaml:"rating"`
		Avatars  []string `yaml:"avatars"`
	} `yaml:"hero"`
	Steps        sectionYAML   `yaml:"steps"`
	Highlight    highlightYAML `yaml:"highlight"`
	Features     sectionYAML   `yaml:"features"`
	Pricing      struct {
		Title    string   `yaml:"title"`
		Subtitle string   `yaml:"subtitle"`
		Badge    string   `yaml:"badge"`
		Name     string   `yaml:"name"`
		Tagline  string   `yaml:"tagline"`
		Price    string   `yaml:"price"`
		Note     string   `yaml:"note"`
		Intro    string   `yaml:"intro"`
		Features []string `yaml:"features"`
		CTA      string   `yaml:"cta"`
	} `yaml:"pricing"`
	Testimonials struct {
		Kicker string `yaml:"kicker"`
		Title  string `yaml:"title"`
		Footer string `yaml:"footer"`
		Items  []struct {
			Name   string `yaml:"name"`
			When   string `yaml:"when"`
			Text   string `yaml:"text"`
			Avatar string `yaml:"avatar"`
		} `yaml:"items"`
	} `yaml:"testimonials"`
	FAQ struct {
		Title    string `yaml:"title"`
		Subtitle string `yaml:"subtitle"`
		Items    []struct {
			Question string `yaml:"question"`
			Answer   string `yaml:"answer"`
		} `yaml:"items"`
	} `yaml:"faq"`
	Declaration highlightYAML `yaml:"declaration"`
	SocialProof struct {
		Count   int      `yaml:"count"`
		Message string   `yaml:"message"`
		Names   []string `yaml:"names"`
	} `yaml:"social_proof"`
	Footer struct {
		Tagline string `yaml:"tagline"`
		Links   []struct {
			Label string `yaml:"label"`
			Href  string `yaml:"href"`
		} `yaml:"links"`
	} `yaml:"footer"`
}

type sectionYAML struct {
	Kicker   string `yaml:"kicker"`
	Title    string `yaml:"title"`
	Subtitle string `yaml:"subtitle"`
	Cards    []struct {
		Icon  string `yaml:"icon"`
		Title string `yaml:"title"`
		Body  string `yaml:"body"`
	} `yaml:"cards"`
}

type highlightYAML struct {
	Kicker string `yaml:"kicker"`
	Title  string `yaml:"title"`
	Body   string `yaml:"body"`
	Image  string `yaml:"image"`
	CTA    string `yaml:"cta"`
}

// Store serves parsed landing copy. With reload enabled the file is re-read whenever
// its modification time changes, which is what dev mode wants.
type Store struct {
	path     string
	fallback string
	reload   bool
	renderer *Renderer

	mu      sync.RWMutex
	modTime time.Time
	pages   map[string]Landing
}

type Option func(*Store)

func WithReload(enabled bool) Option {
	return func(s *Store) { s.reload = enabled }
}

func WithFallback(lang string) Option {
	return func(s *Store) {
		if strings.TrimSpace(lang) != "" {
			s.fallback = lang
		}
	}
}

// NewStore parses path eagerly so a broken file fails at startup.
func NewStore(path string, opts ...Option) (*Store, error) {
	s := &Store{path: path, fallback: "pt", renderer: NewRenderer()}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Landing returns the copy for lang, or the fallback language when lang is missing.
func (s *Store) Landing(lang string) (Landing, error) {
	if s.reload {
		if err := s.refresh(); err != nil {
			return Landing{}, err
		}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if page, ok := s.pages[lang]; ok {
		return page, nil
	}
	if page, ok := s.pages[s.fallback]; ok {
		return page, nil
	}
	return Landing{}, fmt.Errorf("%w: %s", ErrNoLanguage, lang)
}

func (s *Store) refresh() error {
	info, err := os.Stat(s.path)
	if err != nil {
		return fmt.Errorf("content: stat %s: %w", s.path, err)
	}
	s.mu.RLock()
	unchanged := info.ModTime().Equal(s.modTime)
	s.mu.RUnlock()
	if unchanged {
		return nil
	}
	return s.load()
}

func (s *Store) load() error {
	info, err := os.Stat(s.path)
	if err != nil {
		return fmt.Errorf("content: stat %s: %w", s.path, err)
	}
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("content: read %s: %w", s.path, err)
	}
	pages, err := Parse(raw, s.renderer)
	if err != nil {
		return fmt.Errorf("content: %s: %w", s.path, err)
	}
	s.mu.Lock()
	s.pages = pages
	s.modTime = info.ModTime()
	s.mu.Unlock()
	return nil
}

// Parse decodes a landing YAML document keyed by language.
func Parse(raw []byte, renderer *Renderer) (map[string]Landing, error) {
	if renderer == nil {
		renderer = NewRenderer()
	}
	var doc map[string]landingYAML
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	pages := make(map[string]Landing, len(doc))
	for lang, src := range doc {
		page, err := convert(src, renderer)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", lang, err)
		}
		pages[strings.ToLower(lang)] = page
	}
	return pages, nil
}

func convert(src landingYAML, r *Renderer) (Landing, error) {
	var firstErr error
	md := func(text string) template.HTML {
		out, err := r.Markdown(text)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		return out
	}
	section := func(s sectionYAML) Section {
		out := Section{Kicker: s.Kicker, Title: s.Title, Subtitle: s.Subtitle}
		for _, c := range s.Cards {
			out.Cards = append(out.Cards, Card{Icon: c.Icon, Title: c.Title, Body: md(c.Body)})
		}
		return out
	}
	highlight := func(h highlightYAML) Highlight {
		return Highlight{Kicker: h.Kicker, Title: h.Title, Body: md(h.Body), Image: h.Image, CTA: h.CTA}
	}

	page := Landing{
		Hero: Hero{
			Kicker:   src.Hero.Kicker,
			Title:    src.Hero.Title,
			Subtitle: src.Hero.Subtitle,
			CTA:      src.Hero.CTA,
			Rating:   src.Hero.Rating,
			Avatars:  src.Hero.Avatars,
		},
		Steps:       section(src.Steps),
		Highlight:   highlight(src.Highlight),
		Features:    section(src.Features),
		Declaration: highlight(src.Declaration),
		Pricing: Pricing{
			Title:    src.Pricing.Title,
			Subtitle: src.Pricing.Subtitle,
			Badge:    src.Pricing.Badge,
			Name:     src.Pricing.Name,
			Tagline:  src.Pricing.Tagline,
			Price:    src.Pricing.Price,
			Note:     src.Pricing.Note,
			Intro:    src.Pricing.Intro,
			Features: src.Pricing.Features,
			CTA:      src.Pricing.CTA,
		},
		Testimonials: Testimonials{
			Kicker: src.Testimonials.Kicker,
			Title:  src.Testimonials.Title,
			Footer: src.Testimonials.Footer,
		},
		FAQ: FAQ{Title: src.FAQ.Title, Subtitle: src.FAQ.Subtitle},
		SocialProof: SocialProof{
			Count:   src.SocialProof.Count,
			Message: src.SocialProof.Message,
			Names:   src.SocialProof.Names,
		},
		Footer: Footer{Tagline: src.Footer.Tagline},
	}
	for _, t := range src.Testimonials.Items {
		page.Testimonials.Items = append(page.Testimonials.Items, Testimonial(t))
	}
	for _, item := range src.FAQ.Items {
		page.FAQ.Items = append(page.FAQ.Items, FAQItem{Question: item.Question, Answer: md(item.Answer)})
	}
	for _, l := range src.Footer.Links {
		page.Footer.Links = append(page.Footer.Links, Link(l))
	}
	return page, firstErr
}

// Renderer turns trusted-author markdown into sanitized HTML.
type Renderer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

func NewRenderer() *Renderer {
	policy := bluemonday.UGCPolicy()
	policy.AllowAttrs("class").OnElements("p", "span", "strong", "em")
	policy.RequireNoFollowOnLinks(true)
	policy.AddTargetBlankToFullyQualifiedLinks(true)
	return &Renderer{
		md:     goldmark.New(goldmark.WithExtensions(extension.Linkify, extension.Strikethrough)),
		policy: policy,
	}
}

// Markdown renders and sanitizes text. Empty input yields empty output.
func (r *Renderer) Markdown(text string) (template.HTML, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", nil
	}
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(text), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return template.HTML(strings.TrimSpace(r.policy.Sanitize(buf.String()))), nil
}
