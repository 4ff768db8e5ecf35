package seo

type OpenGraph struct {
	Title       string
	Description string
	Image       string
	Type        string
	Locale      string
}

type Twitter struct {
	Card  string
	Image string
}

type Meta struct {
	Title       string
	Description string
	Canonical   string
	// Robots is emitted verbatim; gift pages set "noindex, nofollow".
	Robots  string
	OG      OpenGraph
	Twitter Twitter
	JSONLD  []string
}

const DefaultImage = "https://i.imgur.com/0lbIxMI.jpg"

// Page fills the common fields for a public page.
func Page(title, description, canonical, ogLocale string) Meta {
	return Meta{
		Title:       title,
		Description: description,
		Canonical:   canonical,
		OG: OpenGraph{
			Title:       title,
			Description: description,
			Image:       DefaultImage,
			Type:        "website",
			Locale:      ogLocale,
		},
		Twitter: Twitter{Card: "summary_large_image", Image: DefaultImage},
	}
}

// Private marks a page as not indexable. Gift links carry personal content.
func (m Meta) Private() Meta {
	m.Robots = "noindex, nofollow"
	m.Canonical = ""
	m.JSONLD = nil
	return m
}
