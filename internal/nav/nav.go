package nav

import "strings"

// Item represents a header navigation entry.
type Item struct {
	Href     string // e.g. "/#pricing"
	LabelKey string // i18n key, e.g. "nav.pricing"
	CTA      bool
}

type RenderedItem struct {
	Href     string
	LabelKey string
	Active   bool
	CTA      bool
}

// Main is the landing header navigation.
var Main = []Item{
	{Href: "/#como-funciona", LabelKey: "nav.how"},
	{Href: "/#pricing", LabelKey: "nav.pricing"},
	{Href: "/criar", LabelKey: "nav.create", CTA: true},
}

// Build renders navigation items with active state given the current path.
// Fragment links are never active.
func Build(currentPath string) []RenderedItem {
	if currentPath == "" {
		currentPath = "/"
	}
	items := make([]RenderedItem, 0, len(Main))
	for _, it := range Main {
		items = append(items, RenderedItem{
			Href:     it.Href,
			LabelKey: it.LabelKey,
			CTA:      it.CTA,
			Active:   isActive(it.Href, currentPath),
		})
	}
	return items
}

func isActive(href, currentPath string) bool {
	if strings.Contains(href, "#") {
		return false
	}
	if currentPath == href {
		return true
	}
	return href != "/" && strings.HasPrefix(currentPath, href+"/")
}

// Dot is one marker of the wizard progress bar.
type Dot struct {
	Index   int
	Number  int
	Done    bool
	Current bool
}

// Progress returns one dot per wizard step. current is clamped into range.
func Progress(current, total int) []Dot {
	if total <= 0 {
		return nil
	}
	if current < 0 {
		current = 0
	}
	if current >= total {
		current = total - 1
	}
	dots := make([]Dot, total)
	for i := range dots {
		dots[i] = Dot{Index: i, Number: i + 1, Done: i < current, Current: i == current}
	}
	return dots
}

// Percent is the share of the wizard completed once step current is shown.
func Percent(current, total int) int {
	if total <= 0 {
		return 0
	}
	if current < 0 {
		current = 0
	}
	if current >= total {
		return 100
	}
	return (current + 1) * 100 / total
}
