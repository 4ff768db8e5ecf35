package seo

import (
	"bytes"
	"encoding/json"
)

// JSON marshals v for a <script type="application/ld+json"> block. It returns an empty
// string on error.
func JSON(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(true)
	if err := enc.Encode(v); err != nil {
		return ""
	}
	return string(bytes.TrimSpace(buf.Bytes()))
}

func Organization(name, url, logoURL string) map[string]any {
	m := map[string]any{
		"@context": "https://schema.org",
		"@type":    "Organization",
		"name":     name,
	}
	if url != "" {
		m["url"] = url
	}
	if logoURL != "" {
		m["logo"] = logoURL
	}
	return m
}

func WebSite(name, url, lang string) map[string]any {
	m := map[string]any{
		"@context": "https://schema.org",
		"@type":    "WebSite",
		"name":     name,
	}
	if url != "" {
		m["url"] = url
	}
	if lang != "" {
		m["inLanguage"] = lang
	}
	return m
}

type Question struct {
	Name   string
	Answer string
}

// FAQPage builds a schema.org FAQPage. Answers may contain basic HTML.
func FAQPage(items []Question) map[string]any {
	el := make([]map[string]any, 0, len(items))
	for _, it := range items {
		el = append(el, map[string]any{
			"@type": "Question",
			"name":  it.Name,
			"acceptedAnswer": map[string]any{
				"@type": "Answer",
				"text":  it.Answer,
			},
		})
	}
	return map[string]any{
		"@context":   "https://schema.org",
		"@type":      "FAQPage",
		"mainEntity": el,
	}
}

// FreeOffer describes a product that costs nothing.
func FreeOffer(name, description, url, currency string) map[string]any {
	return map[string]any{
		"@context":    "https://schema.org",
		"@type":       "Product",
		"name":        name,
		"description": description,
		"offers": map[string]any{
			"@type":         "Offer",
			"price":         "0",
			"priceCurrency": currency,
			"availability":  "https://schema.org/InStock",
			"url":           url,
		},
	}
}
