package format

import (
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

var ptMonths = [...]string{
	"janeiro", "fevereiro", "março", "abril", "maio", "junho",
	"julho", "agosto", "setembro", "outubro", "novembro", "dezembro",
}

func isPortuguese(lang string) bool {
	return strings.HasPrefix(strings.ToLower(lang), "pt")
}

// FmtCount groups thousands the way the language expects.
// Example: FmtCount(71346, "pt") => "71.346"
func FmtCount(n int64, lang string) string {
	if isPortuguese(lang) {
		return humanize.FormatInteger("#.###,", int(n))
	}
	return humanize.Comma(n)
}

// FmtDate formats a calendar date in a short form.
func FmtDate(t time.Time, lang string) string {
	if isPortuguese(lang) {
		return t.Format("02/01/2006")
	}
	return t.Format("Jan 2, 2006")
}

// FmtLongDate spells the month out, e.g. "25 de dezembro de 2024".
func FmtLongDate(t time.Time, lang string) string {
	if isPortuguese(lang) {
		return t.Format("2") + " de " + ptMonths[t.Month()-1] + " de " + t.Format("2006")
	}
	return t.Format("January 2, 2006")
}

// FmtBytes renders a byte limit for upload hints.
func FmtBytes(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.IBytes(uint64(n))
}
