package format

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFmtCount(t *testing.T) {
	assert.Equal(t, "71.346", FmtCount(71346, "pt"))
	assert.Equal(t, "71.346", FmtCount(71346, "pt-BR"))
	assert.Equal(t, "71,346", FmtCount(71346, "en"))
	assert.Equal(t, "12", FmtCount(12, "pt"))
}

func TestFmtDates(t *testing.T) {
	d := time.Date(2024, time.December, 25, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "25/12/2024", FmtDate(d, "pt"))
	assert.Equal(t, "Dec 25, 2024", FmtDate(d, "en"))
	assert.Equal(t, "25 de dezembro de 2024", FmtLongDate(d, "pt"))
	assert.Equal(t, "December 25, 2024", FmtLongDate(d, "en"))
}

func TestFmtBytes(t *testing.T) {
	assert.Equal(t, "10 MiB", FmtBytes(10<<20))
	assert.Equal(t, "0 B", FmtBytes(-1))
}
