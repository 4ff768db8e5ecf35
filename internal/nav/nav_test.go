package nav

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild(t *testing.T) {
	items := Build("/criar/fotos")
	require.Len(t, items, len(Main))
	assert.False(t, items[0].Active)
	assert.False(t, items[1].Active)
	assert.True(t, items[2].Active)
	assert.True(t, items[2].CTA)

	for _, it := range Build("") {
		assert.False(t, it.Active)
	}
}

func TestProgress(t *testing.T) {
	dots := Progress(2, 8)
	require.Len(t, dots, 8)
	assert.True(t, dots[0].Done)
	assert.True(t, dots[1].Done)
	assert.True(t, dots[2].Current)
	assert.False(t, dots[2].Done)
	assert.Equal(t, 3, dots[2].Number)

	assert.True(t, Progress(99, 3)[2].Current)
	assert.True(t, Progress(-1, 3)[0].Current)
	assert.Nil(t, Progress(0, 0))
}

func TestPercent(t *testing.T) {
	assert.Equal(t, 12, Percent(0, 8))
	assert.Equal(t, 100, Percent(7, 8))
	assert.Equal(t, 100, Percent(9, 8))
	assert.Equal(t, 0, Percent(0, 0))
}
