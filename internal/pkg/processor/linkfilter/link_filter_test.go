package linkfilter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLinkFilterMatchesPatterns(t *testing.T) {
	filter := NewLinkFilter([]string{"tenor.com", " GIPHY.com ", ""})
	assert.Equal(t, 2, filter.Len())

	ignored, pattern := filter.Ignored("https://Tenor.com/view/cat-123")
	assert.True(t, ignored)
	assert.Equal(t, "tenor.com", pattern)

	ignored, pattern = filter.Ignored("https://media.giphy.com/media/abc/giphy.gif")
	assert.True(t, ignored)
	assert.Equal(t, "giphy.com", pattern)

	ignored, _ = filter.Ignored("https://example.com/a")
	assert.False(t, ignored)
}

func TestEmptyLinkFilterMatchesNothing(t *testing.T) {
	filter := NewLinkFilter(nil)
	ignored, _ := filter.Ignored("https://tenor.com/view/cat-123")
	assert.False(t, ignored)

	var missing *LinkFilter
	ignored, _ = missing.Ignored("https://tenor.com/view/cat-123")
	assert.False(t, ignored)
	assert.Zero(t, missing.Len())
}
