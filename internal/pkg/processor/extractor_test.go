package processor

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"dupebot/internal/pkg/models"
)

func TestExtractLinks(t *testing.T) {
	tests := []struct {
		name    string
		content string
		embeds  []models.Embed
		want    []string
	}{
		{
			name:    "no links",
			content: "nothing to see here, example dot com",
			want:    nil,
		},
		{
			name:    "single link in text",
			content: "check out http://example.com/a",
			want:    []string{"http://example.com/a"},
		},
		{
			name:    "schemes and order",
			content: "ftp://files.example.org/x then https://example.com/b?q=1&r=2#top and http://example.com",
			want:    []string{"ftp://files.example.org/x", "https://example.com/b?q=1&r=2#top", "http://example.com"},
		},
		{
			name:    "trailing punctuation is not part of the link",
			content: "see https://example.com/a, or (https://example.com/b).",
			want:    []string{"https://example.com/a", "https://example.com/b"},
		},
		{
			name:    "repeats are kept",
			content: "https://example.com/a https://example.com/a",
			want:    []string{"https://example.com/a", "https://example.com/a"},
		},
		{
			name:    "non-ASCII paths are matched whole",
			content: "https://example.com/café https://example.com/cafè",
			want:    []string{"https://example.com/café", "https://example.com/cafè"},
		},
		{
			name:    "internationalized hosts",
			content: "see https://bücher.example/katalog?q=straße.",
			want:    []string{"https://bücher.example/katalog?q=straße"},
		},
		{
			name:    "combining marks stay in the link",
			content: "https://example.com/cafe\u0301 and more",
			want:    []string{"https://example.com/cafe\u0301"},
		},
		{
			name:    "single label hosts are not links",
			content: "http://localhost/a",
			want:    nil,
		},
		{
			name:    "media embeds are removed",
			content: "https://cdn.example.com/cat.png https://example.com/a https://cdn.example.com/cat.png",
			embeds:  []models.Embed{{Kind: models.EmbedImage, URL: "https://cdn.example.com/cat.png"}},
			want:    []string{"https://example.com/a"},
		},
		{
			name:    "every media kind is removed",
			content: "https://a.example.com/1 https://b.example.com/2 https://c.example.com/3 https://d.example.com/4",
			embeds: []models.Embed{
				{Kind: models.EmbedImage, URL: "https://a.example.com/1"},
				{Kind: models.EmbedVideo, URL: "https://b.example.com/2"},
				{Kind: models.EmbedGifv, URL: "https://c.example.com/3"},
				{Kind: models.EmbedRich, URL: "https://d.example.com/4"},
			},
			want: nil,
		},
		{
			name:    "link previews are kept",
			content: "https://example.com/article",
			embeds: []models.Embed{
				{Kind: "article", URL: "https://example.com/article"},
				{Kind: "link", URL: "https://example.com/article"},
			},
			want: []string{"https://example.com/article"},
		},
		{
			name:    "embed urls must match exactly",
			content: "https://example.com/a",
			embeds:  []models.Embed{{Kind: models.EmbedImage, URL: "https://example.com/a/"}, {Kind: models.EmbedVideo}},
			want:    []string{"https://example.com/a"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractLinks(tt.content, tt.embeds))
		})
	}
}

func TestNormalizeLink(t *testing.T) {
	assert.Equal(t, "https://example.com/Path?Q=1", NormalizeLink("HTTPS://Example.COM/Path?Q=1"))
	assert.Equal(t, "ftp://files.example.org/x", NormalizeLink("ftp://files.example.org/x"))
	assert.Equal(t, "not a url", NormalizeLink(" not a url "))
}
