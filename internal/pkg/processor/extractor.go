package processor

import (
	"net/url"
	"regexp"
	"strings"

	"dupebot/internal/pkg/models"
)

// Scheme, a host of two or more labels, then an optional path/query tail
// that does not end in sentence punctuation. Word characters are Unicode
// letters, digits and marks, so IDN hosts and non-ASCII paths match whole.
var linkPattern = regexp.MustCompile(`(?:https?|ftp)://[\p{L}\p{N}\p{M}_-]+(?:\.[\p{L}\p{N}\p{M}_-]+)+(?:[\p{L}\p{N}\p{M}_.,@?^=%&:/~+#-]*[\p{L}\p{N}\p{M}_@?^=%&/~+#-])?`)

// Embed kinds whose URL is a rendering of media, not a link someone shared.
var mediaEmbedKinds = map[string]struct{}{
	models.EmbedImage: {},
	models.EmbedVideo: {},
	models.EmbedGifv:  {},
	models.EmbedRich:  {},
}

// Returns every URL in content, in order and including repeats, minus those
// that the platform rendered as a media embed.
func ExtractLinks(content string, embeds []models.Embed) []string {
	links := linkPattern.FindAllString(content, -1)
	if len(links) == 0 {
		return nil
	}

	for _, embed := range embeds {
		if _, media := mediaEmbedKinds[embed.Kind]; !media || embed.URL == "" {
			continue
		}
		kept := links[:0]
		for _, link := range links {
			if link != embed.URL {
				kept = append(kept, link)
			}
		}
		links = kept
	}

	if len(links) == 0 {
		return nil
	}
	return links
}

// Lower-cases scheme and host so that trivially different spellings of the
// same link share a fingerprint. Links that do not parse are kept as-is.
func NormalizeLink(link string) string {
	link = strings.TrimSpace(link)
	parsed, err := url.Parse(link)
	if err != nil || parsed.Host == "" {
		return link
	}
	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)
	return parsed.String()
}
