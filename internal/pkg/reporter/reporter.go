package reporter

import (
	"github.com/bwmarrin/discordgo"

	"dupebot/internal/pkg/models"
)

const (
	Title = "Duplicate Links"

	singularDescription = "One of these have already been posted!"
	pluralDescription   = "Some of these have already been posted!"

	ignoreEmoji = "🗑️"
	removeEmoji = "❌"
)

// Discord embed limits.
const (
	maxFields      = 25
	maxFieldName   = 256
	maxFieldValue  = 1024
	maxFooterText  = 2048
	truncateMarker = "…"
)

// Builds the duplicate notice: one inline field per duplicate linking to the
// first post, plus the "Ignore" and "Remove my post" buttons.
func Compose(duplicates []models.Duplicate, footer string) *discordgo.MessageSend {
	description := singularDescription
	if len(duplicates) > 1 {
		description = pluralDescription
	}

	shown := duplicates
	if len(shown) > maxFields {
		shown = shown[:maxFields]
	}
	fields := make([]*discordgo.MessageEmbedField, 0, len(shown))
	for _, duplicate := range shown {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:   truncate(duplicate.Link, maxFieldName),
			Value:  truncate(duplicate.Reference, maxFieldValue),
			Inline: true,
		})
	}

	embed := &discordgo.MessageEmbed{
		Type:        discordgo.EmbedTypeRich,
		Title:       Title,
		Description: description,
		Fields:      fields,
	}
	if footer != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: truncate(footer, maxFooterText)}
	}

	return &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{embed},
		Components: Controls(),
		// Never ping anyone mentioned in a link.
		AllowedMentions: &discordgo.MessageAllowedMentions{},
	}
}

// The notice buttons in a single action row.
func Controls() []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{
					CustomID: models.ActionIgnore,
					Label:    "Ignore",
					Style:    discordgo.SecondaryButton,
					Emoji:    &discordgo.ComponentEmoji{Name: ignoreEmoji},
				},
				discordgo.Button{
					CustomID: models.ActionRemove,
					Label:    "Remove my post",
					Style:    discordgo.DangerButton,
					Emoji:    &discordgo.ComponentEmoji{Name: removeEmoji},
				},
			},
		},
	}
}

// Cuts s to at most limit runes.
func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + truncateMarker
}
