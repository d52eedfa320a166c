package discord

import (
	"github.com/bwmarrin/discordgo"

	"dupebot/internal/pkg/gate"
	"dupebot/internal/pkg/models"
)

// Converts a gateway message into the model used by the processor.
// Messages without an author (system messages) are reported as bot authored
// so they are never checked.
func ConvertMessage(m *discordgo.Message) *models.Message {
	if m == nil {
		return nil
	}

	message := &models.Message{
		ID:        m.ID,
		ChannelID: m.ChannelID,
		GuildID:   m.GuildID,
		Content:   m.Content,
		AuthorBot: true,
	}
	if m.Author != nil {
		message.AuthorID = m.Author.ID
		message.AuthorBot = m.Author.Bot
	}

	for _, embed := range m.Embeds {
		if embed == nil {
			continue
		}
		message.Embeds = append(message.Embeds, models.Embed{
			Kind: string(embed.Type),
			URL:  embed.URL,
		})
	}
	return message
}

func ConvertDeletion(d *discordgo.MessageDelete) *models.Deletion {
	if d == nil || d.Message == nil {
		return nil
	}
	return &models.Deletion{ID: d.ID, ChannelID: d.ChannelID, GuildID: d.GuildID}
}

// Splits a bulk delete into one deletion per message.
func ConvertBulkDeletion(d *discordgo.MessageDeleteBulk) []*models.Deletion {
	if d == nil {
		return nil
	}
	deletions := make([]*models.Deletion, 0, len(d.Messages))
	for _, id := range d.Messages {
		deletions = append(deletions, &models.Deletion{ID: id, ChannelID: d.ChannelID, GuildID: d.GuildID})
	}
	return deletions
}

// Turns a button press into a gate activation. Returns false for any other
// kind of interaction.
func ConvertActivation(i *discordgo.Interaction) (gate.Activation, bool) {
	if i == nil || i.Type != discordgo.InteractionMessageComponent || i.Message == nil {
		return gate.Activation{}, false
	}

	var userID string
	switch {
	case i.Member != nil && i.Member.User != nil:
		userID = i.Member.User.ID
	case i.User != nil:
		userID = i.User.ID
	default:
		return gate.Activation{}, false
	}

	return gate.Activation{
		NoticeID:    i.Message.ID,
		UserID:      userID,
		CustomID:    i.MessageComponentData().CustomID,
		Interaction: i,
	}, true
}
