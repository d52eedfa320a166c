package models

import "fmt"

// Embed kinds that are renderings of media rather than shared links.
const (
	EmbedImage = "image"
	EmbedVideo = "video"
	EmbedGifv  = "gifv"
	EmbedRich  = "rich"
)

// Custom ids of the two notice buttons.
const (
	ActionIgnore = "ignore"
	ActionRemove = "remove"
)

// A chat message as seen by the duplicate checker.
type Message struct {
	ID        string  `json:"id"`
	ChannelID string  `json:"channel_id"`
	GuildID   string  `json:"guild_id,omitempty"`
	AuthorID  string  `json:"author_id"`
	AuthorBot bool    `json:"author_bot"`
	Content   string  `json:"content"`
	Embeds    []Embed `json:"embeds,omitempty"`
}

// A preview attached to a message by the platform.
type Embed struct {
	Kind string `json:"kind"`
	URL  string `json:"url,omitempty"`
}

// Notification that a message was deleted upstream.
type Deletion struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel_id"`
	GuildID   string `json:"guild_id,omitempty"`
}

// A link that was already posted, with the permalink of the first post.
type Duplicate struct {
	Link      string `json:"link"`
	Reference string `json:"reference"`
}

// Builds the permalink of a message. Direct messages use "@me" in place
// of the guild id.
func Permalink(guildID, channelID, messageID string) string {
	if guildID == "" {
		guildID = "@me"
	}
	return fmt.Sprintf("https://discord.com/channels/%s/%s/%s", guildID, channelID, messageID)
}

// Permalink of the message.
func (m *Message) Link() string {
	return Permalink(m.GuildID, m.ChannelID, m.ID)
}
