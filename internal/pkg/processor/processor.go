package processor

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"dupebot/internal/pkg/config"
	"dupebot/internal/pkg/deduplicator"
	"dupebot/internal/pkg/gate"
	"dupebot/internal/pkg/logger"
	"dupebot/internal/pkg/metrics"
	"dupebot/internal/pkg/models"
	"dupebot/internal/pkg/processor/linkfilter"
	"dupebot/internal/pkg/reporter"
)

// Defines the high-level interface for handling gateway events.
type Processor interface {
	// Checks the links of a new message and posts a notice for any that
	// were already shared in the same scope.
	ProcessMessage(ctx context.Context, message *models.Message) error
	// Forgets every link a deleted message had recorded.
	ProcessDeletion(ctx context.Context, deletion *models.Deletion) error
}

// Posts notices into a channel.
type Notifier interface {
	SendNotice(ctx context.Context, channelID string, notice *discordgo.MessageSend) (string, error)
}

// Opens an interaction gate for a sent notice.
type Gates interface {
	Open(ctx context.Context, notice gate.Notice) <-chan gate.Outcome
}

// The default implementation of Processor.
type processor struct {
	store    deduper.Store
	filter   *linkfilter.LinkFilter
	notifier Notifier
	gates    Gates
	scope    string
	footer   string
}

// Creates a new Processor instance and wires in the sub-components.
func NewProcessor(store deduper.Store, filter *linkfilter.LinkFilter, notifier Notifier, gates Gates, scope, footer string) Processor {
	if scope == "" {
		scope = config.ScopeChannel
	}
	return &processor{
		store:    store,
		filter:   filter,
		notifier: notifier,
		gates:    gates,
		scope:    scope,
		footer:   footer,
	}
}

// Resolves the scope id of a message. Messages outside a guild have none.
func (processor *processor) resolveScope(guildID, channelID string) (string, bool) {
	if guildID == "" {
		return "", false
	}
	if processor.scope == config.ScopeGuild {
		return guildID, true
	}
	return channelID, true
}

func (processor *processor) ProcessMessage(ctx context.Context, message *models.Message) error {
	if message == nil || message.AuthorBot {
		return nil
	}

	links := ExtractLinks(message.Content, message.Embeds)
	if len(links) == 0 {
		return nil
	}

	scope, ok := processor.resolveScope(message.GuildID, message.ChannelID)
	if !ok {
		logger.Log.Debug("Skipping message outside a guild", zap.String("message_id", message.ID))
		return nil
	}
	metrics.MessagesProcessed.Inc()

	reference := message.Link()
	indexKey := deduper.IndexKey(scope, message.ID)
	checked := make(map[string]struct{}, len(links))

	var duplicates []models.Duplicate
	for _, link := range links {
		if ignored, pattern := processor.filter.Ignored(link); ignored {
			logger.Log.Debug("Link ignored",
				zap.String("link", link),
				zap.String("pattern", pattern))
			continue
		}

		hash := deduper.Fingerprint(NormalizeLink(link), scope)
		if _, seen := checked[hash]; seen {
			continue
		}
		checked[hash] = struct{}{}
		metrics.LinksChecked.Inc()

		prior, duplicate, err := processor.store.Claim(ctx, hash, reference, indexKey)
		if err != nil {
			logger.Log.Warn("Failed to check link",
				zap.String("channel_id", message.ChannelID),
				zap.String("message_id", message.ID),
				zap.String("link", link),
				zap.Error(err))
			continue
		}
		// A message never duplicates itself.
		if !duplicate || prior == reference {
			continue
		}
		duplicates = append(duplicates, models.Duplicate{Link: link, Reference: prior})
	}

	if len(duplicates) == 0 {
		return nil
	}
	metrics.DuplicatesDetected.Add(float64(len(duplicates)))

	logger.Log.Info("Duplicate links detected",
		zap.String("guild_id", message.GuildID),
		zap.String("channel_id", message.ChannelID),
		zap.String("message_id", message.ID),
		zap.Int("duplicates", len(duplicates)))

	noticeID, err := processor.notifier.SendNotice(ctx, message.ChannelID, reporter.Compose(duplicates, processor.footer))
	if err != nil {
		metrics.NoticeFailures.Inc()
		return fmt.Errorf("send duplicate notice for %s: %w", message.ID, err)
	}
	metrics.NoticesSent.Inc()

	processor.gates.Open(ctx, gate.Notice{
		ChannelID: message.ChannelID,
		NoticeID:  noticeID,
		TriggerID: message.ID,
		AuthorID:  message.AuthorID,
	})
	return nil
}

func (processor *processor) ProcessDeletion(ctx context.Context, deletion *models.Deletion) error {
	if deletion == nil {
		return nil
	}
	scope, ok := processor.resolveScope(deletion.GuildID, deletion.ChannelID)
	if !ok {
		return nil
	}

	if err := processor.store.Forget(ctx, deduper.IndexKey(scope, deletion.ID)); err != nil {
		return fmt.Errorf("forget links of %s: %w", deletion.ID, err)
	}
	metrics.DeletionsSynced.Inc()

	logger.Log.Debug("Deletion synced",
		zap.String("channel_id", deletion.ChannelID),
		zap.String("message_id", deletion.ID))
	return nil
}
