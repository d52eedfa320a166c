package discord

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"dupebot/internal/pkg/gate"
	"dupebot/internal/pkg/logger"
	"dupebot/internal/pkg/metrics"
	"dupebot/internal/pkg/models"
	"dupebot/internal/pkg/queue"
)

const (
	// Gateway events replayed after a resume within this window are dropped.
	redeliveryWindow = 10 * time.Minute
	redeliverySize   = 4096
)

// Receives what the gateway delivers. Messages and deletions are queued;
// button presses are routed immediately so they can be acknowledged in time.
type EventSink interface {
	EnqueueEvent(ctx context.Context, event models.Event) error
	DispatchActivation(activation gate.Activation) bool
}

// Discord session plus an outbound throttle. Implements the operations the
// processor and the gates need from the platform.
type Bot struct {
	session *discordgo.Session
	limiter *rate.Limiter

	seenMu sync.Mutex
	seen   *expirable.LRU[string, struct{}]
}

// Creates a bot for the token. Outbound REST calls are limited to
// outboundRate per second with the given burst; a non-positive rate
// disables the limit. Does not connect.
func NewBot(token string, outboundRate float64, burst int) (*Bot, error) {
	if token == "" {
		return nil, errors.New("discord token is empty")
	}
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentMessageContent

	limit := rate.Inf
	if outboundRate > 0 {
		limit = rate.Limit(outboundRate)
	}
	if burst <= 0 {
		burst = 1
	}

	return &Bot{
		session: session,
		limiter: rate.NewLimiter(limit, burst),
		seen:    expirable.NewLRU[string, struct{}](redeliverySize, nil, redeliveryWindow),
	}, nil
}

// Connects to the gateway and forwards events to sink until ctx is done.
func (b *Bot) Run(ctx context.Context, sink EventSink) error {
	removers := []func(){
		b.session.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
			if r.User != nil {
				logger.Log.Info("Connected to Discord",
					zap.String("user", r.User.Username),
					zap.Int("guilds", len(r.Guilds)))
			}
		}),
		b.session.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
			b.handleMessageCreate(ctx, sink, m)
		}),
		b.session.AddHandler(func(_ *discordgo.Session, d *discordgo.MessageDelete) {
			b.handleMessageDelete(ctx, sink, d)
		}),
		b.session.AddHandler(func(_ *discordgo.Session, d *discordgo.MessageDeleteBulk) {
			b.handleMessageDeleteBulk(ctx, sink, d)
		}),
		b.session.AddHandler(func(_ *discordgo.Session, i *discordgo.InteractionCreate) {
			b.handleInteraction(sink, i)
		}),
	}
	defer func() {
		for _, remove := range removers {
			remove()
		}
	}()

	if err := b.session.Open(); err != nil {
		return fmt.Errorf("open discord gateway: %w", err)
	}
	logger.Log.Info("Discord gateway open")

	<-ctx.Done()

	logger.Log.Info("Closing Discord gateway")
	if err := b.session.Close(); err != nil {
		return fmt.Errorf("close discord gateway: %w", err)
	}
	return nil
}

func (b *Bot) handleMessageCreate(ctx context.Context, sink EventSink, m *discordgo.MessageCreate) {
	if m == nil {
		return
	}
	message := ConvertMessage(m.Message)
	if message == nil {
		return
	}
	b.forward(ctx, sink, models.MessageCreated(message))
}

func (b *Bot) handleMessageDelete(ctx context.Context, sink EventSink, d *discordgo.MessageDelete) {
	deletion := ConvertDeletion(d)
	if deletion == nil {
		return
	}
	b.forward(ctx, sink, models.MessageDeleted(deletion))
}

func (b *Bot) handleMessageDeleteBulk(ctx context.Context, sink EventSink, d *discordgo.MessageDeleteBulk) {
	for _, deletion := range ConvertBulkDeletion(d) {
		b.forward(ctx, sink, models.MessageDeleted(deletion))
	}
}

func (b *Bot) handleInteraction(sink EventSink, i *discordgo.InteractionCreate) {
	if i == nil {
		return
	}
	activation, ok := ConvertActivation(i.Interaction)
	if !ok {
		return
	}
	metrics.EventsReceived.WithLabelValues("interaction").Inc()
	if !sink.DispatchActivation(activation) {
		logger.Log.Debug("Activation not taken by a gate",
			zap.String("notice_id", activation.NoticeID),
			zap.String("user_id", activation.UserID))
	}
}

func (b *Bot) forward(ctx context.Context, sink EventSink, event models.Event) {
	metrics.EventsReceived.WithLabelValues(string(event.Kind)).Inc()

	if b.redelivered(event.Key()) {
		metrics.EventsDropped.WithLabelValues("redelivered").Inc()
		logger.Log.Debug("Dropping redelivered event", zap.String("key", event.Key()))
		return
	}

	if err := sink.EnqueueEvent(ctx, event); err != nil {
		reason := "error"
		switch {
		case errors.Is(err, queue.ErrQueueFull):
			reason = "queue_full"
		case errors.Is(err, queue.ErrQueueClosed):
			reason = "queue_closed"
		}
		metrics.EventsDropped.WithLabelValues(reason).Inc()
		logger.Log.Warn("Dropping event",
			zap.String("kind", string(event.Kind)),
			zap.String("key", event.Key()),
			zap.Error(err))
	}
}

// Reports whether key was seen recently and marks it as seen.
func (b *Bot) redelivered(key string) bool {
	if key == "" {
		return false
	}
	b.seenMu.Lock()
	defer b.seenMu.Unlock()
	if b.seen.Contains(key) {
		return true
	}
	b.seen.Add(key, struct{}{})
	return false
}

// Sends a notice into the channel and returns the id of the sent message.
func (b *Bot) SendNotice(ctx context.Context, channelID string, notice *discordgo.MessageSend) (string, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return "", err
	}
	sent, err := b.session.ChannelMessageSendComplex(channelID, notice, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("send notice to %s: %w", channelID, err)
	}
	return sent.ID, nil
}

func (b *Bot) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return err
	}
	if err := b.session.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("delete message %s: %w", messageID, err)
	}
	return nil
}

// Acknowledges a button press without changing the message. Not throttled:
// the platform expects the answer within three seconds.
func (b *Bot) Acknowledge(ctx context.Context, interaction *discordgo.Interaction) error {
	err := b.session.InteractionRespond(interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredMessageUpdate,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("acknowledge interaction %s: %w", interaction.ID, err)
	}
	return nil
}

// Strips the buttons from a notice.
func (b *Bot) DisableControls(ctx context.Context, channelID, messageID string) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return err
	}
	edit := discordgo.NewMessageEdit(channelID, messageID)
	edit.Components = &[]discordgo.MessageComponent{}
	if _, err := b.session.ChannelMessageEditComplex(edit, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("disable controls on %s: %w", messageID, err)
	}
	return nil
}
