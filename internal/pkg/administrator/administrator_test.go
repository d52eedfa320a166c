package administrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bwmarrin/discordgo"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dupebot/internal/pkg/config"
	"dupebot/internal/pkg/deduplicator"
	"dupebot/internal/pkg/gate"
	"dupebot/internal/pkg/models"
	"dupebot/internal/pkg/queue"
)

type fakePlatform struct {
	mu      sync.Mutex
	notices []string
	deleted []string
}

func (f *fakePlatform) SendNotice(ctx context.Context, channelID string, notice *discordgo.MessageSend) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notices = append(f.notices, channelID)
	return "notice", nil
}

func (f *fakePlatform) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, messageID)
	return nil
}

func (f *fakePlatform) Acknowledge(ctx context.Context, interaction *discordgo.Interaction) error {
	return nil
}

func (f *fakePlatform) DisableControls(ctx context.Context, channelID, messageID string) error {
	return nil
}

func (f *fakePlatform) sent() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.notices)
}

func (f *fakePlatform) deletions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

func testConfig() *config.Config {
	return &config.Config{
		Scope:         config.ScopeChannel,
		Retention:     time.Hour,
		NoticeTimeout: time.Minute,
		NoticeFooter:  "footer",
		QueueCapacity: 2,
		NumWorkers:    2,
	}
}

func newTestAdmin(t *testing.T, cfg *config.Config) (Administrator, *fakePlatform) {
	t.Helper()
	mr := miniredis.RunT(t)
	store := deduper.NewStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "test", cfg.Retention, nil)
	platform := &fakePlatform{}

	admin, err := NewWithStore(cfg, store, platform)
	require.NoError(t, err)
	return admin, platform
}

func created(id, author string) models.Event {
	return models.MessageCreated(&models.Message{
		ID: id, ChannelID: "C", GuildID: "G", AuthorID: author,
		Content: "look https://example.com/a",
	})
}

func TestPipelineEndToEnd(t *testing.T) {
	// One worker keeps the two posts in order.
	cfg := testConfig()
	cfg.NumWorkers = 1
	admin, platform := newTestAdmin(t, cfg)
	ctx, cancel := context.WithCancel(context.Background())
	admin.Start(ctx)

	require.NoError(t, admin.EnqueueEvent(ctx, created("1", "alice")))
	require.NoError(t, admin.EnqueueEvent(ctx, created("2", "bob")))
	assert.Eventually(t, func() bool { return admin.OpenGates() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, platform.sent())

	// Button presses go straight to the gate.
	assert.True(t, admin.DispatchActivation(gate.Activation{NoticeID: "notice", UserID: "bob", CustomID: models.ActionIgnore}))
	assert.Eventually(t, func() bool { return admin.OpenGates() == 0 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"notice"}, platform.deletions())

	assert.Equal(t, 1, admin.WorkerCount())
	assert.False(t, admin.StartTime().IsZero())

	cancel()
	admin.Stop()
}

func TestEnqueueRejectsWhenFullOrStopped(t *testing.T) {
	admin, _ := newTestAdmin(t, testConfig())

	// Workers not started: the queue fills up.
	require.NoError(t, admin.EnqueueEvent(context.Background(), created("1", "a")))
	require.NoError(t, admin.EnqueueEvent(context.Background(), created("2", "a")))
	assert.ErrorIs(t, admin.EnqueueEvent(context.Background(), created("3", "a")), queue.ErrQueueFull)
	assert.Equal(t, 2, admin.QueueDepth())

	admin.Stop()
	assert.ErrorIs(t, admin.EnqueueEvent(context.Background(), created("4", "a")), queue.ErrQueueClosed)
}

func TestNewWithStoreRejectsBadCapacity(t *testing.T) {
	cfg := testConfig()
	cfg.QueueCapacity = 0
	mr := miniredis.RunT(t)
	store := deduper.NewStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "test", 0, nil)
	defer store.Close()

	_, err := NewWithStore(cfg, store, &fakePlatform{})
	assert.Error(t, err)
}

func TestNewFailsWithoutRedis(t *testing.T) {
	cfg := testConfig()
	cfg.RedisHost = "127.0.0.1"
	cfg.RedisPort = "1"

	_, err := New(cfg, &fakePlatform{})
	assert.Error(t, err)
}
