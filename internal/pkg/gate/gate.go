package gate

import (
	"context"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/sourcegraph/conc"
	"go.uber.org/zap"

	"dupebot/internal/pkg/logger"
	"dupebot/internal/pkg/metrics"
	"dupebot/internal/pkg/models"
)

// Buffered presses per notice. Presses beyond this while one is being
// handled are dropped.
const activationBuffer = 4

// The platform rejects acknowledgements after three seconds.
const acknowledgeTimeout = 3 * time.Second

// The chat operations a gate performs.
type Messenger interface {
	DeleteMessage(ctx context.Context, channelID, messageID string) error
	Acknowledge(ctx context.Context, interaction *discordgo.Interaction) error
	DisableControls(ctx context.Context, channelID, messageID string) error
}

// A sent duplicate notice and the message that triggered it.
type Notice struct {
	ChannelID string
	NoticeID  string
	TriggerID string
	AuthorID  string
}

// A button press on a notice.
type Activation struct {
	NoticeID    string
	UserID      string
	CustomID    string
	Interaction *discordgo.Interaction
}

// How a gate closed.
type Outcome string

const (
	OutcomeRemoved   Outcome = "removed"
	OutcomeIgnored   Outcome = "ignored"
	OutcomeTimeout   Outcome = "timeout"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeFailed    Outcome = "failed"
)

type gate struct {
	notice      Notice
	activations chan Activation
}

// Tracks open gates by notice id. Each gate listens for presses until its
// window elapses, a terminal press is handled, or its context ends, and is
// unregistered on every one of those paths.
type Registry struct {
	mu               sync.Mutex
	gates            map[string]*gate
	messenger        Messenger
	timeout          time.Duration
	disableOnTimeout bool
	wg               conc.WaitGroup
}

// Creates a registry whose gates stay open for timeout. When
// disableOnTimeout is set, expired notices lose their buttons.
func NewRegistry(messenger Messenger, timeout time.Duration, disableOnTimeout bool) *Registry {
	return &Registry{
		gates:            make(map[string]*gate),
		messenger:        messenger,
		timeout:          timeout,
		disableOnTimeout: disableOnTimeout,
	}
}

// Registers a gate for the notice and starts listening in the background.
// The returned channel receives the outcome once the gate has closed.
func (r *Registry) Open(ctx context.Context, notice Notice) <-chan Outcome {
	done := make(chan Outcome, 1)

	r.mu.Lock()
	if _, exists := r.gates[notice.NoticeID]; exists {
		r.mu.Unlock()
		logger.Log.Warn("Gate already open for notice", zap.String("notice_id", notice.NoticeID))
		done <- OutcomeFailed
		return done
	}
	g := &gate{notice: notice, activations: make(chan Activation, activationBuffer)}
	r.gates[notice.NoticeID] = g
	r.mu.Unlock()

	metrics.OpenGates.Inc()
	r.wg.Go(func() {
		outcome := r.run(ctx, g)
		r.close(g)
		metrics.GateOutcomes.WithLabelValues(string(outcome)).Inc()
		logger.Log.Debug("Gate closed",
			zap.String("notice_id", notice.NoticeID),
			zap.String("outcome", string(outcome)))
		done <- outcome
	})
	return done
}

// Hands a press to the gate of its notice. Returns false when no gate is
// open for it or the gate is busy, in which case the press is only
// acknowledged.
func (r *Registry) Dispatch(activation Activation) bool {
	r.mu.Lock()
	delivered := false
	if g, ok := r.gates[activation.NoticeID]; ok {
		select {
		case g.activations <- activation:
			delivered = true
		default:
			logger.Log.Debug("Gate busy, dropping activation",
				zap.String("notice_id", activation.NoticeID),
				zap.String("user_id", activation.UserID))
		}
	}
	r.mu.Unlock()

	if !delivered {
		r.acknowledgeUnhandled(activation)
	}
	return delivered
}

// Answers a press no gate will process so the client does not report a
// failed interaction.
func (r *Registry) acknowledgeUnhandled(activation Activation) {
	if activation.Interaction == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), acknowledgeTimeout)
	defer cancel()
	if err := r.messenger.Acknowledge(ctx, activation.Interaction); err != nil {
		logger.Log.Warn("Failed to acknowledge unhandled interaction",
			zap.String("notice_id", activation.NoticeID),
			zap.Error(err))
	}
}

// Number of open gates.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.gates)
}

// Blocks until every gate goroutine has returned.
func (r *Registry) Wait() {
	r.wg.Wait()
}

func (r *Registry) close(g *gate) {
	r.mu.Lock()
	delete(r.gates, g.notice.NoticeID)
	r.mu.Unlock()
	metrics.OpenGates.Dec()
}

func (r *Registry) run(ctx context.Context, g *gate) Outcome {
	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	notice := g.notice
	for {
		select {
		case <-ctx.Done():
			return OutcomeCancelled

		case <-timer.C:
			if r.disableOnTimeout {
				if err := r.messenger.DisableControls(context.WithoutCancel(ctx), notice.ChannelID, notice.NoticeID); err != nil {
					logger.Log.Warn("Failed to disable notice controls",
						zap.String("notice_id", notice.NoticeID),
						zap.Error(err))
				}
			}
			return OutcomeTimeout

		case activation := <-g.activations:
			if outcome, terminal := r.handle(ctx, notice, activation); terminal {
				return outcome
			}
		}
	}
}

// Applies one press. Returns terminal=false when the gate stays open.
func (r *Registry) handle(ctx context.Context, notice Notice, activation Activation) (Outcome, bool) {
	// Acknowledge every press without a visible reply so the client does not
	// report a failed interaction.
	if activation.Interaction != nil {
		if err := r.messenger.Acknowledge(ctx, activation.Interaction); err != nil {
			logger.Log.Warn("Failed to acknowledge interaction",
				zap.String("notice_id", notice.NoticeID),
				zap.Error(err))
		}
	}

	if activation.CustomID != models.ActionIgnore && activation.CustomID != models.ActionRemove {
		return "", false
	}

	if activation.UserID != notice.AuthorID {
		metrics.UnauthorizedActivations.Inc()
		logger.Log.Debug("Ignoring activation from someone other than the author",
			zap.String("notice_id", notice.NoticeID),
			zap.String("user_id", activation.UserID))
		return "", false
	}

	outcome := OutcomeIgnored
	if activation.CustomID == models.ActionRemove {
		if err := r.messenger.DeleteMessage(ctx, notice.ChannelID, notice.TriggerID); err != nil {
			logger.Log.Warn("Failed to delete duplicate post",
				zap.String("channel_id", notice.ChannelID),
				zap.String("message_id", notice.TriggerID),
				zap.Error(err))
			return OutcomeFailed, true
		}
		outcome = OutcomeRemoved
	}

	if err := r.messenger.DeleteMessage(ctx, notice.ChannelID, notice.NoticeID); err != nil {
		logger.Log.Warn("Failed to delete notice",
			zap.String("channel_id", notice.ChannelID),
			zap.String("notice_id", notice.NoticeID),
			zap.Error(err))
		return OutcomeFailed, true
	}
	return outcome, true
}
