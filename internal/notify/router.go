package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"courier-dispatch/internal/apperr"
	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/logx"
	"courier-dispatch/internal/metrics"
)

// Channel is one live realtime connection.
type Channel interface {
	// ID identifies the channel in logs.
	ID() string
	Send(ctx context.Context, payload []byte) error
	Close() error
}

// Router maps users to their live channels. A user may have many channels;
// a channel belongs to at most one user. Messages for users without
// channels are dropped.
type Router struct {
	mu      sync.RWMutex
	owner   map[Channel]string
	users   map[string]map[Channel]struct{}
	closed  bool
	timeout time.Duration
	metrics *metrics.Notify
	logger  logx.Logger
}

// NewRouter creates a Router. sendTimeout bounds every single send; m may be nil.
func NewRouter(sendTimeout time.Duration, m *metrics.Notify, logger logx.Logger) *Router {
	if sendTimeout <= 0 {
		sendTimeout = 3 * time.Second
	}
	if logger == nil {
		logger = logx.Nop()
	}
	return &Router{
		owner:   make(map[Channel]string),
		users:   make(map[string]map[Channel]struct{}),
		timeout: sendTimeout,
		metrics: m,
		logger:  logger,
	}
}

// Add tracks a channel that is not yet bound to a user. It only receives broadcasts.
func (r *Router) Add(ch Channel) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return fmt.Errorf("router closed: %w", apperr.ErrConflict)
	}
	if _, ok := r.owner[ch]; ok {
		return nil
	}
	r.owner[ch] = ""
	r.gauge(1)
	return nil
}

// Register binds ch to userID, moving it away from any previous user.
func (r *Router) Register(ch Channel, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("%w: empty user id", apperr.ErrInvalid)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return fmt.Errorf("router closed: %w", apperr.ErrConflict)
	}

	prev, known := r.owner[ch]
	if !known {
		r.gauge(1)
	} else if prev != "" {
		r.detachLocked(ch, prev)
	}

	r.owner[ch] = userID
	set, ok := r.users[userID]
	if !ok {
		set = make(map[Channel]struct{})
		r.users[userID] = set
	}
	set[ch] = struct{}{}

	r.logger.Debug("channel registered",
		logx.String("user_id", userID),
		logx.String("channel", ch.ID()),
		logx.Int("user_channels", len(set)),
	)
	return nil
}

// Unregister forgets ch. A user left without channels is removed entirely.
// It reports whether ch was known.
func (r *Router) Unregister(ch Channel) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.unregisterLocked(ch)
}

func (r *Router) unregisterLocked(ch Channel) bool {
	user, ok := r.owner[ch]
	if !ok {
		return false
	}
	delete(r.owner, ch)
	if user != "" {
		r.detachLocked(ch, user)
	}
	r.gauge(-1)
	return true
}

func (r *Router) detachLocked(ch Channel, user string) {
	set := r.users[user]
	delete(set, ch)
	if len(set) == 0 {
		delete(r.users, user)
	}
}

// SendToUser delivers payload to every channel of userID and returns how
// many sends succeeded. Failed channels are closed and unregistered.
func (r *Router) SendToUser(ctx context.Context, userID string, payload []byte) int {
	r.mu.RLock()
	targets := make([]Channel, 0, len(r.users[userID]))
	for ch := range r.users[userID] {
		targets = append(targets, ch)
	}
	r.mu.RUnlock()

	if len(targets) == 0 {
		r.count(metrics.ResultDropped, 1)
		r.logger.Debug("no channels for user", logx.String("user_id", userID))
		return 0
	}
	return r.fanOut(ctx, targets, payload)
}

// Broadcast delivers payload to every channel, registered or not.
func (r *Router) Broadcast(ctx context.Context, payload []byte) int {
	r.mu.RLock()
	targets := make([]Channel, 0, len(r.owner))
	for ch := range r.owner {
		targets = append(targets, ch)
	}
	r.mu.RUnlock()

	if len(targets) == 0 {
		return 0
	}
	return r.fanOut(ctx, targets, payload)
}

// Deliver encodes n and sends it to userID, returning the number of channels reached.
func (r *Router) Deliver(ctx context.Context, userID string, n domain.Notification) (int, error) {
	payload, err := json.Marshal(n)
	if err != nil {
		return 0, fmt.Errorf("encode %s notification: %w", n.Event, err)
	}
	return r.SendToUser(ctx, userID, payload), nil
}

// Notify is Deliver without the count. Offline users are not an error.
func (r *Router) Notify(ctx context.Context, userID string, n domain.Notification) error {
	_, err := r.Deliver(ctx, userID, n)
	return err
}

// BroadcastNotification encodes n and sends it to every channel.
func (r *Router) BroadcastNotification(ctx context.Context, n domain.Notification) (int, error) {
	payload, err := json.Marshal(n)
	if err != nil {
		return 0, fmt.Errorf("encode %s notification: %w", n.Event, err)
	}
	return r.Broadcast(ctx, payload), nil
}

func (r *Router) fanOut(ctx context.Context, targets []Channel, payload []byte) int {
	var (
		wg        sync.WaitGroup
		delivered atomic.Int64
	)
	for _, ch := range targets {
		wg.Add(1)
		go func(ch Channel) {
			defer wg.Done()
			sendCtx, cancel := context.WithTimeout(ctx, r.timeout)
			defer cancel()

			if err := ch.Send(sendCtx, payload); err != nil {
				r.count(metrics.ResultFailed, 1)
				r.logger.Warn("channel send failed, dropping channel",
					logx.String("channel", ch.ID()),
					logx.Err(err),
				)
				r.Unregister(ch)
				_ = ch.Close()
				return
			}
			delivered.Add(1)
		}(ch)
	}
	wg.Wait()

	n := int(delivered.Load())
	r.count(metrics.ResultDelivered, n)
	return n
}

// Channels returns the number of tracked channels.
func (r *Router) Channels() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.owner)
}

// Users returns the number of users with at least one channel.
func (r *Router) Users() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}

// UserChannels returns the number of channels bound to userID.
func (r *Router) UserChannels(userID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users[userID])
}

// Close closes every channel and rejects further registrations.
func (r *Router) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	all := make([]Channel, 0, len(r.owner))
	for ch := range r.owner {
		all = append(all, ch)
	}
	for _, ch := range all {
		r.unregisterLocked(ch)
	}
	r.mu.Unlock()

	for _, ch := range all {
		_ = ch.Close()
	}
	r.logger.Info("notification router closed", logx.Int("channels", len(all)))
}

func (r *Router) gauge(delta float64) {
	if r.metrics != nil {
		r.metrics.ChannelsOpen.Add(delta)
	}
}

func (r *Router) count(result string, n int) {
	if r.metrics != nil && n > 0 {
		r.metrics.Messages.WithLabelValues(result).Add(float64(n))
	}
}
