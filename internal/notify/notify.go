package notify

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Severity classifies a notification for display.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Notification is a fire-and-forget message for one user.
type Notification struct {
	UserID    string    `json:"user_id"`
	Message   string    `json:"message"`
	Severity  Severity  `json:"severity"`
	CreatedAt time.Time `json:"created_at"`
}

// Notifier delivers notifications. Implementations must not block the
// caller beyond the context deadline; delivery is best effort.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
	// Drain removes and returns the pending notifications for a user.
	Drain(ctx context.Context, userID string) ([]Notification, error)
}

// Channel is the pub/sub channel delivery workers listen on.
const Channel = "geoattend:notifications"

func pendingKey(userID string) string { return "notify:" + userID }

// RedisNotifier queues notifications per user in a Redis list and fans
// them out over pub/sub for the delivery worker.
type RedisNotifier struct {
	client *redis.Client
	maxLen int64
}

// NewRedis builds a notifier keeping at most maxLen pending entries per user.
func NewRedis(client *redis.Client, maxLen int64) *RedisNotifier {
	if maxLen <= 0 {
		maxLen = 100
	}
	return &RedisNotifier{client: client, maxLen: maxLen}
}

// Notify appends to the user's pending list and publishes for workers.
func (r *RedisNotifier) Notify(ctx context.Context, n Notification) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(n)
	if err != nil {
		return err
	}
	pipe := r.client.Pipeline()
	pipe.LPush(ctx, pendingKey(n.UserID), payload)
	pipe.LTrim(ctx, pendingKey(n.UserID), 0, r.maxLen-1)
	pipe.Publish(ctx, Channel, payload)
	_, err = pipe.Exec(ctx)
	return err
}

// Drain pops every pending notification for the user, newest first.
func (r *RedisNotifier) Drain(ctx context.Context, userID string) ([]Notification, error) {
	raw, err := r.client.LRange(ctx, pendingKey(userID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if err := r.client.Del(ctx, pendingKey(userID)).Err(); err != nil {
		return nil, err
	}
	out := make([]Notification, 0, len(raw))
	for _, item := range raw {
		var n Notification
		if err := json.Unmarshal([]byte(item), &n); err != nil {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

// Subscribe streams all published notifications until ctx is canceled.
func (r *RedisNotifier) Subscribe(ctx context.Context) (<-chan Notification, error) {
	sub := r.client.Subscribe(ctx, Channel)
	if _, err := sub.Receive(ctx); err != nil {
		return nil, err
	}
	out := make(chan Notification)
	go func() {
		defer close(out)
		defer sub.Close()
		for {
			select {
			case msg, ok := <-sub.Channel():
				if !ok {
					return
				}
				var n Notification
				if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
					continue
				}
				out <- n
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// InMemory is a channel-free notifier for dev and tests.
type InMemory struct {
	mu      sync.Mutex
	pending map[string][]Notification
}

// NewInMemory creates an empty in-memory notifier.
func NewInMemory() *InMemory {
	return &InMemory{pending: make(map[string][]Notification)}
}

// Notify records the notification in the user's pending list.
func (m *InMemory) Notify(_ context.Context, n Notification) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending[n.UserID] = append(m.pending[n.UserID], n)
	return nil
}

// Drain removes and returns the user's pending notifications.
func (m *InMemory) Drain(_ context.Context, userID string) ([]Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.pending[userID]
	delete(m.pending, userID)
	return out, nil
}
