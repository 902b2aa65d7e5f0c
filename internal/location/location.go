package location

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Provider failure modes. A tick that hits any of these aborts without
// partial writes and retries on the next scheduled tick.
var (
	ErrUnavailable      = errors.New("location unavailable")
	ErrPermissionDenied = errors.New("location permission denied")
	ErrTimeout          = errors.New("location request timed out")
)

// Fix is one device location report.
type Fix struct {
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	Accuracy   float64   `json:"accuracy"`
	Denied     bool      `json:"denied"`
	ReportedAt time.Time `json:"reported_at"`
}

// Provider yields the current device location for a user.
type Provider interface {
	Current(ctx context.Context, userID string) (Fix, error)
}

// Tracker extends Provider with fix ingestion and the set of users whose
// devices are actively reporting, which drives the evaluator loop.
type Tracker interface {
	Provider
	Report(ctx context.Context, userID string, fix Fix) error
	ActiveUsers(ctx context.Context) ([]string, error)
}

const activeSetKey = "tracker:active"

func fixKey(userID string) string { return "tracker:fix:" + userID }

// RedisTracker keeps each user's last fix under a TTL; an expired fix means
// the device stopped reporting and the location is unavailable.
type RedisTracker struct {
	client  *redis.Client
	ttl     time.Duration
	timeout time.Duration
}

// NewRedisTracker builds a tracker. ttl bounds fix freshness, timeout
// bounds each lookup.
func NewRedisTracker(client *redis.Client, ttl, timeout time.Duration) *RedisTracker {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RedisTracker{client: client, ttl: ttl, timeout: timeout}
}

// Report stores the fix and marks the user active.
func (t *RedisTracker) Report(ctx context.Context, userID string, fix Fix) error {
	if fix.ReportedAt.IsZero() {
		fix.ReportedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(fix)
	if err != nil {
		return err
	}
	pipe := t.client.Pipeline()
	pipe.Set(ctx, fixKey(userID), payload, t.ttl)
	pipe.SAdd(ctx, activeSetKey, userID)
	_, err = pipe.Exec(ctx)
	return err
}

// Current returns the user's last fresh fix.
func (t *RedisTracker) Current(ctx context.Context, userID string) (Fix, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	raw, err := t.client.Get(ctx, fixKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return Fix{}, ErrUnavailable
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Fix{}, ErrTimeout
		}
		return Fix{}, err
	}
	var fix Fix
	if err := json.Unmarshal([]byte(raw), &fix); err != nil {
		return Fix{}, err
	}
	if fix.Denied {
		return Fix{}, ErrPermissionDenied
	}
	return fix, nil
}

// ActiveUsers lists users with a recent enough fix to evaluate. Users whose
// fix expired are pruned from the active set.
func (t *RedisTracker) ActiveUsers(ctx context.Context) ([]string, error) {
	users, err := t.client.SMembers(ctx, activeSetKey).Result()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(users))
	for _, u := range users {
		n, err := t.client.Exists(ctx, fixKey(u)).Result()
		if err != nil {
			return nil, err
		}
		if n == 0 {
			_ = t.client.SRem(ctx, activeSetKey, u).Err()
			continue
		}
		out = append(out, u)
	}
	return out, nil
}

// MemoryTracker is the in-memory variant for dev and tests.
type MemoryTracker struct {
	mu    sync.Mutex
	fixes map[string]Fix
	ttl   time.Duration
	now   func() time.Time
}

// NewMemoryTracker creates a tracker whose fixes expire after ttl.
func NewMemoryTracker(ttl time.Duration) *MemoryTracker {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &MemoryTracker{fixes: make(map[string]Fix), ttl: ttl, now: time.Now}
}

// SetClock swaps the tracker's clock; tests use it to age fixes.
func (t *MemoryTracker) SetClock(now func() time.Time) { t.now = now }

// Report stores the fix.
func (t *MemoryTracker) Report(_ context.Context, userID string, fix Fix) error {
	if fix.ReportedAt.IsZero() {
		fix.ReportedAt = t.now().UTC()
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fixes[userID] = fix
	return nil
}

// Current returns the user's last fix unless it expired or was denied.
func (t *MemoryTracker) Current(_ context.Context, userID string) (Fix, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fix, ok := t.fixes[userID]
	if !ok || t.now().Sub(fix.ReportedAt) > t.ttl {
		return Fix{}, ErrUnavailable
	}
	if fix.Denied {
		return Fix{}, ErrPermissionDenied
	}
	return fix, nil
}

// ActiveUsers lists users with an unexpired fix.
func (t *MemoryTracker) ActiveUsers(_ context.Context) ([]string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []string
	for u, fix := range t.fixes {
		if t.now().Sub(fix.ReportedAt) <= t.ttl {
			out = append(out, u)
		}
	}
	return out, nil
}
