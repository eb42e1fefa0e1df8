package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// reserveScript increments KEYS[1] unless it already reached ARGV[1] and arms
// the expiry (ARGV[2] ms) on the first hit. Returns -1 when the limit is reached.
var reserveScript = redis.NewScript(`
	local n = tonumber(redis.call("get", KEYS[1]) or "0")
	if n >= tonumber(ARGV[1]) then
		return -1
	end
	n = redis.call("incr", KEYS[1])
	if n == 1 then
		redis.call("pexpire", KEYS[1], ARGV[2])
	end
	return n
`)

var releaseScript = redis.NewScript(`
	local n = tonumber(redis.call("get", KEYS[1]) or "0")
	if n <= 0 then
		return 0
	end
	return redis.call("decr", KEYS[1])
`)

// WindowCounter is a per-subject counter over a fixed window. The key embeds
// the UTC day and expires one window after the first increment, so a counter
// resets either at day rollover or when its TTL lapses, whichever comes first.
// That makes the quota an approximation of a sliding 24h window.
type WindowCounter struct {
	cache  *RedisCache
	prefix string
	window time.Duration
	now    func() time.Time
}

func NewWindowCounter(c *RedisCache, prefix string, window time.Duration) *WindowCounter {
	return &WindowCounter{cache: c, prefix: prefix, window: window, now: time.Now}
}

// WithClock overrides the clock used to derive the day bucket.
func (w *WindowCounter) WithClock(now func() time.Time) *WindowCounter {
	w.now = now
	return w
}

func (w *WindowCounter) key(subject string) string {
	return fmt.Sprintf("%s:%s:%s", w.prefix, subject, w.now().UTC().Format(time.DateOnly))
}

// Current returns the count in the active window. A missing key reads as 0.
func (w *WindowCounter) Current(ctx context.Context, subject string) (int64, error) {
	raw, err := w.cache.Get(ctx, w.key(subject))
	if err != nil || raw == "" {
		return 0, err
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, nil
	}
	return n, nil
}

// Increment bumps the counter and arms the expiry on the first hit only.
func (w *WindowCounter) Increment(ctx context.Context, subject string) (int64, error) {
	key := w.key(subject)
	n, err := w.cache.Incr(ctx, key)
	if err != nil {
		return 0, err
	}
	if n == 1 {
		if err := w.cache.Client.Expire(ctx, key, w.window).Err(); err != nil {
			return n, err
		}
	}
	return n, nil
}

// Reserve takes one slot if the count is below limit, in a single step.
// ok is false when the limit was already reached; n is the new count.
func (w *WindowCounter) Reserve(ctx context.Context, subject string, limit int64) (n int64, ok bool, err error) {
	n, err = reserveScript.Run(ctx, w.cache.Client, []string{w.key(subject)}, limit, w.window.Milliseconds()).Int64()
	if err != nil {
		return 0, false, err
	}
	if n < 0 {
		return limit, false, nil
	}
	return n, true, nil
}

// Release gives back a slot taken by Reserve. The count never drops below 0.
func (w *WindowCounter) Release(ctx context.Context, subject string) error {
	return releaseScript.Run(ctx, w.cache.Client, []string{w.key(subject)}).Err()
}
