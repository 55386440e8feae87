package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aicompanion/companion/internal/core/domain"
	"github.com/aicompanion/companion/internal/core/ports"
)

const defaultQuotaWindow = 30 * 24 * time.Hour

// consumeScript increments the counter only while it is below the limit.
// Returns {accepted, used}.
var consumeScript = redis.NewScript(`
local used = tonumber(redis.call('GET', KEYS[1]) or '0')
if used >= tonumber(ARGV[1]) then
	return {0, used}
end
used = redis.call('INCR', KEYS[1])
redis.call('PEXPIRE', KEYS[1], ARGV[2])
return {1, used}
`)

// ChatQuota meters anonymous chat turns per device in Redis.
// Key format: chatquota:<device_id>
type ChatQuota struct {
	client *redis.Client
	window time.Duration
}

// NewChatQuota creates a ChatQuota whose counters expire window after the
// last accepted turn. A non-positive window falls back to 30 days.
func NewChatQuota(client *redis.Client, window time.Duration) *ChatQuota {
	if window <= 0 {
		window = defaultQuotaWindow
	}
	return &ChatQuota{client: client, window: window}
}

var _ ports.ChatQuota = (*ChatQuota)(nil)

func (q *ChatQuota) Consume(ctx context.Context, subject string, limit int) (int, error) {
	res, err := consumeScript.Run(ctx, q.client, []string{q.key(subject)}, limit, q.window.Milliseconds()).Int64Slice()
	if err != nil {
		return 0, fmt.Errorf("chat quota consume: %w", err)
	}
	if len(res) != 2 {
		return 0, fmt.Errorf("chat quota consume: unexpected reply %v", res)
	}
	if res[0] == 0 {
		return int(res[1]), domain.ErrChatQuotaExceeded
	}
	return int(res[1]), nil
}

func (q *ChatQuota) Used(ctx context.Context, subject string) (int, error) {
	n, err := q.client.Get(ctx, q.key(subject)).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("chat quota used: %w", err)
	}
	return n, nil
}

func (q *ChatQuota) key(subject string) string {
	return "chatquota:" + subject
}
