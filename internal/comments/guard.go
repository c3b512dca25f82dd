package comments

import (
	"context"
	"strconv"

	"go.uber.org/zap"

	"github.com/neoground/charm-blog/internal/kv"
)

// attemptsKeyPrefix is shared with the generic login-attempt guard so abusive
// commenters and brute-force logins count against the same ceiling.
const attemptsKeyPrefix = "login_attempts_"

// DefaultMaxAttempts is the abuse-counter ceiling.
const DefaultMaxAttempts = 20

// Guard tracks failed submissions per IP in the kv store.
type Guard struct {
	store  kv.Store
	max    int
	logger *zap.Logger
}

func NewGuard(store kv.Store, max int, logger *zap.Logger) *Guard {
	if max <= 0 {
		max = DefaultMaxAttempts
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Guard{store: store, max: max, logger: logger}
}

// Exceeded reports whether the IP has hit the ceiling. A store failure
// counts as not exceeded so the flow degrades instead of locking everyone
// out.
func (g *Guard) Exceeded(ctx context.Context, ip string) bool {
	value, err := g.store.Get(ctx, attemptsKeyPrefix+ip)
	if err != nil {
		if err != kv.ErrNoKey {
			g.logger.Warn("abuse counter lookup failed", zap.Error(err))
		}
		return false
	}
	count, err := strconv.Atoi(value)
	if err != nil {
		return false
	}
	return count >= g.max
}

// Record counts one failed attempt against the IP.
func (g *Guard) Record(ctx context.Context, ip string) {
	count := 0
	if value, err := g.store.Get(ctx, attemptsKeyPrefix+ip); err == nil {
		count, _ = strconv.Atoi(value)
	}
	if err := g.store.Set(ctx, attemptsKeyPrefix+ip, strconv.Itoa(count+1)); err != nil {
		g.logger.Warn("failed to record abuse attempt", zap.Error(err))
	}
}
