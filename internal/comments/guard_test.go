package comments

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/neoground/charm-blog/internal/kv"
)

func TestGuardCeiling(t *testing.T) {
	g := NewGuard(kv.NewMemory(), 2, zap.NewNop())
	ctx := context.Background()

	if g.Exceeded(ctx, "10.0.0.1") {
		t.Error("fresh ip reported as exceeded")
	}

	g.Record(ctx, "10.0.0.1")
	if g.Exceeded(ctx, "10.0.0.1") {
		t.Error("exceeded below ceiling")
	}

	g.Record(ctx, "10.0.0.1")
	if !g.Exceeded(ctx, "10.0.0.1") {
		t.Error("not exceeded at ceiling")
	}

	// Counters are tracked per ip.
	if g.Exceeded(ctx, "10.0.0.2") {
		t.Error("unrelated ip reported as exceeded")
	}
}

func TestGuardDefaultMax(t *testing.T) {
	g := NewGuard(kv.NewMemory(), 0, nil)
	if g.max != DefaultMaxAttempts {
		t.Errorf("max = %d, want %d", g.max, DefaultMaxAttempts)
	}
}
