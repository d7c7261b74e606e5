package observability_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/PabloGalante/farum-therapy/internal/observability"
)

func TestSetLevel(t *testing.T) {
	t.Cleanup(func() { observability.SetLevel("info") })

	observability.SetLevel("debug")
	assert.True(t, observability.Logger().Enabled(context.Background(), slog.LevelDebug))

	observability.SetLevel("error")
	assert.False(t, observability.Logger().Enabled(context.Background(), slog.LevelWarn))

	observability.SetLevel("nonsense")
	assert.True(t, observability.Logger().Enabled(context.Background(), slog.LevelInfo))
	assert.False(t, observability.Logger().Enabled(context.Background(), slog.LevelDebug))
}

func TestLoggerFromContext(t *testing.T) {
	ctx := observability.WithRequestID(context.Background(), "req-1")
	ctx = observability.WithSessionID(ctx, "sess-1")
	assert.NotSame(t, observability.Logger(), observability.LoggerFromContext(ctx))
	assert.Same(t, observability.Logger(), observability.LoggerFromContext(context.Background()))
}
