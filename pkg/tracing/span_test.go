package tracing

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/querydedup/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpanTree(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })

	ctx := logger.WithRequestID(context.Background(), "req-1")
	ctx, root := Start(ctx, "analyze")
	_, child := Start(ctx, "compute")
	child.SetAttr("pairs", 3)
	child.End()

	require.Len(t, root.Children, 1)
	assert.Equal(t, "req-1", child.TraceID)
	assert.Same(t, root, FromContext(ctx))
	assert.Empty(t, buf.String(), "children do not log on their own")

	root.End()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "span=analyze")
	assert.Contains(t, lines[1], "span=compute")
	assert.Contains(t, lines[1], "pairs=3")
	assert.Contains(t, lines[1], "depth=1")
}
