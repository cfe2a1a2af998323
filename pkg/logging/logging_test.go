package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriter_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "warn")

	l.Info("dropped")
	assert.Zero(t, buf.Len())

	l.Warn("kept", "status", 409)
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "kept", entry["msg"])
	assert.EqualValues(t, 409, entry["status"])
}

func TestContextCarrier(t *testing.T) {
	assert.Same(t, slog.Default(), FromContext(context.Background()))

	l := NewWithWriter(&bytes.Buffer{}, "info")
	ctx := IntoContext(context.Background(), l)
	assert.Same(t, l, FromContext(ctx))
}
