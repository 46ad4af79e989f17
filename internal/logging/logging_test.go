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

func TestNewWithWriter_Levels(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := NewWithWriter(&buf, "warn")
	l.Info("dropped")
	l.Warn("kept", "handler", "auth_login")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "kept", entry["msg"])
	assert.Equal(t, "auth_login", entry["handler"])
}

func TestContextRoundTrip(t *testing.T) {
	t.Parallel()

	assert.Same(t, slog.Default(), FromContext(context.Background()))

	l := NewWithWriter(&bytes.Buffer{}, "info")
	ctx := IntoContext(context.Background(), l)
	assert.Same(t, l, FromContext(ctx))
}
