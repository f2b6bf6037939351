package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, false, "json")

	l.Debug("hidden")
	Info("fetched", "source", "newsapi", "count", 3)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "fetched", rec["msg"])
	assert.Equal(t, "newsapi", rec["source"])
	assert.Equal(t, l, slog.Default())
}

func TestNewTextDebug(t *testing.T) {
	var buf bytes.Buffer
	NewWithWriter(&buf, true, "text")

	Debug("cache miss", "key", "ai-world-all")
	assert.Contains(t, buf.String(), "level=DEBUG")
	assert.Contains(t, buf.String(), "key=ai-world-all")
}
