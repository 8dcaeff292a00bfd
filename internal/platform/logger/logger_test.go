package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"certledger/internal/platform/config"
)

func TestNewWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, config.LoggingConfig{Level: "warn", Format: "json"})

	log.Info("dropped")
	log.Warn("kept", "certificate_hash", "0xabc")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "kept", entry["msg"])
	assert.Equal(t, "certledger", entry["service"])
	assert.Equal(t, "0xabc", entry["certificate_hash"])
}

func TestNewWithWriter_Text(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, config.LoggingConfig{Level: "debug", Format: "text"})
	log.Debug("hello")
	assert.Contains(t, buf.String(), "msg=hello")
}
