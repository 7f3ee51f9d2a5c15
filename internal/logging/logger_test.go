package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithOutputWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithOutput("debug", &buf)

	logger.WithField("component", "dispatch").Info("tick finished")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "tick finished", entry["message"])
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "dispatch", entry["component"])
	assert.Contains(t, entry, "timestamp")
}

func TestNewUnknownLevelDefaultsToInfo(t *testing.T) {
	logger := NewWithOutput("chatty", &bytes.Buffer{})
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
}
