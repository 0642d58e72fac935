package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := newJSON("sacco", "warn", &buf)

	l.Debug("hidden", nil)
	l.Info("hidden", nil)
	l.Warn("shown", map[string]interface{}{"loan_id": "L1"})
	l.Error("failed", map[string]interface{}{"error": errors.New("boom")})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "sacco", entry["service"])
	assert.Equal(t, "L1", entry["loan_id"])

	require.NoError(t, json.Unmarshal([]byte(lines[1]), &entry))
	assert.Equal(t, "boom", entry["error"])
}

func TestUnknownLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	l := newJSON("sacco", "verbose", &buf)

	l.Debug("hidden", nil)
	l.Info("shown", nil)

	assert.Equal(t, 1, strings.Count(buf.String(), "\n"))
}
