package logger

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComponentLoggerFollowsInitialize(t *testing.T) {
	componentLog := GetForComponent("ledger")

	var buf bytes.Buffer
	InitializeWithWriter("debug", &buf)
	t.Cleanup(func() { InitializeWithWriter("info", io.Discard) })

	componentLog.Info().Str("txId", "abc").Msg("Deposit committed")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "ledger", entry["component"])
	assert.Equal(t, "abc", entry["txId"])
	assert.Equal(t, "Deposit committed", entry["message"])
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"trace":   zerolog.TraceLevel,
		"debug":   zerolog.DebugLevel,
		"warn":    zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"":        zerolog.InfoLevel,
		"verbose": zerolog.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestInitializeWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault.log")
	require.NoError(t, InitializeWithFile("info", path))
	t.Cleanup(func() { InitializeWithWriter("info", io.Discard) })

	keeperLog := GetForComponent("keeper")
	keeperLog.Info().Int("cycle", 3).Msg("Cycle complete")

	bz, err := os.ReadFile(path)
	require.NoError(t, err)
	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(bz), &entry))
	assert.Equal(t, "keeper", entry["component"])
	assert.Equal(t, float64(3), entry["cycle"])

	assert.Error(t, InitializeWithFile("info", filepath.Join(t.TempDir(), "missing", "vault.log")))
}
