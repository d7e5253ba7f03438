package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "app.log")

	logger, err := New(Config{
		Level:  LevelInfo,
		Format: FormatJSON,
		Output: path,
	})
	require.NoError(t, err)

	logger.Info("scan started", "target", "8.8.8.8")

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(string(data))), &entry))
	assert.Equal(t, "scan started", entry["msg"])
	assert.Equal(t, "8.8.8.8", entry["target"])
	assert.Equal(t, "INFO", entry["level"])
}

func TestLevelFiltering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")

	logger, err := New(Config{
		Level:  LevelWarn,
		Format: FormatText,
		Output: path,
	})
	require.NoError(t, err)

	logger.Info("should be filtered")
	logger.Warn("should appear")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "should be filtered")
	assert.Contains(t, string(data), "should appear")
}

func TestUnknownLevelDefaultsToInfo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")

	logger, err := New(Config{
		Level:  "chatty",
		Format: FormatText,
		Output: path,
	})
	require.NoError(t, err)

	logger.Debug("debug suppressed")
	logger.Info("info emitted")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "debug suppressed")
	assert.Contains(t, string(data), "info emitted")
}

func TestDomainHelpers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")

	logger, err := New(Config{
		Level:  LevelDebug,
		Format: FormatJSON,
		Output: path,
	})
	require.NoError(t, err)

	logger.InfoScan("scan done", "example.com", "hops", 5)
	logger.WarnMonitor("tick skipped")
	logger.WarnParser("line discarded", "line", "garbage")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)

	var scan map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &scan))
	assert.Equal(t, "example.com", scan["target"])
	assert.Equal(t, float64(5), scan["hops"])

	var mon map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &mon))
	assert.Equal(t, "monitor", mon["component"])

	var parser map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[2]), &parser))
	assert.Equal(t, "parser", parser["component"])
}

func TestWithHelpers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")

	logger, err := New(Config{
		Level:  LevelInfo,
		Format: FormatJSON,
		Output: path,
	})
	require.NoError(t, err)

	logger.WithComponent("executor").WithTarget("8.8.8.8").Info("running")

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(string(data))), &entry))
	assert.Equal(t, "executor", entry["component"])
	assert.Equal(t, "8.8.8.8", entry["target"])
}

func TestSetDefault(t *testing.T) {
	original := Default()
	defer SetDefault(original)

	path := filepath.Join(t.TempDir(), "app.log")
	logger, err := New(Config{Level: LevelInfo, Format: FormatText, Output: path})
	require.NoError(t, err)

	SetDefault(logger)
	assert.Same(t, logger, Default())

	Info("via package-level helper")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "via package-level helper")
}
