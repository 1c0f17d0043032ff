package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/frenetico9/Navalha.Digital/internal/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	appCfg := config.AppConfig{Name: "navalha", Environment: "test", Version: "1.0.0"}

	t.Run("DefaultStdout", func(t *testing.T) {
		logger, closer, err := New(config.LoggingConfig{Level: "info"}, appCfg)
		require.NoError(t, err)
		assert.NotNil(t, logger)
		assert.Nil(t, closer)
	})

	t.Run("Console", func(t *testing.T) {
		cfg := config.LoggingConfig{Level: "warn", Output: "stderr", Format: "console"}
		logger, closer, err := New(cfg, appCfg)
		require.NoError(t, err)
		assert.NotNil(t, logger)
		assert.Nil(t, closer)
		assert.Equal(t, zerolog.WarnLevel, logger.GetLevel())
	})

	t.Run("File", func(t *testing.T) {
		logPath := filepath.Join(t.TempDir(), "navalha.log")
		cfg := config.LoggingConfig{Level: "debug", Output: "file", FilePath: logPath}
		logger, closer, err := New(cfg, appCfg)
		require.NoError(t, err)
		require.NotNil(t, closer)

		logger.Info().Str("shop_id", "s1").Msg("slots resolved")
		require.NoError(t, closer.Close())

		raw, err := os.ReadFile(logPath)
		require.NoError(t, err)

		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(bytes.TrimSpace(raw), &entry))
		assert.Equal(t, "navalha", entry["app"])
		assert.Equal(t, "test", entry["env"])
		assert.Equal(t, "s1", entry["shop_id"])
	})

	t.Run("FileMissingPath", func(t *testing.T) {
		_, _, err := New(config.LoggingConfig{Output: "file"}, appCfg)
		assert.Error(t, err)
	})

	t.Run("InvalidLevel", func(t *testing.T) {
		logger, _, err := New(config.LoggingConfig{Level: "invalid"}, appCfg)
		require.NoError(t, err)
		assert.Equal(t, zerolog.InfoLevel, logger.GetLevel())
	})
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	Component(&base, "availability").Info().Msg("hello")
	assert.Contains(t, buf.String(), `"component":"availability"`)

	assert.NotPanics(t, func() {
		Component(nil, "x").Info().Msg("dropped")
	})
}
