package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, int64(2048), cfg.Gentext.MaxTokens)
	assert.Equal(t, 2, cfg.Pipeline.StructureMaxAttempts)
	assert.Equal(t, 3, cfg.Pipeline.PersistMaxAttempts)
	assert.Equal(t, "document", cfg.Pipeline.Buckets["phc-document-uploads"])
	assert.Equal(t, "audio", cfg.Pipeline.Buckets["phc-audio-uploads"])
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("CAPTURE_STORE_DRIVER", "postgres")
	t.Setenv("CAPTURE_SERVER_PORT", "9090")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestPipelineConfig_Timeouts(t *testing.T) {
	cfg := PipelineConfig{
		ExtractTimeoutSecs:   120,
		StructureTimeoutSecs: 90,
		PersistTimeoutSecs:   15,
	}
	assert.Equal(t, 2*time.Minute, cfg.ExtractTimeout())
	assert.Equal(t, 90*time.Second, cfg.StructureTimeout())
	assert.Equal(t, 15*time.Second, cfg.PersistTimeout())
}

func TestInitLogger(t *testing.T) {
	assert.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.Error(t, InitLogger(LogConfig{Level: "not-a-level"}))
}
