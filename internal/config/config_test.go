package config

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, SinkLog, cfg.Sink)
	assert.False(t, cfg.AuthRequired)
	assert.Equal(t, 800.0, cfg.PageWidth)
	assert.Equal(t, []string{"http://localhost:5173", "http://localhost:3000"}, cfg.Origins())
	assert.Equal(t, []string{"localhost:5173", "localhost:3000"}, cfg.OriginHosts())
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("SINK", "sqlite")
	t.Setenv("AUTH_REQUIRED", "true")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("ALLOWED_ORIGINS", " https://viewer.example.com ,")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, SinkSQLite, cfg.Sink)
	assert.True(t, cfg.AuthRequired)
	assert.Equal(t, []string{"viewer.example.com"}, cfg.OriginHosts())

	level, err := ParseLevel(cfg.LogLevel)
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string][2]string{
		"unknown sink": {"SINK", "redis"},
		"bad level":    {"LOG_LEVEL", "loud"},
		"bad width":    {"PAGE_WIDTH", "-1"},
		"not a number": {"PORT", "eighty"},
	}
	for name, kv := range tests {
		t.Run(name, func(t *testing.T) {
			t.Setenv(kv[0], kv[1])
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
