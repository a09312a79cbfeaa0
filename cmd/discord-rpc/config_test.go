package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zereker/discordrpc"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "discord-rpc.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "ipc", cfg.Transport)
	assert.Equal(t, 10*time.Second, cfg.ConnectTimeout)
	assert.Equal(t, "info", cfg.Logger.Level)
}

func TestLoad_MissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "ipc", cfg.Transport)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
client_id: "180984871685062656"
transport: websocket
connect_timeout: 3s
origin: https://example.com
logger:
  level: debug
  format: json
activity:
  state: In a match
  details: Ranked
  large_image_key: map
  timestamp: true
  buttons:
    - label: Watch
      url: https://example.com/watch
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "180984871685062656", cfg.ClientID)
	assert.Equal(t, "websocket", cfg.Transport)
	assert.Equal(t, 3*time.Second, cfg.ConnectTimeout)
	assert.Equal(t, "https://example.com", cfg.Origin)
	assert.Equal(t, "json", cfg.Logger.Format)
	assert.Equal(t, "In a match", cfg.Activity.State)
	assert.Equal(t, []discordrpc.Button{{Label: "Watch", URL: "https://example.com/watch"}}, cfg.Activity.Buttons)

	now := time.Now()
	act := cfg.Activity.activity(now)
	assert.Equal(t, "Ranked", act.Details)
	assert.Equal(t, now, act.StartTimestamp)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "client_id: \"1\"\n")
	t.Setenv("DISCORDRPC_CLIENT_ID", "2")
	t.Setenv("DISCORDRPC_TRANSPORT", "websocket")
	t.Setenv("DISCORDRPC_LOG_LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "2", cfg.ClientID)
	assert.Equal(t, "websocket", cfg.Transport)
	assert.Equal(t, "warn", cfg.Logger.Level)
}

func TestLoad_Invalid(t *testing.T) {
	_, err := Load(writeConfig(t, "transport: smoke-signals\n"))
	assert.True(t, errors.Is(err, discordrpc.ErrInvalidTransport))

	_, err = Load(writeConfig(t, "logger:\n  level: loud\n"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "logger:\n  format: xml\n"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "client_id: [\n"))
	assert.Error(t, err)
}

func TestLoggerConfig_NewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := LoggerConfig{Level: "warn", Format: "json"}.NewLogger(&buf)
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown", "key", "value")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
	assert.Contains(t, buf.String(), `"key":"value"`)
}

func TestVersionCmd(t *testing.T) {
	var out bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version", "--short"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, version+"\n", out.String())
}

func TestPingCmd_RequiresClientID(t *testing.T) {
	t.Setenv("DISCORDRPC_CLIENT_ID", "")
	cmd := rootCmd()
	cmd.SetArgs([]string{"ping"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "client id is required")
}
