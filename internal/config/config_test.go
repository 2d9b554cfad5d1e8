package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, ``)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8475, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Server.LogLevel)
	assert.Equal(t, "./data", cfg.Server.DataDir)
	assert.False(t, cfg.Refresh.Enabled)
	assert.Zero(t, cfg.Refresh.Delay)
	assert.Empty(t, cfg.Refresh.MediaServers)
}

func TestLoad_FullConfig(t *testing.T) {
	path := writeConfig(t, `
[server]
host = "127.0.0.1"
port = 9000
log_level = "debug"
data_dir = "/var/lib/arrfresh"

[refresh]
enabled = true
delay = 5.5
mediaservers = ["plex-main", "emby-4k"]

[servers.plex-main]
type = "plex"
url = "http://localhost:32400"
token = "abc"

[servers.emby-4k]
type = "emby"
url = "http://localhost:8096"
token = "def"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.True(t, cfg.Refresh.Enabled)
	assert.Equal(t, 5500*time.Millisecond, cfg.Refresh.Delay.Duration())
	assert.Equal(t, []string{"plex-main", "emby-4k"}, cfg.Refresh.MediaServers)

	require.Len(t, cfg.Servers, 2)
	assert.Equal(t, "plex", cfg.Servers["plex-main"].Type)
	assert.Equal(t, "http://localhost:8096", cfg.Servers["emby-4k"].URL)
}

func TestLoad_DelayVariants(t *testing.T) {
	tests := []struct {
		name  string
		delay string
		want  time.Duration
	}{
		{"integer", `delay = 10`, 10 * time.Second},
		{"float", `delay = 2.5`, 2500 * time.Millisecond},
		{"numeric string", `delay = "7.5"`, 7500 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, "[refresh]\n"+tt.delay+"\n")
			cfg, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.Refresh.Delay.Duration())
		})
	}
}

func TestLoad_DelayInvalidString(t *testing.T) {
	path := writeConfig(t, "[refresh]\ndelay = \"soon\"\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_EnvSubstitution(t *testing.T) {
	t.Setenv("ARRFRESH_TEST_TOKEN", "secret-token")

	path := writeConfig(t, `
[servers.plex]
type = "plex"
url = "http://localhost:32400"
token = "${ARRFRESH_TEST_TOKEN}"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "secret-token", cfg.Servers["plex"].Token)
}

func TestLoad_EnvSubstitutionMissingVarLeftIntact(t *testing.T) {
	path := writeConfig(t, `
[servers.plex]
type = "plex"
url = "http://localhost:32400"
token = "${ARRFRESH_DOES_NOT_EXIST}"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "${ARRFRESH_DOES_NOT_EXIST}", cfg.Servers["plex"].Token)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "unknown server type",
			content: "[servers.x]\ntype = \"kodi\"\nurl = \"http://localhost\"\n",
			wantErr: "unknown type",
		},
		{
			name:    "missing url",
			content: "[servers.x]\ntype = \"plex\"\n",
			wantErr: "url is required",
		},
		{
			name:    "negative delay",
			content: "[refresh]\ndelay = -1\n",
			wantErr: "must not be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content)
			_, err := Load(path)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
