package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guiyumin/streamscribe/internal/core/errs"
)

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "Empty path",
			input:    "",
			expected: "",
		},
		{
			name:     "Absolute path",
			input:    "/absolute/path",
			expected: "/absolute/path",
		},
		{
			name:     "Relative path",
			input:    "relative/path",
			expected: "relative/path",
		},
		{
			name:     "Home directory only",
			input:    "~",
			expected: home,
		},
		{
			name:     "Home directory with forward slash",
			input:    "~/Downloads",
			expected: filepath.Join(home, "Downloads"),
		},
		{
			name:     "Home directory with backslash (simulated)",
			input:    `~\Downloads`,
			expected: filepath.Join(home, "Downloads"),
		},
		{
			name:     "Invalid tilde use (middle)",
			input:    "/path/~/test",
			expected: "/path/~/test",
		},
		{
			name:     "Invalid tilde use (no separator)",
			input:    "~user",
			expected: "~user", // We don't support ~user expansion currently
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := expandPath(tt.input)
			if got != tt.expected {
				t.Errorf("expandPath(%q) = %q; want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestLoadFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	yml := `
force_transcribe: true
paths:
  output_dir: ~/transcripts
whisper:
  model: large-v3
  device: cuda
retry:
  download:
    attempts: 5
    delays: [1s, 3s]
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	home, _ := os.UserHomeDir()
	assert.True(t, cfg.ForceTranscribe)
	assert.Equal(t, filepath.Join(home, "transcripts"), cfg.Paths.OutputDir)
	assert.Equal(t, "large-v3", cfg.Whisper.Model)
	assert.Equal(t, "cuda", cfg.Whisper.Device)
	assert.Equal(t, 5, cfg.Retry.Download.Attempts)
	assert.Equal(t, []time.Duration{time.Second, 3 * time.Second}, cfg.Retry.Download.Delays)

	// untouched keys keep their defaults
	assert.Equal(t, "txt", cfg.Whisper.OutputFormat)
	assert.Equal(t, 32, cfg.Whisper.BatchSize)
	assert.True(t, cfg.BBDown.DownloadSubtitle)
	assert.Equal(t, 2, cfg.Retry.Listing.Attempts)
	assert.Equal(t, "yt-dlp", cfg.Paths.YtDlp)
}

func TestSaveFileThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yml")
	cfg := DefaultConfig()
	cfg.Network.Proxy = "http://127.0.0.1:7890"
	require.NoError(t, SaveFile(path, cfg))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# streamscribe configuration file")

	loaded, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:7890", loaded.Network.Proxy)
	assert.Equal(t, time.Hour, loaded.Whisper.Timeout)
}

func TestConfigPathFromEnv(t *testing.T) {
	t.Setenv(EnvConfigPath, "/etc/streamscribe.yml")
	p, err := ConfigPath()
	require.NoError(t, err)
	assert.Equal(t, "/etc/streamscribe.yml", p)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("STREAMSCRIBE_PROXY", "socks5://proxy:1080")
	t.Setenv("STREAMSCRIBE_WHISPER_MODEL", "small")
	t.Setenv("STREAMSCRIBE_FORCE_TRANSCRIBE", "true")

	cfg := DefaultConfig()
	require.NoError(t, cfg.ApplyEnv())
	assert.Equal(t, "socks5://proxy:1080", cfg.Network.Proxy)
	assert.Equal(t, "small", cfg.Whisper.Model)
	assert.True(t, cfg.ForceTranscribe)
	assert.Equal(t, "cpu", cfg.Whisper.Device)
}

func TestApplyRejectsBadBool(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.Apply(Overrides{ForceTranscribe: "maybe"})
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"defaults", func(c *Config) {}, ""},
		{"no output dir", func(c *Config) { c.Paths.OutputDir = "" }, "paths.output_dir"},
		{"bad format", func(c *Config) { c.Whisper.OutputFormat = "docx" }, "whisper.output_format"},
		{"bad device", func(c *Config) { c.Whisper.Device = "tpu" }, "whisper.device"},
		{"batched without size", func(c *Config) { c.Whisper.BatchSize = 0 }, "whisper.batch_size"},
		{"zero attempts", func(c *Config) { c.Retry.Listing.Attempts = 0 }, "retry.listing.attempts"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.want == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errs.Is(err, errs.KindConfig))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestSetGetUnset(t *testing.T) {
	cfg := DefaultConfig()

	require.NoError(t, cfg.Set("whisper.model", "medium"))
	require.NoError(t, cfg.Set("whisper.batch_size", "16"))
	require.NoError(t, cfg.Set("bbdown.download_subtitle", "false"))

	v, err := cfg.Get("whisper.model")
	require.NoError(t, err)
	assert.Equal(t, "medium", v)
	assert.Equal(t, 16, cfg.Whisper.BatchSize)
	assert.False(t, cfg.BBDown.DownloadSubtitle)

	assert.Error(t, cfg.Set("whisper.batch_size", "many"))
	assert.Error(t, cfg.Set("no.such.key", "x"))

	require.NoError(t, cfg.Unset("whisper.model"))
	assert.Equal(t, "", cfg.Whisper.Model)
	assert.Contains(t, Keys(), "network.proxy")
}
