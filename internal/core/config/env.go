package config

import (
	"fmt"
	"strconv"

	env "github.com/Netflix/go-env"
)

const EnvConfigPath = "STREAMSCRIBE_CONFIG"

// Overrides are environment variables that take precedence over config.yml.
type Overrides struct {
	ConfigPath      string `env:"STREAMSCRIBE_CONFIG"`
	Language        string `env:"STREAMSCRIBE_LANG"`
	Proxy           string `env:"STREAMSCRIBE_PROXY"`
	OutputDir       string `env:"STREAMSCRIBE_OUTPUT_DIR"`
	TempDir         string `env:"STREAMSCRIBE_TEMP_DIR"`
	YtDlp           string `env:"STREAMSCRIBE_YTDLP"`
	BBDown          string `env:"STREAMSCRIBE_BBDOWN"`
	FFmpeg          string `env:"STREAMSCRIBE_FFMPEG"`
	WhisperExe      string `env:"STREAMSCRIBE_WHISPER_EXE"`
	WhisperModel    string `env:"STREAMSCRIBE_WHISPER_MODEL"`
	WhisperDevice   string `env:"STREAMSCRIBE_WHISPER_DEVICE"`
	ForceTranscribe string `env:"STREAMSCRIBE_FORCE_TRANSCRIBE"`
	ServerAPIKey    string `env:"STREAMSCRIBE_API_KEY"`
}

// ApplyEnv overlays STREAMSCRIBE_* variables onto c.
func (c *Config) ApplyEnv() error {
	var o Overrides
	if _, err := env.UnmarshalFromEnviron(&o); err != nil {
		return fmt.Errorf("read environment: %w", err)
	}
	return c.Apply(o)
}

// Apply copies every non-empty override onto c.
func (c *Config) Apply(o Overrides) error {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = expandPath(v)
		}
	}
	set(&c.Language, o.Language)
	set(&c.Network.Proxy, o.Proxy)
	set(&c.Paths.OutputDir, o.OutputDir)
	set(&c.Paths.TempDir, o.TempDir)
	set(&c.Paths.YtDlp, o.YtDlp)
	set(&c.Paths.BBDown, o.BBDown)
	set(&c.Paths.FFmpeg, o.FFmpeg)
	set(&c.Whisper.Executable, o.WhisperExe)
	set(&c.Whisper.Model, o.WhisperModel)
	set(&c.Whisper.Device, o.WhisperDevice)
	set(&c.Server.APIKey, o.ServerAPIKey)
	if o.ForceTranscribe != "" {
		b, err := strconv.ParseBool(o.ForceTranscribe)
		if err != nil {
			return fmt.Errorf("STREAMSCRIBE_FORCE_TRANSCRIBE: %w", err)
		}
		c.ForceTranscribe = b
	}
	return nil
}
