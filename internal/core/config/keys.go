package config

import (
	"fmt"
	"sort"
	"strconv"
)

type field struct {
	get   func(c *Config) string
	set   func(c *Config, v string) error
	unset func(c *Config)
}

func str(p func(c *Config) *string) field {
	return field{
		get:   func(c *Config) string { return *p(c) },
		set:   func(c *Config, v string) error { *p(c) = v; return nil },
		unset: func(c *Config) { *p(c) = "" },
	}
}

func boolean(p func(c *Config) *bool) field {
	return field{
		get: func(c *Config) string { return strconv.FormatBool(*p(c)) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid boolean: %s", v)
			}
			*p(c) = b
			return nil
		},
		unset: func(c *Config) { *p(c) = false },
	}
}

func integer(p func(c *Config) *int) field {
	return field{
		get: func(c *Config) string { return strconv.Itoa(*p(c)) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid number: %s", v)
			}
			*p(c) = n
			return nil
		},
		unset: func(c *Config) { *p(c) = 0 },
	}
}

var fields = map[string]field{
	"language":                    str(func(c *Config) *string { return &c.Language }),
	"force_transcribe":            boolean(func(c *Config) *bool { return &c.ForceTranscribe }),
	"paths.yt_dlp":                str(func(c *Config) *string { return &c.Paths.YtDlp }),
	"paths.bbdown":                str(func(c *Config) *string { return &c.Paths.BBDown }),
	"paths.ffmpeg":                str(func(c *Config) *string { return &c.Paths.FFmpeg }),
	"paths.ffprobe":               str(func(c *Config) *string { return &c.Paths.FFprobe }),
	"paths.output_dir":            str(func(c *Config) *string { return &c.Paths.OutputDir }),
	"paths.temp_dir":              str(func(c *Config) *string { return &c.Paths.TempDir }),
	"network.proxy":               str(func(c *Config) *string { return &c.Network.Proxy }),
	"whisper.executable":          str(func(c *Config) *string { return &c.Whisper.Executable }),
	"whisper.venv_path":           str(func(c *Config) *string { return &c.Whisper.VenvPath }),
	"whisper.model":               str(func(c *Config) *string { return &c.Whisper.Model }),
	"whisper.language":            str(func(c *Config) *string { return &c.Whisper.Language }),
	"whisper.output_format":       str(func(c *Config) *string { return &c.Whisper.OutputFormat }),
	"whisper.initial_prompt":      str(func(c *Config) *string { return &c.Whisper.InitialPrompt }),
	"whisper.batched":             boolean(func(c *Config) *bool { return &c.Whisper.Batched }),
	"whisper.batch_size":          integer(func(c *Config) *int { return &c.Whisper.BatchSize }),
	"whisper.compute_type":        str(func(c *Config) *string { return &c.Whisper.ComputeType }),
	"whisper.vad_filter":          boolean(func(c *Config) *bool { return &c.Whisper.VADFilter }),
	"whisper.device":              str(func(c *Config) *string { return &c.Whisper.Device }),
	"whisper.device_index":        integer(func(c *Config) *int { return &c.Whisper.DeviceIndex }),
	"bbdown.download_subtitle":    boolean(func(c *Config) *bool { return &c.BBDown.DownloadSubtitle }),
	"local_files.max_batch_files": integer(func(c *Config) *int { return &c.Local.MaxBatchFiles }),
	"local_files.embedded_ffmpeg": boolean(func(c *Config) *bool { return &c.Local.EmbeddedFFmpeg }),
	"server.port":                 integer(func(c *Config) *int { return &c.Server.Port }),
	"server.api_key":              str(func(c *Config) *string { return &c.Server.APIKey }),
}

// Keys lists the settable config keys in sorted order.
func Keys() []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Set assigns a config value by dotted key.
func (c *Config) Set(key, value string) error {
	f, ok := fields[key]
	if !ok {
		return fmt.Errorf("unknown config key: %s\nRun 'streamscribe config set --help' to see supported keys", key)
	}
	return f.set(c, value)
}

// Get returns a config value by dotted key.
func (c *Config) Get(key string) (string, error) {
	f, ok := fields[key]
	if !ok {
		return "", fmt.Errorf("unknown config key: %s\nRun 'streamscribe config get --help' to see supported keys", key)
	}
	return f.get(c), nil
}

// Unset clears a config value by dotted key.
func (c *Config) Unset(key string) error {
	f, ok := fields[key]
	if !ok {
		return fmt.Errorf("unknown config key: %s\nRun 'streamscribe config unset --help' to see supported keys", key)
	}
	f.unset(c)
	return nil
}
