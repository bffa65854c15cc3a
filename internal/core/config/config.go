package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"

	"github.com/guiyumin/streamscribe/internal/core/errs"
)

const (
	ConfigFileName = "config.yml"
	AppDirName     = "streamscribe"
)

// ConfigDir returns the config directory for streamscribe.
// Linux: $XDG_CONFIG_HOME/streamscribe (~/.config/streamscribe)
// macOS: ~/Library/Application Support/streamscribe
// Windows: %LOCALAPPDATA%\streamscribe
func ConfigDir() (string, error) {
	if xdg.ConfigHome == "" {
		return "", fmt.Errorf("cannot determine config home")
	}
	return filepath.Join(xdg.ConfigHome, AppDirName), nil
}

// ConfigPath returns the path to the config file. STREAMSCRIBE_CONFIG
// overrides the default location.
func ConfigPath() (string, error) {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return expandPath(p), nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ConfigFileName), nil
}

type Config struct {
	// Language of status messages ("zh" or "en")
	Language string `yaml:"language,omitempty"`

	// ForceTranscribe skips subtitle lookup and always transcribes audio
	ForceTranscribe bool `yaml:"force_transcribe"`

	Paths   PathsConfig   `yaml:"paths"`
	Network NetworkConfig `yaml:"network,omitempty"`
	Whisper WhisperConfig `yaml:"whisper"`
	YouTube YouTubeConfig `yaml:"youtube,omitempty"`
	BBDown  BBDownConfig  `yaml:"bbdown"`
	Local   LocalConfig   `yaml:"local_files"`
	Retry   RetryConfig   `yaml:"retry,omitempty"`
	Server  ServerConfig  `yaml:"server,omitempty"`
}

// PathsConfig locates external tools and working directories.
type PathsConfig struct {
	YtDlp     string `yaml:"yt_dlp,omitempty"`
	BBDown    string `yaml:"bbdown,omitempty"`
	FFmpeg    string `yaml:"ffmpeg,omitempty"`
	FFprobe   string `yaml:"ffprobe,omitempty"`
	OutputDir string `yaml:"output_dir,omitempty"`
	TempDir   string `yaml:"temp_dir,omitempty"`
}

type NetworkConfig struct {
	// Proxy is passed to yt-dlp on every attempt but the last
	Proxy string `yaml:"proxy,omitempty"`
}

// WhisperConfig holds whisper-ctranslate2 settings.
type WhisperConfig struct {
	// Executable is the engine path. When empty it is derived from VenvPath,
	// then looked up on PATH.
	Executable string `yaml:"executable,omitempty"`
	VenvPath   string `yaml:"venv_path,omitempty"`

	Model         string `yaml:"model"`
	Language      string `yaml:"language,omitempty"` // "auto" lets the engine detect
	OutputFormat  string `yaml:"output_format"`
	InitialPrompt string `yaml:"initial_prompt,omitempty"`
	Batched       bool   `yaml:"batched"`
	BatchSize     int    `yaml:"batch_size,omitempty"`
	// ComputeType overrides the profile derived from the model name
	ComputeType string        `yaml:"compute_type,omitempty"`
	VADFilter   bool          `yaml:"vad_filter"`
	Device      string        `yaml:"device,omitempty"` // cpu, cuda or auto
	DeviceIndex int           `yaml:"device_index,omitempty"`
	Timeout     time.Duration `yaml:"timeout,omitempty"`
}

// YouTubeConfig holds yt-dlp request settings.
type YouTubeConfig struct {
	UserAgent     string `yaml:"user_agent,omitempty"`
	Referer       string `yaml:"referer,omitempty"`
	ExtractorArgs string `yaml:"extractor_args,omitempty"`
	// SleepRequests is the pause yt-dlp takes between requests, in seconds
	SleepRequests int `yaml:"sleep_requests,omitempty"`
}

type BBDownConfig struct {
	DownloadSubtitle bool `yaml:"download_subtitle"`
}

// LocalConfig controls local media files.
type LocalConfig struct {
	AudioFormats  []string `yaml:"audio_formats,omitempty"`
	VideoFormats  []string `yaml:"video_formats,omitempty"`
	MaxBatchFiles int      `yaml:"max_batch_files,omitempty"`
	// EmbeddedFFmpeg extracts audio with a bundled WebAssembly ffmpeg when
	// no ffmpeg binary is installed
	EmbeddedFFmpeg bool `yaml:"embedded_ffmpeg"`
}

// Budget is one retry budget.
type Budget struct {
	Attempts int             `yaml:"attempts"`
	Delays   []time.Duration `yaml:"delays,flow"`
}

type RetryConfig struct {
	Metadata Budget `yaml:"metadata"`
	Download Budget `yaml:"download"`
	Listing  Budget `yaml:"listing"`
}

// ServerConfig holds HTTP server settings for `streamscribe serve`
type ServerConfig struct {
	Port int `yaml:"port,omitempty"`
	// APIKey for authentication (optional, if set all requests must include X-API-Key header)
	APIKey string `yaml:"api_key,omitempty"`
	// MaxQueued bounds jobs waiting for the worker
	MaxQueued int `yaml:"max_queued,omitempty"`
}

// DefaultOutputDir returns where transcripts go by default.
func DefaultOutputDir() string {
	if IsRunningInDocker() {
		return "/home/streamscribe/output"
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "./output"
	}
	switch runtime.GOOS {
	case "darwin", "windows":
		return filepath.Join(home, "Documents", "StreamScribe")
	default:
		return filepath.Join(home, "streamscribe")
	}
}

// DefaultTempDir returns the intermediate-file directory.
func DefaultTempDir() string {
	if IsRunningInDocker() {
		return "/tmp/streamscribe"
	}
	return filepath.Join(os.TempDir(), AppDirName)
}

// IsRunningInDocker detects if we're running inside a Docker container
func IsRunningInDocker() bool {
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}
	if data, err := os.ReadFile("/proc/1/cgroup"); err == nil {
		content := string(data)
		if strings.Contains(content, "docker") || strings.Contains(content, "containerd") {
			return true
		}
	}
	return os.Getenv("KUBERNETES_SERVICE_HOST") != ""
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Language: "zh",
		Paths: PathsConfig{
			YtDlp:     "yt-dlp",
			BBDown:    "BBDown",
			FFmpeg:    "ffmpeg",
			FFprobe:   "ffprobe",
			OutputDir: DefaultOutputDir(),
			TempDir:   DefaultTempDir(),
		},
		Whisper: WhisperConfig{
			Model:         "base",
			Language:      "auto",
			OutputFormat:  "txt",
			InitialPrompt: "以下是普通话的简体中文。",
			Batched:       true,
			BatchSize:     32,
			VADFilter:     true,
			Device:        "cpu",
			Timeout:       time.Hour,
		},
		YouTube: YouTubeConfig{
			UserAgent:     "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			Referer:       "https://www.youtube.com/",
			ExtractorArgs: "youtube:player_client=web,mweb",
		},
		BBDown: BBDownConfig{DownloadSubtitle: true},
		Local: LocalConfig{
			AudioFormats:  []string{"mp3", "wav", "m4a", "aac", "flac"},
			VideoFormats:  []string{"mp4", "avi", "mkv", "mov", "wmv"},
			MaxBatchFiles: 20,
		},
		Retry: RetryConfig{
			Metadata: Budget{Attempts: 3, Delays: []time.Duration{2 * time.Second, 5 * time.Second, 10 * time.Second}},
			Download: Budget{Attempts: 3, Delays: []time.Duration{5 * time.Second, 10 * time.Second, 20 * time.Second}},
			Listing:  Budget{Attempts: 2, Delays: []time.Duration{2 * time.Second, 5 * time.Second}},
		},
		Server: ServerConfig{Port: 8080, MaxQueued: 100},
	}
}

// Exists checks if config file exists
func Exists() bool {
	path, err := ConfigPath()
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// Load reads the config file and applies environment overrides.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	cfg, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads a config file on top of the defaults, so keys missing from
// the file keep their default values.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config file not found: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	cfg.expandPaths()
	return cfg, nil
}

func (c *Config) expandPaths() {
	c.Paths.OutputDir = expandPath(c.Paths.OutputDir)
	c.Paths.TempDir = expandPath(c.Paths.TempDir)
	c.Paths.YtDlp = expandPath(c.Paths.YtDlp)
	c.Paths.BBDown = expandPath(c.Paths.BBDown)
	c.Paths.FFmpeg = expandPath(c.Paths.FFmpeg)
	c.Paths.FFprobe = expandPath(c.Paths.FFprobe)
	c.Whisper.Executable = expandPath(c.Whisper.Executable)
	c.Whisper.VenvPath = expandPath(c.Whisper.VenvPath)
}

// expandPath expands the tilde (~) in the path to the user's home directory.
// It handles both forward and backward slashes to ensure cross-platform compatibility
// for configuration files.
func expandPath(path string) string {
	if path == "" {
		return ""
	}

	if strings.HasPrefix(path, "~") {
		if len(path) == 1 || path[1] == '/' || path[1] == '\\' {
			home, err := os.UserHomeDir()
			if err == nil {
				subPath := path[1:]
				if len(subPath) > 0 && (subPath[0] == '/' || subPath[0] == '\\') {
					subPath = subPath[1:]
				}
				return filepath.Join(home, subPath)
			}
		}
	}

	return path
}

// Save writes the config to the default location.
func Save(cfg *Config) error {
	configPath, err := ConfigPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}
	return SaveFile(configPath, cfg)
}

// SaveFile writes cfg to path with a header comment.
func SaveFile(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	header := "# streamscribe configuration file\n# Run 'streamscribe config init' to regenerate with defaults\n\n"
	return os.WriteFile(path, []byte(header+string(data)), 0644)
}

// SavePath returns the path where config will be saved
func SavePath() string {
	if path, err := ConfigPath(); err == nil {
		return path
	}
	return ConfigFileName
}

// Init creates a new config.yml with default values
func Init() error {
	if Exists() {
		path, _ := ConfigPath()
		return fmt.Errorf("%s already exists", path)
	}
	return Save(DefaultConfig())
}

// LoadOrDefault loads config if it exists, otherwise returns defaults with
// environment overrides applied.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		cfg = DefaultConfig()
		_ = cfg.ApplyEnv()
	}
	return cfg
}

var validFormats = map[string]bool{"txt": true, "srt": true, "vtt": true, "json": true, "tsv": true, "all": true}

// Validate reports settings the pipeline cannot run with. The returned error
// has kind errs.KindConfig.
func (c *Config) Validate() error {
	var problems []string
	if c.Paths.OutputDir == "" {
		problems = append(problems, "paths.output_dir is empty")
	}
	if c.Paths.TempDir == "" {
		problems = append(problems, "paths.temp_dir is empty")
	}
	if c.Whisper.Model == "" {
		problems = append(problems, "whisper.model is empty")
	}
	if !validFormats[c.Whisper.OutputFormat] {
		problems = append(problems, fmt.Sprintf("whisper.output_format %q is not one of txt, srt, vtt, json, tsv, all", c.Whisper.OutputFormat))
	}
	if c.Whisper.Batched && c.Whisper.BatchSize <= 0 {
		problems = append(problems, "whisper.batch_size must be positive when batched")
	}
	switch c.Whisper.Device {
	case "", "cpu", "cuda", "auto":
	default:
		problems = append(problems, fmt.Sprintf("whisper.device %q is not cpu, cuda or auto", c.Whisper.Device))
	}
	budgets := []struct {
		name string
		b    Budget
	}{{"metadata", c.Retry.Metadata}, {"download", c.Retry.Download}, {"listing", c.Retry.Listing}}
	for _, rb := range budgets {
		if rb.b.Attempts < 1 {
			problems = append(problems, fmt.Sprintf("retry.%s.attempts must be at least 1", rb.name))
		}
	}
	if len(problems) == 0 {
		return nil
	}
	return errs.New(errs.KindConfig, "config", "%s", strings.Join(problems, "; "))
}
