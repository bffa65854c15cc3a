package transcriber

import (
	"strconv"
	"strings"
	"time"

	"github.com/guiyumin/streamscribe/internal/core/config"
)

// Engine defaults.
const (
	ExecutableName = "whisper-ctranslate2"
	DefaultModel   = "base"
	DefaultFormat  = "txt"
	DefaultTimeout = time.Hour
	CPUDevice      = "cpu"
	CUDADevice     = "cuda"
	AutoDevice     = "auto"
)

// Settings are the engine options for a run.
type Settings struct {
	Executable    string
	VenvPath      string
	Model         string
	Language      string
	OutputFormat  string
	InitialPrompt string
	Batched       bool
	BatchSize     int
	ComputeType   string // empty derives it from Model
	VADFilter     bool
	Device        string
	DeviceIndex   int
	Timeout       time.Duration
}

// SettingsFrom copies the whisper section of the config.
func SettingsFrom(c config.WhisperConfig) Settings {
	return Settings{
		Executable:    c.Executable,
		VenvPath:      c.VenvPath,
		Model:         c.Model,
		Language:      c.Language,
		OutputFormat:  c.OutputFormat,
		InitialPrompt: c.InitialPrompt,
		Batched:       c.Batched,
		BatchSize:     c.BatchSize,
		ComputeType:   c.ComputeType,
		VADFilter:     c.VADFilter,
		Device:        c.Device,
		DeviceIndex:   c.DeviceIndex,
		Timeout:       c.Timeout,
	}
}

// computeTypes maps model names to CTranslate2 quantization.
var computeTypes = map[string]string{
	"tiny":     "int8",
	"base":     "int8",
	"small":    "int8_float16",
	"medium":   "float16",
	"large-v2": "float16",
	"large-v3": "float16",
}

// ComputeTypeFor returns the quantization profile for a model. Unknown
// models get int8, which runs everywhere.
func ComputeTypeFor(model string) string {
	if ct, ok := computeTypes[strings.ToLower(model)]; ok {
		return ct
	}
	return "int8"
}

// LanguageName maps a language code to the engine's language argument.
// "auto" and "" let the engine detect the language.
func LanguageName(code string) string {
	switch strings.ToLower(strings.TrimSpace(code)) {
	case "", "auto":
		return ""
	case "zh", "zh-hans", "zh-hant", "zh-cn", "zh-tw":
		return "Chinese"
	case "en":
		return "English"
	default:
		return code
	}
}

func (s Settings) model() string {
	if s.Model == "" {
		return DefaultModel
	}
	return s.Model
}

func (s Settings) format() string {
	if s.OutputFormat == "" {
		return DefaultFormat
	}
	return s.OutputFormat
}

func (s Settings) computeType() string {
	if s.ComputeType != "" {
		return s.ComputeType
	}
	return ComputeTypeFor(s.model())
}

func (s Settings) timeout() time.Duration {
	if s.Timeout <= 0 {
		return DefaultTimeout
	}
	return s.Timeout
}

// BuildArgs constructs the engine arguments for one audio file.
func BuildArgs(s Settings, audioPath, outputDir string) []string {
	args := make([]string, 0, 24)
	args = append(args,
		audioPath,
		"--model", s.model(),
		"--output_format", s.format(),
		"--output_dir", outputDir,
	)
	if s.Batched && s.BatchSize > 0 {
		args = append(args, "--batched", "True", "--batch_size", strconv.Itoa(s.BatchSize))
	}
	args = append(args, "--compute_type", s.computeType())
	if s.VADFilter {
		args = append(args, "--vad_filter", "True")
	}
	if s.Device != "" && s.Device != AutoDevice {
		args = append(args, "--device", s.Device)
		if s.Device == CUDADevice {
			args = append(args, "--device_index", strconv.Itoa(s.DeviceIndex))
		}
	}
	if lang := LanguageName(s.Language); lang != "" {
		args = append(args, "--language", lang)
	}
	if s.InitialPrompt != "" {
		args = append(args, "--initial_prompt", s.InitialPrompt)
	}
	return args
}
