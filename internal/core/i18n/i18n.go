package i18n

import (
	"embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yml
var localesFS embed.FS

// Translations holds all translation strings organized by section
type Translations struct {
	Progress ProgressTranslations `yaml:"progress"`
	Summary  SummaryTranslations  `yaml:"summary"`
	Doctor   DoctorTranslations   `yaml:"doctor"`
	Errors   ErrorTranslations    `yaml:"errors"`
	Server   ServerTranslations   `yaml:"server"`
}

// ProgressTranslations are the status lines sent to the progress sink.
// Entries with verbs are fmt formats.
type ProgressTranslations struct {
	Start             string `yaml:"start"`
	Platform          string `yaml:"platform"`
	FetchingInfo      string `yaml:"fetching_info"`
	Title             string `yaml:"title"`
	ForceTranscribe   string `yaml:"force_transcribe"`
	CheckingSubtitles string `yaml:"checking_subtitles"`
	SubtitleFound     string `yaml:"subtitle_found"`
	NoSubtitle        string `yaml:"no_subtitle"`
	DownloadingAudio  string `yaml:"downloading_audio"`
	Retrying          string `yaml:"retrying"`
	ExtractingAudio   string `yaml:"extracting_audio"`
	AudioReady        string `yaml:"audio_ready"`
	Transcribing      string `yaml:"transcribing"`
	Done              string `yaml:"done"`
	Failed            string `yaml:"failed"`
	BatchItem         string `yaml:"batch_item"`
	Cancelled         string `yaml:"cancelled"`
}

type SummaryTranslations struct {
	Title         string `yaml:"title"`
	Input         string `yaml:"input"`
	Platform      string `yaml:"platform"`
	Method        string `yaml:"method"`
	Result        string `yaml:"result"`
	Transcript    string `yaml:"transcript"`
	Total         string `yaml:"total"`
	Succeeded     string `yaml:"succeeded"`
	Failed        string `yaml:"failed"`
	Subtitle      string `yaml:"subtitle"`
	Transcription string `yaml:"transcription"`
	Speed         string `yaml:"speed"`
}

type DoctorTranslations struct {
	Tool      string `yaml:"tool"`
	Path      string `yaml:"path"`
	Status    string `yaml:"status"`
	Found     string `yaml:"found"`
	Missing   string `yaml:"missing"`
	Optional  string `yaml:"optional"`
	AllGood   string `yaml:"all_good"`
	SomeIssue string `yaml:"some_issue"`
}

type ErrorTranslations struct {
	Unsupported    string `yaml:"unsupported"`
	FileNotFound   string `yaml:"file_not_found"`
	BadFormat      string `yaml:"bad_format"`
	BatchLimit     string `yaml:"batch_limit"`
	ConfigNotFound string `yaml:"config_not_found"`
	NoInputs       string `yaml:"no_inputs"`
}

// ServerTranslations holds translations for server messages
type ServerTranslations struct {
	NoConfigWarning string `yaml:"no_config_warning" json:"no_config_warning"`
	RunInitHint     string `yaml:"run_init_hint" json:"run_init_hint"`
	QueueFull       string `yaml:"queue_full" json:"queue_full"`
	JobNotFound     string `yaml:"job_not_found" json:"job_not_found"`
}

var (
	translationsCache = make(map[string]*Translations)
	cacheMutex        sync.RWMutex
	defaultLang       = "zh"
)

// SupportedLanguages returns all available language codes
var SupportedLanguages = []struct {
	Code string
	Name string
}{
	{"zh", "中文"},
	{"en", "English"},
}

// GetTranslations returns translations for the specified language
func GetTranslations(lang string) *Translations {
	cacheMutex.RLock()
	if t, ok := translationsCache[lang]; ok {
		cacheMutex.RUnlock()
		return t
	}
	cacheMutex.RUnlock()

	t, err := loadTranslations(lang)
	if err != nil {
		if lang != defaultLang {
			return GetTranslations(defaultLang)
		}
		return &Translations{}
	}

	cacheMutex.Lock()
	translationsCache[lang] = t
	cacheMutex.Unlock()

	return t
}

func loadTranslations(lang string) (*Translations, error) {
	filename := fmt.Sprintf("locales/%s.yml", lang)
	data, err := localesFS.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	var t Translations
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, err
	}

	return &t, nil
}

// T is a convenience function for getting translations
func T(lang string) *Translations {
	return GetTranslations(lang)
}
