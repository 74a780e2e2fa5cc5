package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the namespace prefix for all panner environment variables.
const EnvPrefix = "PANNER_"

const (
	KJVSourceURL    = "https://openbible.com/textfiles/kjv.txt"
	SirachSourceURL = "https://www.earlyjewishwritings.com/text/sirach.html"
)

const (
	NarratorNone    = "none"
	NarratorCommand = "command"
	NarratorOpenAI  = "openai"
	NarratorGemini  = "gemini"
)

// Config holds all application configuration. Secrets are loaded
// exclusively from environment variables and never appear in the config file.
type Config struct {
	DBPath     string `yaml:"db_path" toml:"db_path"`
	ListenAddr string `yaml:"listen_addr" toml:"listen_addr"`

	MinMinutes       float64 `yaml:"min_minutes" toml:"min_minutes"`
	MaxMinutes       float64 `yaml:"max_minutes" toml:"max_minutes"`
	KeepDisplayAwake bool    `yaml:"keep_display_awake" toml:"keep_display_awake"`
	SelectionPolicy  string  `yaml:"selection_policy" toml:"selection_policy"`
	TextProbability  float64 `yaml:"text_probability" toml:"text_probability"`

	Locale          string `yaml:"locale" toml:"locale"`
	Narrator        string `yaml:"narrator" toml:"narrator"`
	NarratorCommand string `yaml:"narrator_command" toml:"narrator_command"`
	OpenAITTSModel  string `yaml:"openai_tts_model" toml:"openai_tts_model"`
	GeminiTTSModel  string `yaml:"gemini_tts_model" toml:"gemini_tts_model"`

	CorpusSources []string `yaml:"corpus_sources" toml:"corpus_sources"`
	CorpusFeeds   []string `yaml:"corpus_feeds" toml:"corpus_feeds"`

	MediaDirs         []string `yaml:"media_dirs" toml:"media_dirs"`
	MediaMinBytes     int64    `yaml:"media_min_bytes" toml:"media_min_bytes"`
	MediaSyncInterval string   `yaml:"media_sync_interval" toml:"media_sync_interval"`

	GDriveFolderID        string `yaml:"gdrive_folder_id" toml:"gdrive_folder_id"`
	GoogleCredentialsFile string `yaml:"google_credentials_file" toml:"google_credentials_file"`

	MQTTBroker   string `yaml:"mqtt_broker" toml:"mqtt_broker"`
	MQTTTopic    string `yaml:"mqtt_topic" toml:"mqtt_topic"`
	MQTTUsername string `yaml:"mqtt_username" toml:"mqtt_username"`

	JournalDir string `yaml:"journal_dir" toml:"journal_dir"`

	LogLevel  string `yaml:"log_level" toml:"log_level"`
	LogFormat string `yaml:"log_format" toml:"log_format"`

	// Secrets, env vars only.
	OpenAIAPIKey string `yaml:"-" toml:"-"`
	GeminiAPIKey string `yaml:"-" toml:"-"`
	MQTTPassword string `yaml:"-" toml:"-"`
}

func defaults() Config {
	return Config{
		DBPath:                "data/panner.db",
		ListenAddr:            "127.0.0.1:8080",
		MinMinutes:            1,
		MaxMinutes:            2,
		SelectionPolicy:       "proportional",
		TextProbability:       0.3,
		Locale:                "en-US",
		Narrator:              NarratorCommand,
		NarratorCommand:       "espeak-ng",
		OpenAITTSModel:        "tts-1",
		GeminiTTSModel:        "gemini-2.5-flash-preview-tts",
		CorpusSources:         []string{KJVSourceURL, SirachSourceURL},
		MediaMinBytes:         16384,
		MediaSyncInterval:     "10m",
		GoogleCredentialsFile: "./service-account.json",
		MQTTTopic:             "panner",
		LogLevel:              "info",
		LogFormat:             "console",
	}
}

// Load reads configuration from a YAML or TOML file (if it exists), applies
// environment variable overrides, loads secrets, and validates the result.
// Validation never rejects: out-of-range values are clamped and reported as
// warnings. An error is returned only when the file exists but cannot be
// read or parsed.
func Load(path string) (Config, []string, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, nil, fmt.Errorf("read config file: %w", err)
			}
		} else if err := decode(path, data, &cfg); err != nil {
			return cfg, nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	loadSecrets(&cfg)

	warnings := validate(&cfg)
	return cfg, warnings, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return toml.Unmarshal(data, cfg)
	default:
		return yaml.Unmarshal(data, cfg)
	}
}

// MinDelay returns the lower scheduling bound.
func (c *Config) MinDelay() time.Duration {
	return Minutes(c.MinMinutes)
}

// MaxDelay returns the upper scheduling bound, never below MinDelay.
func (c *Config) MaxDelay() time.Duration {
	return max(Minutes(c.MaxMinutes), c.MinDelay())
}

// ParsedMediaSyncInterval returns MediaSyncInterval as a time.Duration,
// falling back to 10m if the value is invalid.
func (c *Config) ParsedMediaSyncInterval() time.Duration {
	d, err := time.ParseDuration(c.MediaSyncInterval)
	if err != nil || d <= 0 {
		return 10 * time.Minute
	}
	return d
}

// Minutes converts fractional minutes to a Duration. Negative and NaN
// inputs give 0; values past the Duration range saturate at its maximum.
func Minutes(m float64) time.Duration {
	if m <= 0 || math.IsNaN(m) {
		return 0
	}
	ns := math.Round(m * float64(time.Minute))
	if ns >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(ns)
}

// ClampMinutes applies the same clamping as Load to a runtime schedule update.
func ClampMinutes(minM, maxM float64) (float64, float64) {
	if minM < 0 || math.IsNaN(minM) {
		minM = 0
	}
	if maxM < minM || math.IsNaN(maxM) {
		maxM = minM
	}
	return minM, maxM
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvPrefix + "DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv(EnvPrefix + "LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv(EnvPrefix + "MIN_MINUTES"); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			cfg.MinMinutes = f
		}
	}
	if v := os.Getenv(EnvPrefix + "MAX_MINUTES"); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			cfg.MaxMinutes = f
		}
	}
	if v := os.Getenv(EnvPrefix + "KEEP_DISPLAY_AWAKE"); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			cfg.KeepDisplayAwake = b
		}
	}
	if v := os.Getenv(EnvPrefix + "SELECTION_POLICY"); v != "" {
		cfg.SelectionPolicy = v
	}
	if v := os.Getenv(EnvPrefix + "TEXT_PROBABILITY"); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			cfg.TextProbability = f
		}
	}
	if v := os.Getenv(EnvPrefix + "LOCALE"); v != "" {
		cfg.Locale = v
	}
	if v := os.Getenv(EnvPrefix + "NARRATOR"); v != "" {
		cfg.Narrator = v
	}
	if v := os.Getenv(EnvPrefix + "NARRATOR_COMMAND"); v != "" {
		cfg.NarratorCommand = v
	}
	if v := os.Getenv(EnvPrefix + "OPENAI_TTS_MODEL"); v != "" {
		cfg.OpenAITTSModel = v
	}
	if v := os.Getenv(EnvPrefix + "GEMINI_TTS_MODEL"); v != "" {
		cfg.GeminiTTSModel = v
	}
	if v := os.Getenv(EnvPrefix + "CORPUS_SOURCES"); v != "" {
		cfg.CorpusSources = splitList(v)
	}
	if v := os.Getenv(EnvPrefix + "CORPUS_FEEDS"); v != "" {
		cfg.CorpusFeeds = splitList(v)
	}
	if v := os.Getenv(EnvPrefix + "MEDIA_DIRS"); v != "" {
		cfg.MediaDirs = splitList(v)
	}
	if v := os.Getenv(EnvPrefix + "MEDIA_MIN_BYTES"); v != "" {
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			cfg.MediaMinBytes = n
		}
	}
	if v := os.Getenv(EnvPrefix + "MEDIA_SYNC_INTERVAL"); v != "" {
		cfg.MediaSyncInterval = v
	}
	if v := os.Getenv(EnvPrefix + "GDRIVE_FOLDER_ID"); v != "" {
		cfg.GDriveFolderID = v
	}
	if v := os.Getenv(EnvPrefix + "GOOGLE_CREDENTIALS_FILE"); v != "" {
		cfg.GoogleCredentialsFile = v
	}
	if v := os.Getenv(EnvPrefix + "MQTT_BROKER"); v != "" {
		cfg.MQTTBroker = v
	}
	if v := os.Getenv(EnvPrefix + "MQTT_TOPIC"); v != "" {
		cfg.MQTTTopic = v
	}
	if v := os.Getenv(EnvPrefix + "MQTT_USERNAME"); v != "" {
		cfg.MQTTUsername = v
	}
	if v := os.Getenv(EnvPrefix + "JOURNAL_DIR"); v != "" {
		cfg.JournalDir = v
	}
	if v := os.Getenv(EnvPrefix + "LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv(EnvPrefix + "LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
}

func loadSecrets(cfg *Config) {
	cfg.OpenAIAPIKey = os.Getenv(EnvPrefix + "OPENAI_API_KEY")
	cfg.GeminiAPIKey = os.Getenv(EnvPrefix + "GEMINI_API_KEY")
	cfg.MQTTPassword = os.Getenv(EnvPrefix + "MQTT_PASSWORD")
}

func validate(cfg *Config) []string {
	var warnings []string

	minM, maxM := ClampMinutes(cfg.MinMinutes, cfg.MaxMinutes)
	if minM != cfg.MinMinutes {
		warnings = append(warnings, fmt.Sprintf("min_minutes %v is negative; using 0.", cfg.MinMinutes))
	}
	if maxM != cfg.MaxMinutes {
		warnings = append(warnings, fmt.Sprintf("max_minutes %v is below min_minutes; using %v.", cfg.MaxMinutes, maxM))
	}
	cfg.MinMinutes, cfg.MaxMinutes = minM, maxM

	switch strings.ToLower(strings.TrimSpace(cfg.SelectionPolicy)) {
	case "proportional", "fixed":
		cfg.SelectionPolicy = strings.ToLower(strings.TrimSpace(cfg.SelectionPolicy))
	default:
		warnings = append(warnings, fmt.Sprintf("Unknown selection_policy %q; using proportional.", cfg.SelectionPolicy))
		cfg.SelectionPolicy = "proportional"
	}

	if cfg.TextProbability < 0 || cfg.TextProbability > 1 || math.IsNaN(cfg.TextProbability) {
		warnings = append(warnings, fmt.Sprintf("text_probability %v is outside [0, 1]; using 0.3.", cfg.TextProbability))
		cfg.TextProbability = 0.3
	}

	if cfg.MediaMinBytes < 0 {
		warnings = append(warnings, "media_min_bytes is negative; using 16384.")
		cfg.MediaMinBytes = 16384
	}

	if d, err := time.ParseDuration(cfg.MediaSyncInterval); err != nil || d <= 0 {
		warnings = append(warnings, fmt.Sprintf("Invalid media_sync_interval %q; using default 10m.", cfg.MediaSyncInterval))
		cfg.MediaSyncInterval = "10m"
	}

	switch cfg.Narrator {
	case NarratorNone, NarratorCommand:
	case NarratorOpenAI:
		if cfg.OpenAIAPIKey == "" {
			warnings = append(warnings, "OpenAI API key not configured; falling back to the command narrator. Set "+EnvPrefix+"OPENAI_API_KEY.")
			cfg.Narrator = NarratorCommand
		}
	case NarratorGemini:
		if cfg.GeminiAPIKey == "" {
			warnings = append(warnings, "Gemini API key not configured; falling back to the command narrator. Set "+EnvPrefix+"GEMINI_API_KEY.")
			cfg.Narrator = NarratorCommand
		}
	default:
		warnings = append(warnings, fmt.Sprintf("Unknown narrator %q; using %s.", cfg.Narrator, NarratorCommand))
		cfg.Narrator = NarratorCommand
	}

	if len(cfg.MediaDirs) == 0 && cfg.GDriveFolderID == "" {
		warnings = append(warnings, "No media_dirs or gdrive_folder_id configured; only text will be presented.")
	}

	return warnings
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
