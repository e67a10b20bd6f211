// Package config loads runtime settings from the environment. A .env file
// in the working directory is read first when present.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds everything the client needs at startup.
type Config struct {
	// Inference service
	InferenceURL     string        `envconfig:"INFERENCE_URL" default:"http://localhost:5000/api/process-audio"`
	InferenceTimeout time.Duration `envconfig:"INFERENCE_TIMEOUT" default:"60s"`
	UploadFormat     string        `envconfig:"UPLOAD_FORMAT" default:"wav"` // wav or flac

	// Capture
	CaptureDevice string        `envconfig:"CAPTURE_DEVICE" default:""` // substring of the device name, empty = system default
	MaxRecording  time.Duration `envconfig:"MAX_RECORDING" default:"2m"`

	// Speech (Azure Cognitive Services)
	AzureSpeechKey    string   `envconfig:"AZURE_SPEECH_KEY" default:""`
	AzureSpeechRegion string   `envconfig:"AZURE_SPEECH_REGION" default:""`
	VoiceLocale       string   `envconfig:"VOICE_LOCALE" default:"en-US"`
	VoiceLabels       []string `envconfig:"VOICE_LABELS" default:"female,woman"`
	SpeechPitch       float64  `envconfig:"SPEECH_PITCH" default:"1"`
	SpeechRate        float64  `envconfig:"SPEECH_RATE" default:"1"`
	TTSCacheDir       string   `envconfig:"TTS_CACHE_DIR" default:".voiceask-cache"`
	TTSDiskCache      bool     `envconfig:"TTS_DISK_CACHE" default:"true"`

	// Observability
	LogFile     string `envconfig:"LOG_FILE" default:".voiceask-logs/voiceask.log"`
	MetricsAddr string `envconfig:"METRICS_ADDR" default:""`
}

// Load reads configuration from environment variables.
// It first attempts to load from .env file if it exists, then from environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without touching .env.
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges. It is called by Load and again after
// command-line overrides are applied.
func (c *Config) Validate() error {
	u, err := url.Parse(c.InferenceURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("config: INFERENCE_URL %q is not an http(s) URL", c.InferenceURL)
	}

	c.UploadFormat = strings.ToLower(strings.TrimSpace(c.UploadFormat))
	if c.UploadFormat != "wav" && c.UploadFormat != "flac" {
		return fmt.Errorf("config: UPLOAD_FORMAT must be wav or flac, got %q", c.UploadFormat)
	}

	if c.InferenceTimeout <= 0 {
		return fmt.Errorf("config: INFERENCE_TIMEOUT must be positive")
	}
	if c.MaxRecording < 0 {
		return fmt.Errorf("config: MAX_RECORDING must not be negative")
	}
	if c.SpeechPitch < 0 || c.SpeechPitch > 2 {
		return fmt.Errorf("config: SPEECH_PITCH must be within [0, 2], got %g", c.SpeechPitch)
	}
	if c.SpeechRate < 0.1 || c.SpeechRate > 10 {
		return fmt.Errorf("config: SPEECH_RATE must be within [0.1, 10], got %g", c.SpeechRate)
	}
	return nil
}

// AzureEnabled reports whether Azure speech credentials are present.
func (c *Config) AzureEnabled() bool {
	return c.AzureSpeechKey != "" && c.AzureSpeechRegion != ""
}
