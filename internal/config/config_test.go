package config

import (
	"testing"
	"time"
)

func TestLoadFromEnv_Defaults(t *testing.T) {
	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() failed: %v", err)
	}

	if cfg.InferenceURL != "http://localhost:5000/api/process-audio" {
		t.Errorf("unexpected default InferenceURL %q", cfg.InferenceURL)
	}
	if cfg.InferenceTimeout != 60*time.Second {
		t.Errorf("unexpected default InferenceTimeout %s", cfg.InferenceTimeout)
	}
	if cfg.UploadFormat != "wav" {
		t.Errorf("unexpected default UploadFormat %q", cfg.UploadFormat)
	}
	if cfg.VoiceLocale != "en-US" {
		t.Errorf("unexpected default VoiceLocale %q", cfg.VoiceLocale)
	}
	if len(cfg.VoiceLabels) != 2 || cfg.VoiceLabels[0] != "female" || cfg.VoiceLabels[1] != "woman" {
		t.Errorf("unexpected default VoiceLabels %v", cfg.VoiceLabels)
	}
	if cfg.SpeechPitch != 1 || cfg.SpeechRate != 1 {
		t.Errorf("unexpected default prosody pitch=%g rate=%g", cfg.SpeechPitch, cfg.SpeechRate)
	}
	if cfg.MaxRecording != 2*time.Minute {
		t.Errorf("unexpected default MaxRecording %s", cfg.MaxRecording)
	}
	if cfg.AzureEnabled() {
		t.Error("Azure should be disabled without credentials")
	}
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	t.Setenv("INFERENCE_URL", "https://example.com/api/process-audio")
	t.Setenv("UPLOAD_FORMAT", "FLAC")
	t.Setenv("VOICE_LABELS", "samantha,zira")
	t.Setenv("AZURE_SPEECH_KEY", "k")
	t.Setenv("AZURE_SPEECH_REGION", "westeurope")
	t.Setenv("MAX_RECORDING", "30s")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() failed: %v", err)
	}

	if cfg.InferenceURL != "https://example.com/api/process-audio" {
		t.Errorf("InferenceURL = %q", cfg.InferenceURL)
	}
	if cfg.UploadFormat != "flac" {
		t.Errorf("UploadFormat = %q, want normalised flac", cfg.UploadFormat)
	}
	if len(cfg.VoiceLabels) != 2 || cfg.VoiceLabels[1] != "zira" {
		t.Errorf("VoiceLabels = %v", cfg.VoiceLabels)
	}
	if !cfg.AzureEnabled() {
		t.Error("Azure should be enabled")
	}
	if cfg.MaxRecording != 30*time.Second {
		t.Errorf("MaxRecording = %s", cfg.MaxRecording)
	}
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			InferenceURL:     "http://localhost:5000/api/process-audio",
			InferenceTimeout: time.Second,
			UploadFormat:     "wav",
			SpeechPitch:      1,
			SpeechRate:       1,
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"bad url", func(c *Config) { c.InferenceURL = "localhost:5000" }, true},
		{"bad format", func(c *Config) { c.UploadFormat = "webm" }, true},
		{"zero timeout", func(c *Config) { c.InferenceTimeout = 0 }, true},
		{"pitch too high", func(c *Config) { c.SpeechPitch = 2.5 }, true},
		{"rate too low", func(c *Config) { c.SpeechRate = 0.05 }, true},
		{"negative max recording", func(c *Config) { c.MaxRecording = -time.Second }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
