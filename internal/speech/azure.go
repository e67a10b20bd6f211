package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hammamikhairi/voiceask/internal/domain"
	"github.com/hammamikhairi/voiceask/internal/logger"
)

// AzureOption configures the Azure TTS client.
type AzureOption func(*AzureClient)

// WithBaseURL overrides the regional endpoint root, e.g. for tests.
func WithBaseURL(url string) AzureOption {
	return func(c *AzureClient) {
		c.baseURL = strings.TrimRight(url, "/")
	}
}

// AzureClient talks to the Azure Cognitive Services speech REST API.
type AzureClient struct {
	subscriptionKey string
	baseURL         string
	format          string
	httpClient      *http.Client
	log             *logger.Logger
}

// NewAzureClient creates an Azure TTS client with the given credentials.
func NewAzureClient(key, region string, log *logger.Logger, opts ...AzureOption) *AzureClient {
	c := &AzureClient{
		subscriptionKey: key,
		baseURL:         fmt.Sprintf("https://%s.tts.speech.microsoft.com", region),
		format:          DefaultAudioFormat,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type azureVoice struct {
	ShortName   string `json:"ShortName"`
	DisplayName string `json:"DisplayName"`
	LocalName   string `json:"LocalName"`
	Gender      string `json:"Gender"`
	Locale      string `json:"Locale"`
}

// ListVoices fetches the voice catalog for the region.
func (c *AzureClient) ListVoices(ctx context.Context) ([]domain.Voice, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/cognitiveservices/voices/list", nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", c.subscriptionKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("voices request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("azure voices error %d: %s", resp.StatusCode, string(body))
	}

	var raw []azureVoice
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding voices: %w", err)
	}

	voices := make([]domain.Voice, 0, len(raw))
	for _, v := range raw {
		voices = append(voices, domain.Voice{
			ID:     v.ShortName,
			Name:   fmt.Sprintf("%s (%s)", v.DisplayName, v.Gender),
			Locale: v.Locale,
			Gender: v.Gender,
		})
	}
	c.log.Debug("azure tts: %d voices listed", len(voices))
	return voices, nil
}

// Synthesize converts an utterance to speech audio data (WAV bytes).
func (c *AzureClient) Synthesize(ctx context.Context, u Utterance) ([]byte, error) {
	ssml := buildSSML(u)
	c.log.Debug("azure tts: synthesizing %d chars with voice %s", len(u.Text), voiceName(u.Voice))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/cognitiveservices/v1", strings.NewReader(ssml))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Ocp-Apim-Subscription-Key", c.subscriptionKey)
	req.Header.Set("Content-Type", "application/ssml+xml")
	req.Header.Set("X-Microsoft-OutputFormat", c.format)
	req.Header.Set("User-Agent", "voiceask/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tts request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("azure tts error %d: %s", resp.StatusCode, string(body))
	}

	audioData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading audio data: %w", err)
	}

	c.log.Debug("azure tts: got %d bytes of audio", len(audioData))
	return audioData, nil
}

// buildSSML creates SSML markup for the synthesis request. Pitch 1 and
// rate 1 are the engine defaults; pitch maps linearly onto -50%..+50%
// and Azure accepts rates between 0.5 and 2.
func buildSSML(u Utterance) string {
	lang := DefaultLocale
	if u.Voice != nil && u.Voice.Locale != "" {
		lang = u.Voice.Locale
	}

	var text bytes.Buffer
	xml.EscapeText(&text, []byte(u.Text))

	pitch := (clamp(u.Pitch, MinPitch, MaxPitch) - 1) * 50
	rate := clamp(u.Rate, 0.5, 2)

	return fmt.Sprintf(
		`<speak version='1.0' xml:lang='%s'><voice xml:lang='%s' name='%s'><prosody pitch='%+.0f%%' rate='%.2f'>%s</prosody></voice></speak>`,
		lang, lang, voiceName(u.Voice), pitch, rate, text.String(),
	)
}

func voiceName(v *domain.Voice) string {
	if v == nil || v.ID == "" {
		return DefaultVoice
	}
	return v.ID
}

// ── Synthesizer ──────────────────────────────────────────────────

// Compile-time interface check.
var _ Synthesizer = (*AzureSynthesizer)(nil)

// AzureSynthesizer renders utterances with Azure, caches the audio and
// plays it through a sink.
type AzureSynthesizer struct {
	client *AzureClient
	cache  *AudioCache
	sink   AudioSink
	log    *logger.Logger
}

// NewAzureSynthesizer wires the client, cache and sink together. cache
// may be nil.
func NewAzureSynthesizer(client *AzureClient, cache *AudioCache, sink AudioSink, log *logger.Logger) *AzureSynthesizer {
	return &AzureSynthesizer{client: client, cache: cache, sink: sink, log: log}
}

// Voices implements Synthesizer.
func (s *AzureSynthesizer) Voices(ctx context.Context) ([]domain.Voice, error) {
	return s.client.ListVoices(ctx)
}

// Speak implements Synthesizer.
func (s *AzureSynthesizer) Speak(ctx context.Context, u Utterance, started func()) error {
	variant := fmt.Sprintf("%s|%.2f|%.2f", voiceName(u.Voice), u.Pitch, u.Rate)

	audio, ok := s.cacheGet(variant, u.Text)
	if !ok {
		var err error
		audio, err = s.client.Synthesize(ctx, u)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		if s.cache != nil {
			s.cache.Put(variant, u.Text, audio)
		}
	}

	return s.sink.Play(ctx, audio, started)
}

func (s *AzureSynthesizer) cacheGet(variant, text string) ([]byte, bool) {
	if s.cache == nil {
		return nil, false
	}
	return s.cache.Get(variant, text)
}
