// Package inference sends recorded questions to the answering service.
//
// The service takes a multipart POST with the recording under the
// "audio" field and replies with {"ai_response": "..."} on success or
// {"error": "..."} with a failure status.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	"github.com/google/uuid"

	"github.com/hammamikhairi/voiceask/internal/domain"
	"github.com/hammamikhairi/voiceask/internal/encoder"
	"github.com/hammamikhairi/voiceask/internal/logger"
)

// Compile-time interface check.
var _ domain.InferenceClient = (*Client)(nil)

// DefaultEndpoint is where the reference backend listens.
const DefaultEndpoint = "http://localhost:5000/api/process-audio"

// FieldName is the multipart field carrying the recording.
const FieldName = "audio"

// fileBase is the uploaded file name without extension. The reference
// backend only requires it to be non-empty.
const fileBase = "question"

// genericServerError is shown when a failure response carries no message.
const genericServerError = "Server error"

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 1 << 20

var errMissingAnswer = errors.New("response has no ai_response field")

// ── Wire types ───────────────────────────────────────────────────

type response struct {
	AIResponse *string `json:"ai_response"`
	Error      *string `json:"error"`
}

// ── Client ───────────────────────────────────────────────────────

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithContainer sets the upload file format. Defaults to WAV.
func WithContainer(ct encoder.Container) ClientOption {
	return func(c *Client) { c.container = ct }
}

// Client posts recordings to the inference endpoint. Requests carry no
// timeout of their own; the caller bounds them through the context.
type Client struct {
	endpoint  string
	container encoder.Container
	http      *http.Client
	log       *logger.Logger
}

// NewClient creates an inference client for the given endpoint URL.
func NewClient(endpoint string, log *logger.Logger, opts ...ClientOption) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	c := &Client{
		endpoint:  endpoint,
		container: encoder.WAV{},
		http:      &http.Client{},
		log:       log,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Endpoint returns the URL requests are sent to.
func (c *Client) Endpoint() string { return c.endpoint }

// Submit uploads the recording and returns the raw answer text. It makes
// exactly one attempt. Failure responses with a message come back as
// *domain.ServerError; everything else that goes wrong is a
// *domain.TransportError.
func (c *Client) Submit(ctx context.Context, audio *domain.Blob) (*domain.Answer, error) {
	file, err := c.container.Encode(audio)
	if err != nil {
		return nil, &domain.TransportError{Op: "encode", Err: err}
	}

	body, contentType, err := c.buildBody(file)
	if err != nil {
		return nil, &domain.TransportError{Op: "encode", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return nil, &domain.TransportError{Op: "request", Err: err}
	}
	reqID := uuid.NewString()
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", reqID)

	c.log.Debug("inference: POST %s (%s, %d bytes, request=%s)", c.endpoint, c.container.ContentType(), len(file), reqID)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &domain.TransportError{Op: "post", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &domain.TransportError{Op: "read", Err: err}
	}
	latency := time.Since(start)

	var decoded response
	decodeErr := json.Unmarshal(raw, &decoded)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if decodeErr != nil {
			return nil, &domain.TransportError{
				Op:  "decode",
				Err: fmt.Errorf("%s with unreadable body: %w", resp.Status, decodeErr),
			}
		}
		msg := genericServerError
		if decoded.Error != nil && *decoded.Error != "" {
			msg = *decoded.Error
		}
		c.log.Warn("inference: %s after %s: %s (request=%s)", resp.Status, latency.Round(time.Millisecond), msg, reqID)
		return nil, &domain.ServerError{Status: resp.StatusCode, Message: msg}
	}

	if decodeErr != nil {
		return nil, &domain.TransportError{Op: "decode", Err: decodeErr}
	}
	if decoded.AIResponse == nil {
		return nil, &domain.TransportError{Op: "decode", Err: errMissingAnswer}
	}

	c.log.Info("inference: answer received in %s (%d chars, request=%s)", latency.Round(time.Millisecond), len(*decoded.AIResponse), reqID)
	return &domain.Answer{
		Text:      *decoded.AIResponse,
		RequestID: reqID,
		Latency:   latency,
	}, nil
}

// buildBody writes the multipart form with the recording as its only part.
func (c *Client) buildBody(file []byte) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, FieldName, fileBase+"."+c.container.Extension()))
	h.Set("Content-Type", c.container.ContentType())

	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(file); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}
