package asr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/txn2/talkback/pkg/transcript"
)

const (
	defaultWhisperTimeout = 60 * time.Second
	transcribePath        = "/transcribe"
	maxErrorBody          = 512
)

// WhisperConfig configures the Whisper HTTP client.
type WhisperConfig struct {
	// URL is the base URL of the Whisper service.
	URL string

	// Timeout bounds a single transcription request.
	Timeout time.Duration

	// HTTPClient overrides the default client.
	HTTPClient *http.Client
}

// WhisperClient calls a Whisper service that accepts a multipart "file"
// upload on /transcribe and answers with text and timed segments.
type WhisperClient struct {
	baseURL string
	client  *http.Client
}

// NewWhisperClient creates a Whisper HTTP client.
func NewWhisperClient(cfg WhisperConfig) *WhisperClient {
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultWhisperTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	return &WhisperClient{
		baseURL: strings.TrimSuffix(cfg.URL, "/"),
		client:  client,
	}
}

type whisperSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

type whisperResponse struct {
	Text     string           `json:"text"`
	Segments []whisperSegment `json:"segments"`
	Language string           `json:"language"`
}

// Transcribe uploads wav and returns the recognized text and segments.
func (c *WhisperClient) Transcribe(ctx context.Context, wav []byte, language string) (*Result, error) {
	if language == "" {
		language = DefaultLanguage
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	fw, err := w.CreateFormFile("file", "chunk.wav")
	if err != nil {
		return nil, fmt.Errorf("creating form file: %w", err)
	}
	if _, err := fw.Write(wav); err != nil {
		return nil, fmt.Errorf("writing form file: %w", err)
	}
	if err := w.WriteField("language", language); err != nil {
		return nil, fmt.Errorf("writing language field: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("closing multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+transcribePath, &body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTranscription, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("%w: whisper %s: %s", ErrTranscription, resp.Status, strings.TrimSpace(string(msg)))
	}

	var out whisperResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %w", ErrTranscription, err)
	}

	result := &Result{
		Text:     strings.TrimSpace(out.Text),
		Segments: make([]transcript.Segment, 0, len(out.Segments)),
		Language: out.Language,
	}
	texts := make([]string, 0, len(out.Segments))
	for _, s := range out.Segments {
		text := strings.TrimSpace(s.Text)
		result.Segments = append(result.Segments, transcript.Segment{Start: s.Start, End: s.End, Text: text})
		if text != "" {
			texts = append(texts, text)
		}
	}
	if result.Text == "" {
		result.Text = strings.Join(texts, " ")
	}
	return result, nil
}

// Verify interface compliance.
var _ Transcriber = (*WhisperClient)(nil)
