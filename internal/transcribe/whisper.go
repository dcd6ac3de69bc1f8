package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"padmux/internal/transcript"
	"padmux/internal/vad"
)

const requestTimeout = 30 * time.Second

// Whisper posts segments to an OpenAI-compatible transcription endpoint
// (whisper.cpp server, faster-whisper, or the hosted API) as multipart
// WAV uploads.
type Whisper struct {
	endpoint string
	model    string
	language string
	apiKey   string
	client   *http.Client
	logger   *slog.Logger
}

// NewWhisper builds a client for one endpoint. apiKey may be empty for
// local servers.
func NewWhisper(endpoint, model, language, apiKey string, logger *slog.Logger) *Whisper {
	return &Whisper{
		endpoint: endpoint,
		model:    model,
		language: language,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: requestTimeout},
		logger:   logger,
	}
}

// Transcribe uploads one segment and returns the recognized text.
func (w *Whisper) Transcribe(ctx context.Context, seg vad.Segment) (Result, error) {
	if len(seg.PCM) == 0 {
		return Result{}, fmt.Errorf("refusing to transcribe empty segment")
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", "audio.wav")
	if err != nil {
		return Result{}, err
	}
	if err := writeWAV(part, seg.PCM, seg.SampleRate); err != nil {
		return Result{}, fmt.Errorf("encoding segment: %w", err)
	}
	if err := writer.WriteField("model", w.model); err != nil {
		return Result{}, err
	}
	if err := writer.WriteField("response_format", "json"); err != nil {
		return Result{}, err
	}
	if w.language != "" {
		if err := writer.WriteField("language", w.language); err != nil {
			return Result{}, err
		}
	}
	if err := writer.Close(); err != nil {
		return Result{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.endpoint, &body)
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if w.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+w.apiKey)
	}

	started := time.Now()
	resp, err := w.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("transcription request: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Result{}, fmt.Errorf("reading transcription response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("transcription endpoint returned %d: %s", resp.StatusCode, truncate(payload, 200))
	}

	var parsed struct {
		Text     string `json:"text"`
		Language string `json:"language"`
	}
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return Result{}, fmt.Errorf("parsing transcription response: %w", err)
	}

	text := transcript.Clean(parsed.Text)
	if text == "" {
		return Result{}, fmt.Errorf("transcription returned no text for %s of audio", seg.Duration())
	}

	w.logger.Debug("segment transcribed",
		"audio_ms", seg.Duration().Milliseconds(),
		"latency_ms", time.Since(started).Milliseconds(),
		"chars", len(text),
	)
	return Result{Text: text, Language: parsed.Language}, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
