// Package transcribe turns voice segments into text via a
// whisper-compatible HTTP endpoint.
package transcribe

import (
	"context"

	"padmux/internal/vad"
)

// Result is the outcome of one transcription request. Backends report an
// empty recognition as an error, so a nil error implies non-empty Text;
// consumers still skip empty text rather than inject nothing.
type Result struct {
	Text     string
	Language string
}

// Transcriber converts one segment into text.
type Transcriber interface {
	Transcribe(ctx context.Context, seg vad.Segment) (Result, error)
}
