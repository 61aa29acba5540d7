// Package asr transcribes converted audio chunks through a speech
// recognition service.
package asr

import (
	"context"
	"errors"

	"github.com/txn2/talkback/pkg/transcript"
)

// DefaultLanguage is the language hint sent when none is configured.
const DefaultLanguage = "en"

// ErrTranscription is returned when the recognizer fails or answers with
// something unusable.
var ErrTranscription = errors.New("transcription failed")

// Result is the recognizer output for one chunk. Segment offsets are
// relative to the start of the chunk.
type Result struct {
	Text     string               `json:"text"`
	Segments []transcript.Segment `json:"segments"`
	Language string               `json:"language,omitempty"`
}

// Transcriber turns WAV audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, wav []byte, language string) (*Result, error)
}
