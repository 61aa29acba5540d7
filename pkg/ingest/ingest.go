// Package ingest turns an uploaded audio chunk into a stored transcript
// chunk: validate, convert, transcribe, store.
package ingest

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"lukechampine.com/blake3"

	"github.com/txn2/talkback/pkg/asr"
	"github.com/txn2/talkback/pkg/audio"
	"github.com/txn2/talkback/pkg/audit"
	"github.com/txn2/talkback/pkg/transcript"
)

// DefaultAllowedExtensions lists the accepted upload containers.
var DefaultAllowedExtensions = []string{"webm", "wav", "mp3", "ogg", "m4a"}

const hashSize = 32

// ValidationError reports a malformed upload. Nothing is stored.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ConversionError reports audio that could not be converted. Nothing is stored.
type ConversionError struct {
	Err error
}

func (e *ConversionError) Error() string { return "converting audio: " + e.Err.Error() }

func (e *ConversionError) Unwrap() error { return e.Err }

// TranscriptionError reports a recognizer failure. Nothing is stored.
type TranscriptionError struct {
	Err error
}

func (e *TranscriptionError) Error() string { return "transcribing audio: " + e.Err.Error() }

func (e *TranscriptionError) Unwrap() error { return e.Err }

// Upload is one recorded chunk as received from the presenter.
type Upload struct {
	SessionID  string
	ChunkIndex int
	Filename   string
	Audio      []byte
}

// Result describes the stored chunk.
type Result struct {
	SessionID  string `json:"sessionId"`
	ChunkIndex int    `json:"chunkIndex"`
	Text       string `json:"text"`
	Duplicate  bool   `json:"duplicate"`
}

// Config configures the Service.
type Config struct {
	AllowedExtensions []string
	Language          string
}

// Service ingests chunks into a transcript store.
type Service struct {
	store       transcript.Store
	converter   audio.Converter
	transcriber asr.Transcriber
	auditLogger audit.Logger

	allowed  []string
	language string
}

// NewService creates an ingest service.
func NewService(store transcript.Store, converter audio.Converter, transcriber asr.Transcriber,
	logger audit.Logger, cfg Config,
) *Service {
	if len(cfg.AllowedExtensions) == 0 {
		cfg.AllowedExtensions = DefaultAllowedExtensions
	}
	if cfg.Language == "" {
		cfg.Language = asr.DefaultLanguage
	}
	if logger == nil {
		logger = audit.NoopLogger{}
	}
	allowed := make([]string, 0, len(cfg.AllowedExtensions))
	for _, ext := range cfg.AllowedExtensions {
		allowed = append(allowed, strings.ToLower(strings.TrimPrefix(ext, ".")))
	}
	return &Service{
		store:       store,
		converter:   converter,
		transcriber: transcriber,
		auditLogger: logger,
		allowed:     allowed,
		language:    cfg.Language,
	}
}

// Ingest validates, converts, transcribes and stores one chunk. A retry
// carrying the same audio for an already stored index returns the stored
// text without transcribing again.
func (s *Service) Ingest(ctx context.Context, up Upload) (*Result, error) {
	start := time.Now()

	ext, err := s.validate(up)
	if err != nil {
		return nil, err
	}

	hash := audioHash(up.Audio)
	if existing, ok := s.store.Lookup(ctx, up.SessionID, up.ChunkIndex); ok && existing.AudioHash == hash {
		slog.Info("duplicate chunk upload", "session_id", up.SessionID, "chunk_index", up.ChunkIndex)
		return &Result{SessionID: up.SessionID, ChunkIndex: up.ChunkIndex, Text: existing.Text, Duplicate: true}, nil
	}

	wav, err := s.converter.ToWAV(ctx, up.Audio, ext)
	if err != nil {
		s.recordFailure(up, err, start)
		return nil, &ConversionError{Err: err}
	}

	res, err := s.transcriber.Transcribe(ctx, wav, s.language)
	if err != nil {
		s.recordFailure(up, err, start)
		return nil, &TranscriptionError{Err: err}
	}

	chunk := transcript.Chunk{
		Index:     up.ChunkIndex,
		Text:      res.Text,
		Segments:  res.Segments,
		AudioHash: hash,
	}
	if err := s.store.Ingest(ctx, up.SessionID, chunk); err != nil {
		return nil, fmt.Errorf("storing chunk: %w", err)
	}

	slog.Info("chunk transcribed",
		"session_id", up.SessionID,
		"chunk_index", up.ChunkIndex,
		"chars", len(res.Text),
		"segments", len(res.Segments),
		"duration", time.Since(start))

	audit.LogAsync(s.auditLogger, audit.NewEvent(audit.KindChunkIngested).
		WithSession(up.SessionID).
		WithDetails(map[string]any{"chunk_index": up.ChunkIndex, "chars": len(res.Text)}).
		WithResult(true, "", time.Since(start).Milliseconds()))

	return &Result{SessionID: up.SessionID, ChunkIndex: up.ChunkIndex, Text: res.Text}, nil
}

// validate checks the upload and returns the normalized file extension.
func (s *Service) validate(up Upload) (string, error) {
	if strings.TrimSpace(up.SessionID) == "" {
		return "", &ValidationError{Field: "sessionId", Reason: "is required"}
	}
	if up.ChunkIndex < 0 {
		return "", &ValidationError{Field: "chunkIndex", Reason: "must not be negative"}
	}
	if len(up.Audio) == 0 {
		return "", &ValidationError{Field: "audio", Reason: "no audio data"}
	}
	if up.Filename == "" {
		return "", &ValidationError{Field: "audio", Reason: "no selected file"}
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(up.Filename), "."))
	if !slices.Contains(s.allowed, ext) {
		return "", &ValidationError{Field: "audio", Reason: fmt.Sprintf("file type %q not allowed", ext)}
	}
	return ext, nil
}

func (s *Service) recordFailure(up Upload, err error, start time.Time) {
	slog.Warn("chunk ingest failed", "session_id", up.SessionID, "chunk_index", up.ChunkIndex, "error", err)
	audit.LogAsync(s.auditLogger, audit.NewEvent(audit.KindChunkIngested).
		WithSession(up.SessionID).
		WithDetails(map[string]any{"chunk_index": up.ChunkIndex}).
		WithResult(false, err.Error(), time.Since(start).Milliseconds()))
}

func audioHash(b []byte) string {
	sum := blake3.Sum256(b)
	return hex.EncodeToString(sum[:hashSize])
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
