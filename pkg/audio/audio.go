// Package audio converts uploaded recording chunks into the 16 kHz mono WAV
// format the speech recognizer expects.
package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// Target format for recognition.
const (
	DefaultSampleRate = 16000
	DefaultChannels   = 1
	defaultBinary     = "ffmpeg"
)

// ErrConversion is returned when an upload cannot be decoded or converted.
var ErrConversion = errors.New("audio conversion failed")

// Converter turns an uploaded chunk into WAV bytes.
type Converter interface {
	// ToWAV converts audio whose container is named by ext (for example
	// "webm") into mono PCM WAV.
	ToWAV(ctx context.Context, audio []byte, ext string) ([]byte, error)
}

// FFmpegConfig configures the ffmpeg converter.
type FFmpegConfig struct {
	// Binary is the ffmpeg executable name or path.
	Binary string

	// SampleRate and Channels describe the output WAV.
	SampleRate int
	Channels   int
}

// FFmpeg converts audio by running the ffmpeg executable.
type FFmpeg struct {
	binary     string
	sampleRate int
	channels   int
}

// NewFFmpeg creates an ffmpeg-backed converter.
func NewFFmpeg(cfg FFmpegConfig) *FFmpeg {
	if cfg.Binary == "" {
		cfg.Binary = defaultBinary
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = DefaultSampleRate
	}
	if cfg.Channels <= 0 {
		cfg.Channels = DefaultChannels
	}
	return &FFmpeg{
		binary:     cfg.Binary,
		sampleRate: cfg.SampleRate,
		channels:   cfg.Channels,
	}
}

// ToWAV writes the upload to a scratch directory, runs ffmpeg on it and
// returns the converted file. The scratch directory is always removed.
func (f *FFmpeg) ToWAV(ctx context.Context, audio []byte, ext string) ([]byte, error) {
	if len(audio) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrConversion)
	}

	dir, err := os.MkdirTemp("", "talkback-chunk-*")
	if err != nil {
		return nil, fmt.Errorf("creating scratch dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(dir) }()

	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	if ext == "" {
		ext = "bin"
	}
	in := filepath.Join(dir, "input."+ext)
	out := filepath.Join(dir, "output.wav")

	if err := os.WriteFile(in, audio, 0o600); err != nil {
		return nil, fmt.Errorf("writing chunk: %w", err)
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, f.binary, f.args(in, out)...) //nolint:gosec // binary comes from operator config
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w: %s", ErrConversion, f.binary, err, lastLine(stderr.String()))
	}

	wav, err := os.ReadFile(out)
	if err != nil {
		return nil, fmt.Errorf("%w: reading output: %w", ErrConversion, err)
	}
	if len(wav) == 0 {
		return nil, fmt.Errorf("%w: empty output", ErrConversion)
	}
	return wav, nil
}

func (f *FFmpeg) args(in, out string) []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-y",
		"-i", in,
		"-ac", strconv.Itoa(f.channels),
		"-ar", strconv.Itoa(f.sampleRate),
		"-f", "wav",
		out,
	}
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}

// Verify interface compliance.
var _ Converter = (*FFmpeg)(nil)
