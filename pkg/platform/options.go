package platform

import (
	"database/sql"

	"github.com/txn2/talkback/pkg/analysis"
	"github.com/txn2/talkback/pkg/asr"
	"github.com/txn2/talkback/pkg/audio"
	"github.com/txn2/talkback/pkg/audit"
	"github.com/txn2/talkback/pkg/session"
	"github.com/txn2/talkback/pkg/transcript"
)

// Options configures the platform.
type Options struct {
	// Config is the platform configuration.
	Config *Config

	// Version is reported by the MCP endpoint.
	Version string

	// DB is the audit database (optional, opened from config if not provided).
	DB *sql.DB

	// Store holds transcript chunks (optional, in-memory by default).
	Store transcript.Store

	// Registry tracks realtime connections (optional, in-memory by default).
	Registry session.Registry

	// Converter turns uploads into WAV (optional, ffmpeg by default).
	Converter audio.Converter

	// Transcriber recognizes speech (optional, Whisper HTTP by default).
	Transcriber asr.Transcriber

	// Generator backs the analyses (optional, created from analysis.provider).
	Generator analysis.Generator

	// AuditLogger records session events (optional, created from config).
	AuditLogger audit.Logger
}

// Option is a functional option for configuring the platform.
type Option func(*Options)

// WithConfig sets the configuration.
func WithConfig(cfg *Config) Option {
	return func(o *Options) {
		o.Config = cfg
	}
}

// WithVersion sets the reported server version.
func WithVersion(v string) Option {
	return func(o *Options) {
		o.Version = v
	}
}

// WithDB sets the database connection.
func WithDB(db *sql.DB) Option {
	return func(o *Options) {
		o.DB = db
	}
}

// WithStore sets the transcript store.
func WithStore(store transcript.Store) Option {
	return func(o *Options) {
		o.Store = store
	}
}

// WithRegistry sets the session registry.
func WithRegistry(reg session.Registry) Option {
	return func(o *Options) {
		o.Registry = reg
	}
}

// WithConverter sets the audio converter.
func WithConverter(c audio.Converter) Option {
	return func(o *Options) {
		o.Converter = c
	}
}

// WithTranscriber sets the speech recognizer.
func WithTranscriber(t asr.Transcriber) Option {
	return func(o *Options) {
		o.Transcriber = t
	}
}

// WithGenerator sets the language-model generator.
func WithGenerator(g analysis.Generator) Option {
	return func(o *Options) {
		o.Generator = g
	}
}

// WithAuditLogger sets the audit logger.
func WithAuditLogger(logger audit.Logger) Option {
	return func(o *Options) {
		o.AuditLogger = logger
	}
}
