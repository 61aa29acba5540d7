// Package platform wires the chunk store, session registry, realtime hub
// and feedback pipeline into one server.
package platform

import (
	"fmt"
	"os"
	"regexp"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/txn2/talkback/pkg/analysis"
	"github.com/txn2/talkback/pkg/ingest"
)

// Analysis providers.
const (
	ProviderGemini = "gemini"
	ProviderNone   = "none"
)

// Log formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Config holds the complete server configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Chunks   ChunksConfig   `yaml:"chunks"`
	Audio    AudioConfig    `yaml:"audio"`
	ASR      ASRConfig      `yaml:"asr"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Realtime RealtimeConfig `yaml:"realtime"`
	Database DatabaseConfig `yaml:"database"`
	Audit    AuditConfig    `yaml:"audit"`
	MCP      MCPConfig      `yaml:"mcp"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Name              string        `yaml:"name"`
	Address           string        `yaml:"address"`
	LogLevel          string        `yaml:"log_level"`  // debug, info, warn, error
	LogFormat         string        `yaml:"log_format"` // text, json
	AllowedOrigins    []string      `yaml:"allowed_origins"`
	MaxUploadBytes    int64         `yaml:"max_upload_bytes"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
}

// ChunksConfig configures the transcript chunk store.
type ChunksConfig struct {
	// IdleTTL evicts sessions with no upload for this long. Zero keeps
	// sessions until they are finalized or reset.
	IdleTTL           time.Duration `yaml:"idle_ttl"`
	CleanupInterval   time.Duration `yaml:"cleanup_interval"`
	AllowedExtensions []string      `yaml:"allowed_extensions"`
}

// AudioConfig configures audio conversion.
type AudioConfig struct {
	FFmpegPath string `yaml:"ffmpeg_path"`
	SampleRate int    `yaml:"sample_rate"`
	Channels   int    `yaml:"channels"`
}

// ASRConfig configures the speech recognizer.
type ASRConfig struct {
	URL      string        `yaml:"url"`
	Timeout  time.Duration `yaml:"timeout"`
	Language string        `yaml:"language"`
}

// AnalysisConfig configures the language-model collaborator.
type AnalysisConfig struct {
	Provider     string        `yaml:"provider"` // gemini, none
	APIKey       string        `yaml:"api_key"`
	Model        string        `yaml:"model"`
	Persona      string        `yaml:"persona"` // roast, judge
	StageTimeout time.Duration `yaml:"stage_timeout"`
}

// RealtimeConfig configures the control channel.
type RealtimeConfig struct {
	SendBuffer     int           `yaml:"send_buffer"`
	WriteWait      time.Duration `yaml:"write_wait"`
	PongWait       time.Duration `yaml:"pong_wait"`
	MaxMessageSize int64         `yaml:"max_message_size"`
}

// DatabaseConfig configures the audit database connection.
type DatabaseConfig struct {
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

// AuditConfig configures the session event trail.
type AuditConfig struct {
	Enabled         bool          `yaml:"enabled"`
	RetentionDays   int           `yaml:"retention_days"`
	MemoryCapacity  int           `yaml:"memory_capacity"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// MCPConfig configures the MCP endpoint.
type MCPConfig struct {
	Enabled bool `yaml:"enabled"`
}

// LoadConfig loads configuration from a file.
// The path is expected to come from command line arguments, controlled by the administrator.
func LoadConfig(path string) (*Config, error) {
	// #nosec G304 -- path is from CLI args, controlled by admin
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses YAML configuration, expanding ${VAR} references and
// applying defaults.
func ParseConfig(data []byte) (*Config, error) {
	data = []byte(expandEnvVars(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	applyEnvFallbacks(&cfg)
	applyDefaults(&cfg)
	return &cfg, nil
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	cfg := &Config{
		Audit: AuditConfig{Enabled: true},
		MCP:   MCPConfig{Enabled: true},
	}
	applyEnvFallbacks(cfg)
	applyDefaults(cfg)
	return cfg
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars expands ${VAR} patterns in the string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(match[2 : len(match)-1])
	})
}

// applyEnvFallbacks fills secrets and endpoints left empty from the
// environment variables the clients' deployment already sets.
func applyEnvFallbacks(cfg *Config) {
	if cfg.Analysis.APIKey == "" {
		cfg.Analysis.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if cfg.ASR.URL == "" {
		cfg.ASR.URL = os.Getenv("WHISPER_URL")
	}
	if cfg.Database.DSN == "" {
		cfg.Database.DSN = os.Getenv("DATABASE_URL")
	}
}

// applyDefaults applies default values to the config.
func applyDefaults(cfg *Config) {
	applyServerDefaults(&cfg.Server)

	if cfg.Chunks.CleanupInterval == 0 {
		cfg.Chunks.CleanupInterval = time.Minute
	}
	if len(cfg.Chunks.AllowedExtensions) == 0 {
		cfg.Chunks.AllowedExtensions = slices.Clone(ingest.DefaultAllowedExtensions)
	}
	if cfg.Audio.FFmpegPath == "" {
		cfg.Audio.FFmpegPath = "ffmpeg"
	}
	if cfg.ASR.URL == "" {
		cfg.ASR.URL = "http://localhost:9000"
	}
	if cfg.ASR.Timeout == 0 {
		cfg.ASR.Timeout = 60 * time.Second
	}
	if cfg.ASR.Language == "" {
		cfg.ASR.Language = "en"
	}
	if cfg.Analysis.Provider == "" {
		cfg.Analysis.Provider = ProviderNone
		if cfg.Analysis.APIKey != "" {
			cfg.Analysis.Provider = ProviderGemini
		}
	}
	if cfg.Analysis.Persona == "" {
		cfg.Analysis.Persona = string(analysis.PersonaRoast)
	}
	if cfg.Analysis.StageTimeout == 0 {
		cfg.Analysis.StageTimeout = 90 * time.Second
	}
	if cfg.Realtime.SendBuffer == 0 {
		cfg.Realtime.SendBuffer = 16
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Audit.RetentionDays == 0 {
		cfg.Audit.RetentionDays = 30
	}
	if cfg.Audit.MemoryCapacity == 0 {
		cfg.Audit.MemoryCapacity = 10000
	}
	if cfg.Audit.CleanupInterval == 0 {
		cfg.Audit.CleanupInterval = time.Hour
	}
}

func applyServerDefaults(s *ServerConfig) {
	if s.Name == "" {
		s.Name = "talkback"
	}
	if s.Address == "" {
		s.Address = ":8081"
	}
	if s.LogLevel == "" {
		s.LogLevel = "info"
	}
	if s.LogFormat == "" {
		s.LogFormat = LogFormatText
	}
	if s.MaxUploadBytes == 0 {
		s.MaxUploadBytes = 25 << 20
	}
	if s.ReadHeaderTimeout == 0 {
		s.ReadHeaderTimeout = 10 * time.Second
	}
	if s.ShutdownTimeout == 0 {
		s.ShutdownTimeout = 15 * time.Second
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Address == "" {
		errs = append(errs, "server.address is required")
	}
	if c.Server.LogFormat != LogFormatText && c.Server.LogFormat != LogFormatJSON {
		errs = append(errs, fmt.Sprintf("server.log_format must be %q or %q", LogFormatText, LogFormatJSON))
	}
	if _, err := ParseLogLevel(c.Server.LogLevel); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Chunks.IdleTTL < 0 {
		errs = append(errs, "chunks.idle_ttl must not be negative")
	}
	if c.ASR.URL == "" {
		errs = append(errs, "asr.url is required")
	}

	switch c.Analysis.Provider {
	case ProviderGemini:
		if c.Analysis.APIKey == "" {
			errs = append(errs, "analysis.api_key is required when provider is gemini")
		}
	case ProviderNone:
	default:
		errs = append(errs, fmt.Sprintf("analysis.provider %q is not supported", c.Analysis.Provider))
	}
	if c.Analysis.Persona != string(analysis.PersonaRoast) && c.Analysis.Persona != string(analysis.PersonaJudge) {
		errs = append(errs, fmt.Sprintf("analysis.persona %q is not supported", c.Analysis.Persona))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}
	return nil
}
