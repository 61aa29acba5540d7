package platform

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	_ "github.com/lib/pq" // postgres driver for the audit store
	"github.com/modelcontextprotocol/go-sdk/mcp"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	_ "github.com/txn2/talkback/internal/apidocs" // register swagger docs
	"github.com/txn2/talkback/pkg/analysis"
	"github.com/txn2/talkback/pkg/analysis/gemini"
	"github.com/txn2/talkback/pkg/api"
	"github.com/txn2/talkback/pkg/asr"
	"github.com/txn2/talkback/pkg/audio"
	"github.com/txn2/talkback/pkg/audit"
	auditpostgres "github.com/txn2/talkback/pkg/audit/postgres"
	"github.com/txn2/talkback/pkg/database/migrate"
	"github.com/txn2/talkback/pkg/feedback"
	"github.com/txn2/talkback/pkg/health"
	thttp "github.com/txn2/talkback/pkg/http"
	"github.com/txn2/talkback/pkg/ingest"
	"github.com/txn2/talkback/pkg/mcptools"
	"github.com/txn2/talkback/pkg/realtime"
	"github.com/txn2/talkback/pkg/session"
	"github.com/txn2/talkback/pkg/transcript"
)

// Platform is the main platform facade.
type Platform struct {
	config    *Config
	version   string
	lifecycle *Lifecycle
	health    *health.Checker

	db          *sql.DB
	store       transcript.Store
	registry    session.Registry
	auditLogger audit.Logger

	hub      *realtime.Hub
	ingest   *ingest.Service
	analyzer *analysis.Analyzer
	pipeline *feedback.Pipeline

	mcpServer *mcp.Server
	handler   http.Handler
}

// New creates a new platform instance.
func New(opts ...Option) (*Platform, error) {
	options := &Options{}
	for _, opt := range opts {
		opt(options)
	}

	if options.Config == nil {
		return nil, errors.New("config is required")
	}
	if err := options.Config.Validate(); err != nil {
		return nil, err
	}

	p := &Platform{
		config:    options.Config,
		version:   options.Version,
		lifecycle: NewLifecycle(),
		health:    health.NewChecker(),
	}
	if p.version == "" {
		p.version = "dev"
	}

	if err := p.initializeComponents(options); err != nil {
		_ = p.lifecycle.Stop(context.Background())
		return nil, fmt.Errorf("initializing components: %w", err)
	}
	return p, nil
}

// initializeComponents initializes all platform components.
func (p *Platform) initializeComponents(opts *Options) error {
	p.initStores(opts)
	if err := p.initAudit(opts); err != nil {
		return err
	}
	if err := p.initPipeline(opts); err != nil {
		return err
	}
	p.initRealtime()
	p.initMCP()
	p.handler = p.buildHandler()
	return nil
}

// initStores sets up the chunk store and session registry.
func (p *Platform) initStores(opts *Options) {
	if opts.Store != nil {
		p.store = opts.Store
	} else {
		mem := transcript.NewMemoryStore()
		if ttl := p.config.Chunks.IdleTTL; ttl > 0 {
			interval := p.config.Chunks.CleanupInterval
			p.lifecycle.Append("transcript cleanup", func(context.Context) error {
				mem.StartCleanupRoutine(ttl, interval)
				return nil
			}, nil)
		}
		p.store = mem
	}
	p.lifecycle.RegisterCloser("transcript store", p.store)

	if opts.Registry != nil {
		p.registry = opts.Registry
	} else {
		p.registry = session.NewMemoryRegistry()
	}
}

// initAudit selects the audit backend: an injected logger, postgres when a
// database is configured, or a bounded in-memory buffer.
func (p *Platform) initAudit(opts *Options) error {
	switch {
	case opts.AuditLogger != nil:
		p.auditLogger = opts.AuditLogger
		return nil
	case !p.config.Audit.Enabled:
		p.auditLogger = audit.NoopLogger{}
		return nil
	}

	db := opts.DB
	if db == nil && p.config.Database.DSN != "" {
		var err error
		if db, err = openDB(p.config.Database); err != nil {
			return err
		}
		p.lifecycle.RegisterCloser("database", db)
	}
	if db == nil {
		p.auditLogger = audit.NewMemoryLogger(p.config.Audit.MemoryCapacity)
		return nil
	}

	p.db = db
	p.health.AddCheck("database", db.PingContext)

	store := auditpostgres.New(db, auditpostgres.Config{RetentionDays: p.config.Audit.RetentionDays})
	p.lifecycle.Append("audit migrations", func(context.Context) error {
		if err := migrate.Run(db); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
		store.StartCleanupRoutine(p.config.Audit.CleanupInterval)
		return nil
	}, nil)
	p.lifecycle.RegisterCloser("audit store", store)
	p.auditLogger = store
	return nil
}

func openDB(cfg DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return db, nil
}

// initPipeline wires conversion, recognition and analysis into the ingest
// service and the feedback pipeline.
func (p *Platform) initPipeline(opts *Options) error {
	converter := opts.Converter
	if converter == nil {
		converter = audio.NewFFmpeg(audio.FFmpegConfig{
			Binary:     p.config.Audio.FFmpegPath,
			SampleRate: p.config.Audio.SampleRate,
			Channels:   p.config.Audio.Channels,
		})
	}

	transcriber := opts.Transcriber
	if transcriber == nil {
		transcriber = asr.NewWhisperClient(asr.WhisperConfig{
			URL:     p.config.ASR.URL,
			Timeout: p.config.ASR.Timeout,
		})
	}

	gen, err := p.createGenerator(opts)
	if err != nil {
		return err
	}

	p.ingest = ingest.NewService(p.store, converter, transcriber, p.auditLogger, ingest.Config{
		AllowedExtensions: p.config.Chunks.AllowedExtensions,
		Language:          p.config.ASR.Language,
	})
	p.analyzer = analysis.New(gen, p.config.Analysis.Persona)
	p.pipeline = feedback.New(p.store, p.analyzer,
		feedback.WithAuditLogger(p.auditLogger),
		feedback.WithStageTimeout(p.config.Analysis.StageTimeout))
	return nil
}

func (p *Platform) createGenerator(opts *Options) (analysis.Generator, error) {
	if opts.Generator != nil {
		return opts.Generator, nil
	}
	switch p.config.Analysis.Provider {
	case ProviderGemini:
		gen, err := gemini.New(context.Background(), gemini.Config{
			APIKey: p.config.Analysis.APIKey,
			Model:  p.config.Analysis.Model,
		})
		if err != nil {
			return nil, fmt.Errorf("creating gemini generator: %w", err)
		}
		slog.Info("analysis enabled", "provider", ProviderGemini, "model", gen.Model(), "persona", p.config.Analysis.Persona)
		return gen, nil
	default:
		slog.Warn("analysis disabled, feedback will use fallback values")
		return analysis.Disabled{}, nil
	}
}

func (p *Platform) initRealtime() {
	p.hub = realtime.NewHub(p.registry,
		realtime.WithAuditLogger(p.auditLogger),
		realtime.WithSendBuffer(p.config.Realtime.SendBuffer))
	p.lifecycle.OnStop("realtime hub", func(ctx context.Context) error {
		p.hub.Shutdown(ctx)
		return nil
	})
}

func (p *Platform) initMCP() {
	if !p.config.MCP.Enabled {
		return
	}
	p.mcpServer = mcp.NewServer(&mcp.Implementation{
		Name:    p.config.Server.Name,
		Version: p.version,
	}, nil)
	mcptools.New(p.store, p.registry).Register(p.mcpServer)
}

// buildHandler assembles every route behind the shared middleware.
func (p *Platform) buildHandler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", p.health.StatusHandler())
	mux.HandleFunc("GET /healthz", p.health.LivenessHandler())
	mux.HandleFunc("GET /readyz", p.health.ReadinessHandler())

	mux.Handle("GET /ws", realtime.NewHandler(p.hub, realtime.HandlerConfig{
		AllowedOrigins: p.config.Server.AllowedOrigins,
		WriteWait:      p.config.Realtime.WriteWait,
		PongWait:       p.config.Realtime.PongWait,
		MaxMessageSize: p.config.Realtime.MaxMessageSize,
	}))

	if p.mcpServer != nil {
		srv := p.mcpServer
		mux.Handle("/mcp", mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return srv }, nil))
	}

	mux.Handle("GET /swagger/", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	mux.Handle("/", api.NewHandler(api.Deps{
		Ingester:  p.ingest,
		Finalizer: p.pipeline,
		Store:     p.store,
		Registry:  p.registry,
		Audit:     p.auditLogger,
	}))

	return thttp.Chain(mux,
		thttp.RequestLogger(),
		thttp.CORS(p.config.Server.AllowedOrigins),
		thttp.MaxBodySize(p.config.Server.MaxUploadBytes),
	)
}

// Start runs the lifecycle and marks the platform ready.
func (p *Platform) Start(ctx context.Context) error {
	if err := p.lifecycle.Start(ctx); err != nil {
		return fmt.Errorf("starting platform: %w", err)
	}
	p.health.SetReady()
	slog.Info("platform started",
		"name", p.config.Server.Name,
		"version", p.version,
		"analysis", p.config.Analysis.Provider,
		"mcp", p.mcpServer != nil,
		"audit_db", p.db != nil)
	return nil
}

// Stop marks the platform draining and stops every component.
func (p *Platform) Stop(ctx context.Context) error {
	p.health.SetDraining()
	return p.lifecycle.Stop(ctx)
}

// Close stops the platform with a background context.
func (p *Platform) Close() error {
	return p.Stop(context.Background())
}

// Config returns the platform configuration.
func (p *Platform) Config() *Config { return p.config }

// Handler returns the HTTP handler serving every endpoint.
func (p *Platform) Handler() http.Handler { return p.handler }

// Health returns the readiness checker.
func (p *Platform) Health() *health.Checker { return p.health }

// Hub returns the realtime hub.
func (p *Platform) Hub() *realtime.Hub { return p.hub }

// Store returns the transcript store.
func (p *Platform) Store() transcript.Store { return p.store }

// Registry returns the session registry.
func (p *Platform) Registry() session.Registry { return p.registry }

// AuditLogger returns the audit logger in use.
func (p *Platform) AuditLogger() audit.Logger { return p.auditLogger }

// MCPServer returns the MCP server, or nil when disabled.
func (p *Platform) MCPServer() *mcp.Server { return p.mcpServer }
