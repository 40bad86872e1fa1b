package procflow

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	// NewOrchestratorFromEnv opens the SQLite database itself, so the
	// driver must be registered here rather than by the caller.
	_ "modernc.org/sqlite"

	"github.com/jmoreira/procflow/internal/config"
	"github.com/jmoreira/procflow/internal/engine"
	"github.com/jmoreira/procflow/internal/persistence"
	"github.com/jmoreira/procflow/pkg/api"
)

// Re-export key types so users don't need to dig into pkg/api.

type (
	ProcedureState       = api.ProcedureState
	AgentResponse        = api.AgentResponse
	Request              = api.Request
	Schema               = api.Schema
	Status               = api.Status
	Metadata             = api.Metadata
	Workflow             = api.Workflow
	WorkflowFactory      = api.WorkflowFactory
	Registry             = api.Registry
	Observer             = api.Observer
	LoggingObserver      = api.LoggingObserver
	BasicMetrics         = api.BasicMetrics
	BasicMetricsSnapshot = api.BasicMetricsSnapshot
	CompositeObserver    = api.CompositeObserver
	NoopObserver         = api.NoopObserver
	PauseSignal          = api.PauseSignal
	CancelSignal         = api.CancelSignal
	FlowError            = api.FlowError
	Orchestrator         = engine.Orchestrator
)

// Re-export common constructors and helpers.

var (
	NewRegistry          = api.NewRegistry
	NewProcedureState    = api.NewProcedureState
	NewLoggingObserver   = api.NewLoggingObserver
	NewCompositeObserver = api.NewCompositeObserver
	NewPause             = api.NewPause
	AsPause              = api.AsPause
	AsCancel             = api.AsCancel
	AsFlowError          = api.AsFlowError
)

// Re-export status values for convenience.

const (
	StatusInProgress = api.StatusInProgress
	StatusCompleted  = api.StatusCompleted
	StatusError      = api.StatusError
)

// Option customizes an orchestrator built by the convenience constructors.
type Option func(*orchestratorOptions)

type orchestratorOptions struct {
	observer api.Observer
	logger   *slog.Logger
}

// WithObserver attaches an observer for turn and step lifecycle events.
func WithObserver(obs Observer) Option {
	return func(o *orchestratorOptions) {
		o.observer = obs
	}
}

// WithLogger sets the orchestrator's logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *orchestratorOptions) {
		o.logger = logger
	}
}

func applyOptions(opts []Option) orchestratorOptions {
	var o orchestratorOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func newOrchestrator(registry *Registry, backend persistence.Backend, opts []Option) (*Orchestrator, error) {
	o := applyOptions(opts)
	return engine.New(engine.Config{
		Registry: registry,
		Backend:  backend,
		Observer: o.observer,
		Logger:   o.logger,
	})
}

// Orchestrator constructors
// These wrap the internal packages so external callers never need to
// import internal packages.

// NewMemoryOrchestrator returns an Orchestrator backed by an in-memory
// store. State does not survive process restarts; intended for tests and
// demos.
func NewMemoryOrchestrator(registry *Registry, opts ...Option) (*Orchestrator, error) {
	return newOrchestrator(registry, persistence.NewMemoryBackend(), opts)
}

// NewFileOrchestrator returns an Orchestrator that persists each user's
// record as a JSON file under dataDir.
func NewFileOrchestrator(registry *Registry, dataDir string, opts ...Option) (*Orchestrator, error) {
	backend, err := persistence.NewFileBackend(dataDir)
	if err != nil {
		return nil, err
	}
	return newOrchestrator(registry, backend, opts)
}

// NewRedisOrchestrator returns an Orchestrator that persists user records
// in Redis. A zero ttl means records do not expire.
func NewRedisOrchestrator(registry *Registry, client *redis.Client, ttl time.Duration, opts ...Option) (*Orchestrator, error) {
	backend := persistence.NewRedisBackend(client, persistence.WithTTL(ttl))
	return newOrchestrator(registry, backend, opts)
}

// NewSQLiteOrchestrator returns an Orchestrator that persists user records
// in a SQLite database, creating the schema on first use.
func NewSQLiteOrchestrator(registry *Registry, db *sql.DB, opts ...Option) (*Orchestrator, error) {
	backend, err := persistence.NewSQLiteBackend(db)
	if err != nil {
		return nil, err
	}
	return newOrchestrator(registry, backend, opts)
}

// NewCompositeOrchestrator returns an Orchestrator that reads from Redis
// first and falls back to the file store, writing to both on every save.
// A write fails only when both backends fail.
func NewCompositeOrchestrator(registry *Registry, client *redis.Client, ttl time.Duration, dataDir string, opts ...Option) (*Orchestrator, error) {
	fileBackend, err := persistence.NewFileBackend(dataDir)
	if err != nil {
		return nil, err
	}
	o := applyOptions(opts)
	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}
	cache := persistence.NewRedisBackend(client, persistence.WithTTL(ttl))
	return engine.New(engine.Config{
		Registry: registry,
		Backend:  persistence.NewCompositeBackend(cache, fileBackend, logger),
		Observer: o.observer,
		Logger:   o.logger,
	})
}

// NewOrchestratorFromEnv builds an Orchestrator from environment variables
// (PROCFLOW_BACKEND, PROCFLOW_DATA_DIR, REDIS_URL, REDIS_TTL_SECONDS,
// PROCFLOW_SQLITE_DSN), honoring a .env file when present.
func NewOrchestratorFromEnv(registry *Registry, opts ...Option) (*Orchestrator, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	switch cfg.Backend {
	case config.ModeMemory:
		return NewMemoryOrchestrator(registry, opts...)
	case config.ModeFile:
		return NewFileOrchestrator(registry, cfg.DataDir, opts...)
	case config.ModeRedis:
		client, err := redisClientFromURL(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		return NewRedisOrchestrator(registry, client, cfg.RedisTTL, opts...)
	case config.ModeSQLite:
		db, err := sql.Open("sqlite", cfg.SQLiteDSN)
		if err != nil {
			return nil, err
		}
		return NewSQLiteOrchestrator(registry, db, opts...)
	case config.ModeComposite:
		client, err := redisClientFromURL(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		return NewCompositeOrchestrator(registry, client, cfg.RedisTTL, cfg.DataDir, opts...)
	default:
		return NewFileOrchestrator(registry, cfg.DataDir, opts...)
	}
}

func redisClientFromURL(url string) (*redis.Client, error) {
	redisOpts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return redis.NewClient(redisOpts), nil
}

// Convenience helpers that just forward to the underlying Orchestrator.

// Execute handles one conversational turn for a (user, service) pair.
func Execute(ctx context.Context, orc *Orchestrator, serviceName, userID string, payload map[string]any) (*AgentResponse, error) {
	return orc.ExecuteWorkflow(ctx, Request{
		ServiceName: serviceName,
		UserID:      userID,
		Payload:     payload,
	})
}

// Abandon discards a user's in-progress state for one service.
func Abandon(ctx context.Context, orc *Orchestrator, userID, serviceName string) (bool, error) {
	return orc.RemoveServiceState(ctx, userID, serviceName)
}

// Forget discards everything persisted for a user across all services.
func Forget(ctx context.Context, orc *Orchestrator, userID string) (bool, error) {
	return orc.RemoveUserRecord(ctx, userID)
}
