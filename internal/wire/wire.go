// Package wire provides dependency injection for the procure CLI.
// It creates singleton services with lazy initialization from the
// configuration in the working directory.
package wire

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"
	"os"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/example/procure/internal/adapters/cache"
	cliadapter "github.com/example/procure/internal/adapters/cli"
	"github.com/example/procure/internal/adapters/postgres"
	"github.com/example/procure/internal/adapters/sqlite"
	"github.com/example/procure/internal/app"
	"github.com/example/procure/internal/config"
	"github.com/example/procure/internal/db"
	"github.com/example/procure/internal/logging"
	"github.com/example/procure/internal/ports/primary"
	"github.com/example/procure/internal/ports/secondary"
)

var (
	requestService primary.RequestService
	stageService   primary.StageService
	scopeService   primary.ScopeService
	auditService   primary.AuditService
	budgetService  primary.BudgetService

	sqliteDB    *sql.DB
	pgDB        *postgres.DB
	redisClient *redis.Client
	logger      zerolog.Logger

	configDir = "."
	once      sync.Once
)

// SetConfigDir changes where configuration is read from. It has no effect
// once services are initialized.
func SetConfigDir(dir string) {
	configDir = dir
}

// initServices initializes all services and their dependencies.
// This is called once via sync.Once.
func initServices() {
	cfg, err := config.LoadConfig(configDir)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger = logging.New(cfg.Log)
	ctx := context.Background()

	// Create repository adapters (secondary ports) for the configured store
	var (
		requestRepo    secondary.RequestRepository
		transitionRepo secondary.TransitionRepository
		refRepo        secondary.ReferenceRepository
	)
	switch cfg.Store.Driver {
	case config.DriverPostgres:
		pgDB, err = postgres.Connect(ctx, postgres.Config{DSN: cfg.Store.PostgresDSN}, logger)
		if err != nil {
			log.Fatalf("failed to connect to postgres: %v", err)
		}
		if err := pgDB.Migrate(ctx); err != nil {
			log.Fatalf("failed to migrate postgres schema: %v", err)
		}
		requestRepo = postgres.NewRequestRepository(pgDB)
		transitionRepo = postgres.NewTransitionRepository(pgDB)
		refRepo = postgres.NewReferenceRepository(pgDB)
	default:
		sqliteDB, err = db.Open(cfg.Store.SQLitePath, logger)
		if err != nil {
			log.Fatalf("failed to initialize database: %v", err)
		}
		requestRepo = sqlite.NewRequestRepository(sqliteDB)
		transitionRepo = sqlite.NewTransitionRepository(sqliteDB)
		refRepo = sqlite.NewReferenceRepository(sqliteDB)
	}

	var scopeCache secondary.ScopeCache
	switch cfg.Cache.Driver {
	case config.CacheRedis:
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.Cache.RedisAddr, DB: cfg.Cache.RedisDB})
		scopeCache = cache.NewRedisScopeCache(redisClient, cfg.Cache.TTL, logger)
	default:
		scopeCache = cache.NewMemoryScopeCache()
	}

	// Create services (primary ports implementation)
	scopes := app.NewScopeService(refRepo, requestRepo, scopeCache, logger)
	scopeService = scopes
	requestService = app.NewRequestService(requestRepo, refRepo, scopes, logger)
	stageService = app.NewStageService(requestRepo, scopes, logger)
	auditService = app.NewAuditService(requestRepo, transitionRepo, scopes)
	budgetService = app.NewBudgetService(requestRepo, refRepo, scopes)

	logger.Debug().
		Str("store", cfg.Store.Driver).
		Str("cache", cfg.Cache.Driver).
		Msg("services initialized")
}

// SeedDemo loads the demo organization and reference data.
func SeedDemo() error {
	once.Do(initServices)
	if sqliteDB == nil {
		return fmt.Errorf("seed demo requires the %s store", config.DriverSQLite)
	}
	return db.SeedDemo(sqliteDB)
}

// Close releases the store and cache connections.
func Close() {
	if sqliteDB != nil {
		_ = sqliteDB.Close()
	}
	if pgDB != nil {
		pgDB.Close()
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
}

// RequestAdapter returns a new RequestAdapter writing to stdout.
// Each call creates a new adapter (adapters are stateless translators).
func RequestAdapter() *cliadapter.RequestAdapter {
	return RequestAdapterWithOutput(os.Stdout)
}

// RequestAdapterWithOutput returns a new RequestAdapter writing to the given output.
func RequestAdapterWithOutput(out io.Writer) *cliadapter.RequestAdapter {
	once.Do(initServices)
	return cliadapter.NewRequestAdapter(requestService, scopeService, out)
}

// StageAdapter returns a new StageAdapter writing to stdout.
func StageAdapter() *cliadapter.StageAdapter {
	return StageAdapterWithOutput(os.Stdout)
}

// StageAdapterWithOutput returns a new StageAdapter writing to the given output.
func StageAdapterWithOutput(out io.Writer) *cliadapter.StageAdapter {
	once.Do(initServices)
	return cliadapter.NewStageAdapter(stageService, auditService, budgetService, out)
}
