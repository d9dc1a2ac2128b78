// Package bootstrap builds the runtime object graph from configuration:
// stores, transports, notification sinks and the HTTP handler.
package bootstrap

import (
	"context"
	"crypto/tls"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/wolfman30/clinic-intake/internal/config"
	"github.com/wolfman30/clinic-intake/internal/patients"
	"github.com/wolfman30/clinic-intake/internal/session"
	"github.com/wolfman30/clinic-intake/internal/support"
	"github.com/wolfman30/clinic-intake/pkg/logging"
)

func noop() {}

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// BuildSessionStore selects the session backend. Redis keys expire at
// twice the idle timeout so the sweeper, not Redis, decides when a
// conversation ends.
func BuildSessionStore(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (session.Store, func(), error) {
	switch cfg.SessionBackend {
	case "", "memory":
		return session.NewMemoryStore(), noop, nil
	case "redis":
		client := BuildRedisClient(ctx, cfg, logger, true)
		if client == nil {
			return nil, nil, fmt.Errorf("bootstrap: redis session backend unreachable at %s", cfg.RedisAddr)
		}
		logger.Info("sessions stored in redis", "addr", cfg.RedisAddr)
		return session.NewRedisStore(client, 2*cfg.SessionIdleTimeout), func() { _ = client.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("bootstrap: unknown session backend %q", cfg.SessionBackend)
	}
}

// ConnectPostgresPool returns nil for an empty URL or an unreachable
// database.
func ConnectPostgresPool(ctx context.Context, databaseURL string, logger *logging.Logger) *pgxpool.Pool {
	if strings.TrimSpace(databaseURL) == "" {
		return nil
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		logger.Error("failed to create postgres pool", "error", err)
		return nil
	}
	if err := pool.Ping(ctx); err != nil {
		logger.Error("postgres not reachable", "error", err)
		pool.Close()
		return nil
	}
	return pool
}

// BuildPatientStore returns the durable patient repository, or nil for
// the memory backend where the in-process history is the only copy.
func BuildPatientStore(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (patients.Repository, func(), error) {
	switch cfg.PatientStore {
	case "", "memory":
		return nil, noop, nil
	case "postgres":
		pool := ConnectPostgresPool(ctx, cfg.DatabaseURL, logger)
		if pool == nil {
			return nil, nil, fmt.Errorf("bootstrap: postgres patient store needs a reachable DATABASE_URL")
		}
		logger.Info("patients stored in postgres")
		return patients.NewPostgresRepository(pool), pool.Close, nil
	case "mongo":
		if strings.TrimSpace(cfg.MongoURI) == "" {
			return nil, nil, fmt.Errorf("bootstrap: mongo patient store needs MONGODB_URI")
		}
		client, err := patients.ConnectMongo(ctx, cfg.MongoURI)
		if err != nil {
			return nil, nil, fmt.Errorf("bootstrap: %w", err)
		}
		disconnect := func() { _ = client.Disconnect(context.Background()) }
		repo, err := patients.NewMongoRepository(ctx, client.Database(cfg.MongoDatabase))
		if err != nil {
			disconnect()
			return nil, nil, fmt.Errorf("bootstrap: %w", err)
		}
		logger.Info("patients stored in mongo", "database", cfg.MongoDatabase)
		return repo, disconnect, nil
	default:
		return nil, nil, fmt.Errorf("bootstrap: unknown patient store %q", cfg.PatientStore)
	}
}

// BuildEscalationStore keeps escalations in Postgres when
// ESCALATION_DATABASE_URL is set and in memory otherwise.
func BuildEscalationStore(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (support.Store, func(), error) {
	if strings.TrimSpace(cfg.EscalationDBURL) == "" {
		return support.NewMemoryStore(), noop, nil
	}
	db, err := sql.Open("postgres", cfg.EscalationDBURL)
	if err != nil {
		return nil, nil, fmt.Errorf("bootstrap: open escalation db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("bootstrap: ping escalation db: %w", err)
	}
	logger.Info("escalations stored in postgres")
	return support.NewSQLStore(db), func() { _ = db.Close() }, nil
}
