// Package bootstrap turns a loaded Config into the storage backend and host
// data layer shared by the server and the diagnostics CLI.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/gogotex/gogotex/backend/autosave/internal/config"
	"github.com/gogotex/gogotex/backend/autosave/internal/database"
	docservice "github.com/gogotex/gogotex/backend/autosave/internal/document/service"
	"github.com/gogotex/gogotex/backend/autosave/internal/revision/kv"
	"github.com/gogotex/gogotex/backend/autosave/internal/revision/service"
	"github.com/gogotex/gogotex/backend/autosave/internal/users"
	"github.com/gogotex/gogotex/backend/autosave/pkg/logger"
)

// Closer releases a resource opened during bootstrap.
type Closer func()

func noop() {}

// NewRedisClient returns a client for cfg.Redis, or nil when Redis is not
// configured or does not answer a ping.
func NewRedisClient(ctx context.Context, cfg *config.Config) *redis.Client {
	addr := cfg.Redis.Addr()
	if addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warnf("failed to connect to Redis (%s): %v", addr, err)
		_ = client.Close()
		return nil
	}
	logger.Infof("connected to Redis at %s", addr)
	return client
}

// OpenBackend opens the revision storage selected by AUTOSAVE_BACKEND. The
// redis backend reuses client and fails when it is nil.
func OpenBackend(cfg *config.Config, client *redis.Client) (kv.Backend, Closer, error) {
	a := cfg.Autosave
	switch a.Backend {
	case config.BackendRedis:
		if client == nil {
			return nil, noop, fmt.Errorf("redis backend: %w", kv.ErrUnavailable)
		}
		return kv.NewRedisBackend(client, a.RedisNamespace, a.CapacityBytes), noop, nil
	case config.BackendBadger:
		b, err := kv.OpenBadgerBackend(kv.BadgerConfig{Path: a.BadgerPath, Capacity: a.CapacityBytes})
		if err != nil {
			return nil, noop, err
		}
		return b, func() {
			if err := b.Close(); err != nil {
				logger.Warnf("close badger: %v", err)
			}
		}, nil
	default:
		return kv.NewMemoryBackend(a.CapacityBytes), noop, nil
	}
}

// Host is the document data layer restores write into.
type Host struct {
	Users     *users.Service
	Documents docservice.Service
	// Mongo reports whether the repositories are Mongo-backed.
	Mongo bool
}

// OpenHost connects the user and document repositories to MongoDB when
// configured, retrying with backoff, and falls back to memory otherwise.
func OpenHost(ctx context.Context, cfg *config.Config) (*Host, Closer) {
	memory := &Host{
		Users:     users.NewService(users.NewMemoryUserRepository()),
		Documents: docservice.NewMemoryService(),
	}
	if cfg.MongoDB.URI == "" {
		return memory, noop
	}

	const maxAttempts = 5
	backoff := time.Second
	var client *mongo.Client
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		client, err = database.ConnectMongo(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout)
		if err == nil {
			break
		}
		logger.Warnf("attempt %d/%d: failed to connect to MongoDB: %v", attempt, maxAttempts, err)
		if attempt < maxAttempts {
			select {
			case <-ctx.Done():
				return memory, noop
			case <-time.After(backoff):
			}
			backoff *= 2
		}
	}
	if err != nil {
		logger.Warnf("could not connect to MongoDB; using memory-backed documents: %v", err)
		return memory, noop
	}
	closer := func() { _ = client.Disconnect(context.Background()) }

	db := client.Database(cfg.MongoDB.Database)
	docs, err := docservice.NewMongoService(ctx, db.Collection("documents"))
	if err != nil {
		logger.Warnf("document collection setup failed; using memory-backed documents: %v", err)
		closer()
		return memory, noop
	}
	return &Host{
		Users:     users.NewService(users.NewMongoUserRepository(db.Collection("users"))),
		Documents: docs,
		Mongo:     true,
	}, closer
}

// NewRevisionService builds the revision store on backend. host may be nil
// for tools that never restore.
func NewRevisionService(cfg *config.Config, backend kv.Backend, host *Host) (*service.Service, error) {
	opts := service.Options{
		Backend:     backend,
		KeyPrefix:   cfg.Autosave.KeyPrefix,
		IndexKey:    cfg.Autosave.IndexKey,
		MinInterval: cfg.Autosave.MinInterval,
	}
	if host != nil {
		opts.Authors = host.Users
		opts.Documents = host.Documents
	}
	return service.New(opts)
}
