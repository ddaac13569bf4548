package config

import (
	"context"
	"fmt"
	"time"

	"petvet/internal/docstore"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	maxRetries    = 5
	retryInterval = 5 * time.Second
)

// retry calls connect until it succeeds, maxRetries is reached or ctx is done
func retry(ctx context.Context, log logrus.FieldLogger, what string, connect func() error) error {
	var err error
	for i := 0; i < maxRetries; i++ {
		if err = connect(); err == nil {
			log.Infof("Successfully connected to %s", what)
			return nil
		}
		log.WithError(err).Warnf("Failed to connect to %s (attempt %d/%d). Retrying in %v...", what, i+1, maxRetries, retryInterval)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
		}
	}
	return fmt.Errorf("unable to connect to %s after %d attempts: %w", what, maxRetries, err)
}

// ConnectDB establishes a connection to the PostgreSQL database
func ConnectDB(ctx context.Context, cfg DBConfig, log logrus.FieldLogger) (*pgxpool.Pool, error) {
	var pool *pgxpool.Pool
	err := retry(ctx, log, "PostgreSQL", func() error {
		p, err := pgxpool.New(ctx, cfg.DSN())
		if err != nil {
			return err
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			return err
		}
		pool = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pool, nil
}

// ConnectMongo establishes a connection to MongoDB
func ConnectMongo(ctx context.Context, cfg MongoConfig, log logrus.FieldLogger) (*mongo.Client, error) {
	var client *mongo.Client
	err := retry(ctx, log, "MongoDB", func() error {
		c, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
		if err != nil {
			return err
		}
		if err := c.Ping(ctx, readpref.Primary()); err != nil {
			_ = c.Disconnect(ctx)
			return err
		}
		client = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}

// AutoMigrate creates the documents table if it doesn't exist
func AutoMigrate(ctx context.Context, db docstore.PgxIface, log logrus.FieldLogger) error {
	if _, err := db.Exec(ctx, docstore.PostgresSchema); err != nil {
		return fmt.Errorf("unable to apply migrations: %w", err)
	}
	log.Info("AutoMigrate applied successfully")
	return nil
}

// OpenStore connects the backing store selected by cfg.StoreDriver and prepares it
// for use.
func OpenStore(ctx context.Context, cfg *Config, opts docstore.Options, log logrus.FieldLogger) (docstore.Store, error) {
	log = log.WithField("driver", cfg.StoreDriver)

	switch cfg.StoreDriver {
	case DriverMemory:
		log.Warn("Using in-memory store, data is lost on restart")
		return docstore.NewMemoryStore(opts), nil

	case DriverFile:
		log.WithField("path", cfg.StoreFilePath).Info("Using JSON file store")
		return docstore.NewFileStore(cfg.StoreFilePath, opts), nil

	case DriverMongo:
		client, err := ConnectMongo(ctx, cfg.Mongo, log)
		if err != nil {
			return nil, err
		}
		store := docstore.NewMongoStore(client, cfg.Mongo.Database, opts)
		if err := store.EnsureIndexes(ctx); err != nil {
			_ = store.Close(ctx)
			return nil, err
		}
		return store, nil

	case DriverPostgres:
		pool, err := ConnectDB(ctx, cfg.DB, log)
		if err != nil {
			return nil, err
		}
		if err := AutoMigrate(ctx, pool, log); err != nil {
			pool.Close()
			return nil, err
		}
		store := docstore.NewPostgresStore(pool, opts)
		if err := store.EnsureIndexes(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		return store, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}
