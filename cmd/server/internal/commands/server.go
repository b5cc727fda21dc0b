package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/wolfeidau/tenantd/internal/auth"
	"github.com/wolfeidau/tenantd/internal/logger"
	"github.com/wolfeidau/tenantd/internal/server"
	"github.com/wolfeidau/tenantd/internal/service"
	"github.com/wolfeidau/tenantd/internal/store"
	memorystore "github.com/wolfeidau/tenantd/internal/store/memory"
	mongostore "github.com/wolfeidau/tenantd/internal/store/mongo"
	postgresstore "github.com/wolfeidau/tenantd/internal/store/postgres"
)

type ServerCmd struct {
	// Server configuration
	Listen string `help:"HTTP server listen address" default:"localhost:8080" env:"TENANTD_LISTEN"`

	// Token configuration
	SecretKey       string `help:"shared secret for signing bearer tokens" env:"TENANTD_SECRET_KEY"`
	TokenTTLMinutes int32  `help:"bearer token TTL in minutes" default:"60" env:"TENANTD_TOKEN_TTL_MINUTES"`

	// Store configuration
	StoreType           string        `help:"store type (memory, postgres or mongo)" default:"memory" env:"TENANTD_STORE_TYPE" enum:"memory,postgres,mongo"`
	QueryTimeoutSeconds int32         `help:"per-call store timeout in seconds" default:"10" env:"TENANTD_QUERY_TIMEOUT"`
	ConnectTimeout      time.Duration `help:"maximum time to wait for the initial store connection" default:"30s" env:"TENANTD_CONNECT_TIMEOUT"`

	Postgres PostgresStoreFlags `embed:"" prefix:"postgres-"`
	Mongo    MongoStoreFlags    `embed:"" prefix:"mongo-"`
}

type PostgresStoreFlags struct {
	ConnString string `help:"PostgreSQL connection string" env:"POSTGRES_CONNECTION_STRING"`

	// Connection Pool Configuration
	MaxConns        int32 `help:"maximum number of connections in pool" default:"20"`
	MinConns        int32 `help:"minimum number of connections in pool" default:"5"`
	MaxConnLifetime int32 `help:"maximum connection lifetime in seconds" default:"3600"`
	MaxConnIdleTime int32 `help:"maximum connection idle time in seconds" default:"1800"`

	// Migration Configuration
	AutoMigrate bool `help:"run database migrations on startup" default:"false" env:"TENANTD_POSTGRES_AUTO_MIGRATE"`
}

type MongoStoreFlags struct {
	URI             string `help:"MongoDB connection string" env:"MONGO_URL"`
	Database        string `help:"master database name" default:"MasterDB" env:"TENANTD_MONGO_DATABASE"`
	OrgCollection   string `help:"master organizations collection name" default:"organizations" env:"TENANTD_MONGO_ORG_COLLECTION"`
	AdminCollection string `help:"master admins collection name" default:"admin_users" env:"TENANTD_MONGO_ADMIN_COLLECTION"`
}

func (c *ServerCmd) Validate() error {
	if c.SecretKey == "" {
		return errors.New("secret key is required (--secret-key or TENANTD_SECRET_KEY)")
	}
	if len(c.SecretKey) < 32 {
		return errors.New("secret key must be at least 32 bytes (256 bits) for HMAC-SHA256")
	}
	if c.StoreType == "postgres" && c.Postgres.ConnString == "" {
		return errors.New("PostgreSQL connection string is required (--postgres-conn-string or POSTGRES_CONNECTION_STRING)")
	}
	if c.StoreType == "mongo" && c.Mongo.URI == "" {
		return errors.New("MongoDB connection string is required (--mongo-uri or MONGO_URL)")
	}
	return nil
}

func (c *ServerCmd) Run(globals *Globals) error {
	log := logger.Setup(globals.Debug)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().Str("version", globals.Version).Bool("debug", globals.Debug).Msg("Starting server")

	tenantStore, err := c.connectStore(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to store: %w", err)
	}
	defer tenantStore.Close()

	tokens, err := auth.NewTokenManager(c.SecretKey, time.Duration(c.TokenTTLMinutes)*time.Minute)
	if err != nil {
		return err
	}

	provisioning := service.NewProvisioningService(tenantStore)
	authSvc := service.NewAuthService(tenantStore, tokens)

	srv := configureHTTPServer(c.Listen, server.New(provisioning, authSvc, tokens, log).Routes())

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("listen", c.Listen).Str("store", c.StoreType).Msg("Listening for HTTP connections")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		log.Info().Msg("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down cleanly: %w", err)
		}
	}

	return nil
}

// connectStore builds the configured tenant store, retrying the initial
// connection with exponential backoff until ConnectTimeout elapses.
func (c *ServerCmd) connectStore(ctx context.Context) (store.TenantStore, error) {
	switch c.StoreType {
	case "memory":
		return memorystore.NewTenantStore(), nil

	case "postgres":
		return backoff.Retry(ctx, func() (store.TenantStore, error) {
			pool, err := postgresstore.NewPool(ctx, &postgresstore.PoolConfig{
				ConnString:      c.Postgres.ConnString,
				MaxConns:        c.Postgres.MaxConns,
				MinConns:        c.Postgres.MinConns,
				MaxConnLifetime: c.Postgres.MaxConnLifetime,
				MaxConnIdleTime: c.Postgres.MaxConnIdleTime,
			})
			if err != nil {
				return nil, err
			}
			return postgresstore.NewTenantStore(ctx, pool, &postgresstore.TenantStoreConfig{
				QueryTimeoutSeconds: c.QueryTimeoutSeconds,
				AutoMigrate:         c.Postgres.AutoMigrate,
			})
		}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxElapsedTime(c.ConnectTimeout))

	case "mongo":
		return backoff.Retry(ctx, func() (store.TenantStore, error) {
			return mongostore.NewTenantStore(ctx, &mongostore.TenantStoreConfig{
				URI:                 c.Mongo.URI,
				Database:            c.Mongo.Database,
				OrgCollection:       c.Mongo.OrgCollection,
				AdminCollection:     c.Mongo.AdminCollection,
				QueryTimeoutSeconds: c.QueryTimeoutSeconds,
			})
		}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxElapsedTime(c.ConnectTimeout))

	default:
		return nil, fmt.Errorf("unknown store type %q", c.StoreType)
	}
}
