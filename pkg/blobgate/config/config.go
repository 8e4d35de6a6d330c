// Package config loads gateway configuration from the environment and
// wires the concrete repository, object store and service together.
package config

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/blobgate/blobgate/pkg/blobgate"
	"github.com/blobgate/blobgate/pkg/blobgate/filetype"
	"github.com/blobgate/blobgate/pkg/blobgate/migrate"
	"github.com/blobgate/blobgate/pkg/blobgate/repo/postgres"
	"github.com/blobgate/blobgate/pkg/blobgate/storage/s3"
)

type Config struct {
	Server  ServerConfig
	DB      DbConfig
	S3      S3Config
	Migrate MigrateConfig
}

type ServerConfig struct {
	Host string `env:"BLOBGATE_HOST" env-default:"0.0.0.0"`
	Port uint16 `env:"BLOBGATE_PORT" env-default:"8080"`
}

type DbConfig struct {
	Host     string `env:"BLOBGATE_PG_HOST" env-default:"localhost"`
	Port     uint16 `env:"BLOBGATE_PG_PORT" env-default:"5432"`
	Name     string `env:"BLOBGATE_PG_NAME" env-default:"blobgate"`
	User     string `env:"BLOBGATE_PG_USER" env-default:"blobgate"`
	Password string `env:"BLOBGATE_PG_PASSWORD" env-default:"pwd"`
}

type S3Config struct {
	Endpoint        string `env:"AWS_S3_ENDPOINT" env-default:""`
	AccessKeyID     string `env:"AWS_ACCESS_KEY_ID" env-default:""`
	SecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" env-default:""`
	Region          string `env:"AWS_S3_REGION" env-default:"us-east-1"`
	UsePathStyle    bool   `env:"AWS_S3_USE_PATH_STYLE" env-default:"true"`
}

type MigrateConfig struct {
	PageSize     int           `env:"BLOBGATE_MIGRATE_PAGE_SIZE" env-default:"1000"`
	Workers      int           `env:"BLOBGATE_MIGRATE_WORKERS" env-default:"8"`
	ReadGate     int           `env:"BLOBGATE_MIGRATE_READ_GATE" env-default:"3"`
	PutGate      int           `env:"BLOBGATE_MIGRATE_PUT_GATE" env-default:"6"`
	LedgerGate   int           `env:"BLOBGATE_MIGRATE_LEDGER_GATE" env-default:"12"`
	StuckTimeout time.Duration `env:"BLOBGATE_MIGRATE_STUCK_TIMEOUT" env-default:"30m"`
	MaxAttempts  int           `env:"BLOBGATE_MIGRATE_MAX_ATTEMPTS" env-default:"5"`
	MaxErrors    int           `env:"BLOBGATE_MIGRATE_MAX_ERRORS" env-default:"100"`
	DryRun       bool          `env:"BLOBGATE_MIGRATE_DRY_RUN" env-default:"false"`
	SkipExisting bool          `env:"BLOBGATE_MIGRATE_SKIP_EXISTING" env-default:"false"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	return &cfg, nil
}

func (c DbConfig) databaseURL() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:   c.Name,
	}
	return u.String()
}

// NewDbPool opens and pings a pgx connection pool.
func NewDbPool(ctx context.Context, cfg DbConfig) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, cfg.databaseURL())
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

func newObjectStore(cfg S3Config) (blobgate.ObjectStore, error) {
	backend, err := s3.New(s3.Config{
		Region:          cfg.Region,
		AccessKeyID:     cfg.AccessKeyID,
		SecretAccessKey: cfg.SecretAccessKey,
		Endpoint:        cfg.Endpoint,
		UsePathStyle:    cfg.UsePathStyle,
	})
	if err != nil {
		return nil, err
	}
	return backend, nil
}

// BuildService wires the postgres repository, S3 store and type
// inspector into a ready service.
func (c *Config) BuildService(pool *pgxpool.Pool, logger *slog.Logger) (blobgate.Service, error) {
	store, err := newObjectStore(c.S3)
	if err != nil {
		return nil, fmt.Errorf("build object store: %w", err)
	}

	return blobgate.New(
		blobgate.WithRepository(postgres.NewWithPool(pool)),
		blobgate.WithObjectStore(store),
		blobgate.WithTypeInspector(filetype.NewInspector()),
		blobgate.WithLogger(logger),
	)
}

// BuildRunner wires the postgres ledger, legacy source and S3 store
// into a migration runner.
func (c *Config) BuildRunner(pool *pgxpool.Pool, logger *slog.Logger, onProgress func(migrate.Progress)) (*migrate.Runner, error) {
	store, err := newObjectStore(c.S3)
	if err != nil {
		return nil, fmt.Errorf("build object store: %w", err)
	}

	opts := migrate.Options{
		PageSize:     c.Migrate.PageSize,
		Workers:      c.Migrate.Workers,
		ReadGate:     c.Migrate.ReadGate,
		PutGate:      c.Migrate.PutGate,
		LedgerGate:   c.Migrate.LedgerGate,
		StuckTimeout: c.Migrate.StuckTimeout,
		MaxAttempts:  c.Migrate.MaxAttempts,
		MaxErrors:    c.Migrate.MaxErrors,
		DryRun:       c.Migrate.DryRun,
		SkipExisting: c.Migrate.SkipExisting,
		OnProgress:   onProgress,
	}

	return migrate.NewRunner(
		postgres.NewLegacySource(pool),
		postgres.NewLedger(pool),
		store,
		migrate.NewBucketRouter(nil),
		logger,
		opts,
	), nil
}
