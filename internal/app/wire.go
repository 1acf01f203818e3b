package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"

	s3blob "github.com/useQlick/qlickd/internal/blob/s3"
	"github.com/useQlick/qlickd/internal/cache/redis"
	"github.com/useQlick/qlickd/internal/config"
	"github.com/useQlick/qlickd/internal/domain"
	"github.com/useQlick/qlickd/internal/ledger"
	"github.com/useQlick/qlickd/internal/platform/verifier"
	"github.com/useQlick/qlickd/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency that the application
// modes need to operate. It is constructed by Wire and torn down by the
// returned cleanup function.
type Dependencies struct {
	// Identities
	Self      common.Address
	VenueAddr common.Address
	Faucet    common.Address

	// Ledger of reference assets, mintable by the faucet account.
	Bank *ledger.Bank

	// Stores (nil in modes without persistence)
	EventStore    domain.EventStore
	MarketStore   *postgres.MarketStore
	ProposalStore *postgres.ProposalStore

	// Caches and bus
	PriceCache domain.PriceCache
	SignalBus  domain.SignalBus

	// Blob storage (nil unless archival is enabled)
	Archiver *s3blob.Archiver

	// Outcome verification
	Gateway domain.VerificationGateway
}

// needsPostgres returns true for modes that require a database connection.
func needsPostgres(mode string) bool {
	switch mode {
	case "serve", "full":
		return true
	default:
		return false
	}
}

// needsS3 returns true for modes that require object storage.
func needsS3(mode string) bool {
	return mode == "full"
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{
		Self:      common.HexToAddress(cfg.Engine.SelfAddress),
		VenueAddr: common.HexToAddress(cfg.Engine.VenueAddress),
		Faucet:    common.HexToAddress(cfg.Engine.FaucetAddress),
	}
	deps.Bank = ledger.NewBank(deps.Faucet)

	// --- Outcome verification ---
	deps.Gateway = verifier.NewClient(
		cfg.Verifier.BaseURL,
		time.Duration(cfg.Verifier.TimeoutSeconds)*time.Second,
	)

	// --- PostgreSQL (only for modes that need persistence) ---
	if needsPostgres(cfg.Mode) {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		// Run migrations if enabled.
		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		deps.EventStore = postgres.NewEventStore(pool)
		deps.MarketStore = postgres.NewMarketStore(pool)
		deps.ProposalStore = postgres.NewProposalStore(pool)
	}

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.PriceCache = redis.NewPriceCache(redisClient)
	deps.SignalBus = redis.NewSignalBus(redisClient)

	// --- S3 blob storage (only for modes that archive snapshots) ---
	if needsS3(cfg.Mode) && cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.Archiver = s3blob.NewArchiver(s3Client)
	}

	logger.InfoContext(ctx, "dependencies wired",
		slog.String("self", deps.Self.Hex()),
		slog.String("venue", deps.VenueAddr.Hex()),
		slog.Bool("postgres", deps.EventStore != nil),
		slog.Bool("s3", deps.Archiver != nil),
	)

	return deps, cleanup, nil
}
