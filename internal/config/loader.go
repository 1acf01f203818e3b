package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies QLICKD_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known QLICKD_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Engine ──
	setStr(&cfg.Engine.SelfAddress, "QLICKD_ENGINE_SELF_ADDRESS")
	setStr(&cfg.Engine.VenueAddress, "QLICKD_ENGINE_VENUE_ADDRESS")
	setStr(&cfg.Engine.FaucetAddress, "QLICKD_ENGINE_FAUCET_ADDRESS")

	// ── Verifier ──
	setStr(&cfg.Verifier.BaseURL, "QLICKD_VERIFIER_BASE_URL")
	setInt(&cfg.Verifier.TimeoutSeconds, "QLICKD_VERIFIER_TIMEOUT_SECONDS")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "QLICKD_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "QLICKD_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "QLICKD_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "QLICKD_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "QLICKD_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "QLICKD_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "QLICKD_POSTGRES_SSLMODE")
	setStr(&cfg.Postgres.SSLMode, "QLICKD_POSTGRES_SSL_MODE") // compatibility alias
	setInt(&cfg.Postgres.PoolMaxConns, "QLICKD_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "QLICKD_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "QLICKD_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "QLICKD_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "QLICKD_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "QLICKD_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "QLICKD_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "QLICKD_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "QLICKD_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "QLICKD_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "QLICKD_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "QLICKD_S3_REGION")
	setStr(&cfg.S3.Bucket, "QLICKD_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "QLICKD_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "QLICKD_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "QLICKD_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "QLICKD_S3_FORCE_PATH_STYLE")

	// ── Server ──
	setInt(&cfg.Server.Port, "QLICKD_SERVER_PORT")
	setStr(&cfg.Server.APIKey, "QLICKD_SERVER_API_KEY")
	setStringSlice(&cfg.Server.CORSOrigins, "QLICKD_SERVER_CORS_ORIGINS")

	// ── Top-level ──
	setStr(&cfg.Mode, "QLICKD_MODE")
	setStr(&cfg.LogLevel, "QLICKD_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
