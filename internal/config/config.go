// Package config loads runtime configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// Config is the full runtime configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Logging  LoggingConfig
	Auction  AuctionConfig
	Lock     LockConfig
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Addr            string        `env:"SERVER_ADDR,default=:8080"`
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT,default=15s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT,default=30s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT,default=10s"`

	// AuthTokens is a comma-separated list of accepted bearer tokens.
	// Empty disables auth.
	AuthTokens string `env:"API_AUTH_TOKENS,default="`

	AuditLogPath   string `env:"AUDIT_LOG_PATH,default="`
	RateLimitRPS   int    `env:"RATE_LIMIT_RPS,default=5"`
	RateLimitBurst int    `env:"RATE_LIMIT_BURST,default=10"`
}

// Tokens splits the configured bearer tokens.
func (c ServerConfig) Tokens() []string {
	var tokens []string
	for _, token := range strings.Split(c.AuthTokens, ",") {
		token = strings.TrimSpace(token)
		if token != "" {
			tokens = append(tokens, token)
		}
	}
	return tokens
}

// DatabaseConfig controls the PostgreSQL pool. An empty URL selects the
// in-memory store.
type DatabaseConfig struct {
	URL             string        `env:"DATABASE_URL,default="`
	MaxOpenConns    int           `env:"DATABASE_MAX_OPEN_CONNS,default=10"`
	MaxIdleConns    int           `env:"DATABASE_MAX_IDLE_CONNS,default=5"`
	ConnMaxLifetime time.Duration `env:"DATABASE_CONN_MAX_LIFETIME,default=30m"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL,default=info"`
	Format string `env:"LOG_FORMAT,default=json"`
}

// AuctionConfig bounds the auction round phases.
type AuctionConfig struct {
	SubmissionWindow time.Duration `env:"AUCTION_SUBMISSION_WINDOW,default=1h"`
	BiddingWindow    time.Duration `env:"AUCTION_BIDDING_WINDOW,default=1h"`
}

// LockConfig controls lock transaction verification.
type LockConfig struct {
	RPCURL           string        `env:"ETH_RPC_URL,default=http://localhost:8545"`
	ChainID          int64         `env:"ETH_CHAIN_ID,default=1"`
	RecipientAddress string        `env:"LOCK_RECIPIENT_ADDRESS,default="`
	AmountWei        string        `env:"LOCK_AMOUNT_WEI,default="`
	MinConfirmations int           `env:"LOCK_MIN_CONFIRMATIONS,default=3"`
	PollAttempts     int           `env:"LOCK_POLL_ATTEMPTS,default=5"`
	PollInterval     time.Duration `env:"LOCK_POLL_INTERVAL,default=3s"`
	// MaxAttempts caps verification attempts across calls; zero disables
	// the cap.
	MaxAttempts int `env:"LOCK_MAX_ATTEMPTS,default=0"`
}

// Validate checks the settings verification cannot run without. An empty
// recipient or amount would make every claim fail with a misleading mismatch
// instead of a startup error.
func (c LockConfig) Validate() error {
	if strings.TrimSpace(c.RecipientAddress) == "" {
		return fmt.Errorf("LOCK_RECIPIENT_ADDRESS is required")
	}
	if strings.TrimSpace(c.AmountWei) == "" {
		return fmt.Errorf("LOCK_AMOUNT_WEI is required")
	}
	_, err := c.AmountWeiBig()
	return err
}

// AmountWeiBig parses the configured lock amount. Nil when unset.
func (c LockConfig) AmountWeiBig() (*big.Int, error) {
	raw := strings.TrimSpace(c.AmountWei)
	if raw == "" {
		return nil, nil
	}
	wei, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, fmt.Errorf("malformed LOCK_AMOUNT_WEI %q", c.AmountWei)
	}
	return wei, nil
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envdecode.StrictDecode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode environment: %w", err)
	}
	return cfg, nil
}
