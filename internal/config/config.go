package config

import (
	"context"
	"fmt"
	"time"

	"github.com/anky/otc-indexer/internal/common"
	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
	"github.com/sirupsen/logrus"
)

type Config struct {
	RPCURL          string  `env:"RPC_URL,default=http://localhost:8545"`
	RPCWSURL        string  `env:"RPC_WS_URL"`
	RPCRate         float64 `env:"RPC_RATE,default=10"`
	ContractAddress string  `env:"CONTRACT_ADDRESS,required"`
	StartBlock      int64   `env:"START_BLOCK,default=0"`
	FinalityDepth   int64   `env:"FINALITY_DEPTH,default=5"`
	StrictListings  bool    `env:"STRICT_LISTINGS,default=false"`

	DatabaseURL string `env:"DATABASE_URL"`

	BackendBaseURL string        `env:"BACKEND_API_BASE_URL,default=https://poiesis.anky.app"`
	IndexerAPIKey  string        `env:"INDEXER_API_KEY"`
	NotifyTimeout  time.Duration `env:"NOTIFY_TIMEOUT,default=10s"`
	NotifyPending  int           `env:"NOTIFY_MAX_PENDING,default=1000000"`

	KafkaBrokers string `env:"KAFKA_BROKERS"`
	KafkaTopic   string `env:"KAFKA_TOPIC,default=otc-events"`

	APIKey     string `env:"API_KEY"`
	SentryURL  string `env:"SENTRY_URL"`
	DiscordURL string `env:"DISCORD_URL"`
	LogLevel   string `env:"LOG_LEVEL,default=info"`
}

// New loads the optional env file at envpath, then reads the configuration from the environment
func New(ctx context.Context, envpath string) (*Config, error) {
	if envpath != "" {
		err := godotenv.Load(envpath)
		if err != nil {
			return nil, err
		}
	}

	return FromLookuper(ctx, envconfig.OsLookuper())
}

// FromLookuper reads the configuration from l
func FromLookuper(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	cfg := &Config{}
	err := envconfig.ProcessWith(ctx, cfg, l)
	if err != nil {
		return nil, err
	}

	err = cfg.validate()
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if !common.IsHexAddress(c.ContractAddress) {
		return fmt.Errorf("CONTRACT_ADDRESS is not an address: %q", c.ContractAddress)
	}

	if c.StartBlock < 0 {
		return fmt.Errorf("START_BLOCK must not be negative: %d", c.StartBlock)
	}

	if c.FinalityDepth < 0 {
		return fmt.Errorf("FINALITY_DEPTH must not be negative: %d", c.FinalityDepth)
	}

	if c.NotifyPending < 0 {
		return fmt.Errorf("NOTIFY_MAX_PENDING must not be negative: %d", c.NotifyPending)
	}

	if c.RPCRate < 0 {
		return fmt.Errorf("RPC_RATE must not be negative: %v", c.RPCRate)
	}

	_, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}

	return nil
}

// Level returns the configured log level
func (c *Config) Level() logrus.Level {
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}
