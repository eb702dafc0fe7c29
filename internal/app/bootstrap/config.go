package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

// Config is the resolved runtime configuration for the settlement service.
type Config struct {
	ServiceID string

	HTTPPort int
	GRPCPort int

	DatabaseURL string
	RedisURL    string

	// ChainID and AuthorityAddress pin the signing domain. Every deployment
	// of this service with a different pair is a different settlement venue,
	// and signatures do not carry across.
	ChainID          int64
	AuthorityAddress string

	AssetHubBaseURL      string
	AssetHubServiceToken string
	AssetHubTimeout      time.Duration

	AuthTokenPublicKeyPEM string
	AllowEphemeralAuth    bool

	CapabilityCacheTTL time.Duration
	IdempotencyTTL     time.Duration

	MaxDBConns         int32
	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxLeaseTTL     time.Duration
	OutboxMaxAttempts  int

	KafkaBrokers        []string
	KafkaTopicFulfilled string
	KafkaTopicCancelled string
}

// configFile mirrors the YAML schema used by configs/default.yaml.
// It is intentionally separate from Config so runtime-only fields stay internal.
type configFile struct {
	Service struct {
		ID       string `yaml:"id"`
		HTTPPort int    `yaml:"http_port"`
		GRPCPort int    `yaml:"grpc_port"`
	} `yaml:"service"`
	Dependencies struct {
		PostgresURL  string   `yaml:"postgres_url"`
		RedisURL     string   `yaml:"redis_url"`
		KafkaBrokers []string `yaml:"kafka_brokers"`
	} `yaml:"dependencies"`
	Settlement struct {
		ChainID   int64  `yaml:"chain_id"`
		Authority string `yaml:"authority"`
	} `yaml:"settlement"`
	AssetHub struct {
		BaseURL      string `yaml:"base_url"`
		ServiceToken string `yaml:"service_token"`
	} `yaml:"asset_hub"`
}

// LoadConfig resolves configuration in priority order: built-in defaults, then
// the YAML file when present, then environment overrides. A missing file is
// not an error; a malformed one is.
func LoadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if err := cfg.applyFile(path); err != nil {
		return Config{}, err
	}
	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func defaultConfig() Config {
	return Config{
		ServiceID:           "Settlement-Service",
		HTTPPort:            8080,
		GRPCPort:            9090,
		ChainID:             1,
		AssetHubTimeout:     8 * time.Second,
		AllowEphemeralAuth:  true,
		CapabilityCacheTTL:  5 * time.Minute,
		IdempotencyTTL:      24 * time.Hour,
		MaxDBConns:          20,
		OutboxPollInterval:  2 * time.Second,
		OutboxBatchSize:     100,
		OutboxLeaseTTL:      30 * time.Second,
		OutboxMaxAttempts:   5,
		KafkaTopicFulfilled: "settlement.order.fulfilled",
		KafkaTopicCancelled: "settlement.order.cancelled",
	}
}

func (cfg *Config) applyFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil
	}

	var f configFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	if f.Service.ID != "" {
		cfg.ServiceID = f.Service.ID
	}
	if f.Service.HTTPPort > 0 {
		cfg.HTTPPort = f.Service.HTTPPort
	}
	if f.Service.GRPCPort > 0 {
		cfg.GRPCPort = f.Service.GRPCPort
	}
	if f.Dependencies.PostgresURL != "" {
		cfg.DatabaseURL = f.Dependencies.PostgresURL
	}
	if f.Dependencies.RedisURL != "" {
		cfg.RedisURL = f.Dependencies.RedisURL
	}
	if len(f.Dependencies.KafkaBrokers) > 0 {
		cfg.KafkaBrokers = f.Dependencies.KafkaBrokers
	}
	if f.Settlement.ChainID > 0 {
		cfg.ChainID = f.Settlement.ChainID
	}
	if f.Settlement.Authority != "" {
		cfg.AuthorityAddress = f.Settlement.Authority
	}
	if f.AssetHub.BaseURL != "" {
		cfg.AssetHubBaseURL = f.AssetHub.BaseURL
	}
	if f.AssetHub.ServiceToken != "" {
		cfg.AssetHubServiceToken = f.AssetHub.ServiceToken
	}
	return nil
}

func (cfg *Config) applyEnv() {
	cfg.DatabaseURL = envOrDefault("DB_URL", envOrDefault("POSTGRES_URL", cfg.DatabaseURL))
	cfg.RedisURL = envOrDefault("REDIS_URL", cfg.RedisURL)
	cfg.KafkaBrokers = envCSV("KAFKA_BROKERS", cfg.KafkaBrokers)
	cfg.KafkaTopicFulfilled = envOrDefault("KAFKA_TOPIC_ORDER_FULFILLED", cfg.KafkaTopicFulfilled)
	cfg.KafkaTopicCancelled = envOrDefault("KAFKA_TOPIC_ORDER_CANCELLED", cfg.KafkaTopicCancelled)
	cfg.AuthorityAddress = envOrDefault("SETTLEMENT_AUTHORITY", cfg.AuthorityAddress)
	cfg.AssetHubBaseURL = envOrDefault("ASSET_HUB_URL", cfg.AssetHubBaseURL)
	cfg.AssetHubServiceToken = envOrDefault("ASSET_HUB_SERVICE_TOKEN", cfg.AssetHubServiceToken)
	cfg.AuthTokenPublicKeyPEM = envOrDefault("AUTH_TOKEN_PUBLIC_KEY_PEM", cfg.AuthTokenPublicKeyPEM)
	cfg.AllowEphemeralAuth = envBool("AUTH_ALLOW_EPHEMERAL", cfg.AllowEphemeralAuth)

	cfg.HTTPPort = envInt("HTTP_PORT", cfg.HTTPPort)
	cfg.GRPCPort = envInt("GRPC_PORT", cfg.GRPCPort)
	cfg.ChainID = int64(envInt("CHAIN_ID", int(cfg.ChainID)))
	cfg.MaxDBConns = int32(envInt("DB_MAX_CONNS", int(cfg.MaxDBConns)))
	cfg.OutboxBatchSize = envInt("OUTBOX_BATCH_SIZE", cfg.OutboxBatchSize)
	cfg.OutboxMaxAttempts = envInt("OUTBOX_MAX_ATTEMPTS", cfg.OutboxMaxAttempts)

	cfg.AssetHubTimeout = envSeconds("ASSET_HUB_TIMEOUT_SECONDS", cfg.AssetHubTimeout)
	cfg.CapabilityCacheTTL = envSeconds("CAPABILITY_CACHE_TTL_SECONDS", cfg.CapabilityCacheTTL)
	cfg.IdempotencyTTL = time.Duration(envInt("IDEMPOTENCY_TTL_HOURS", int(cfg.IdempotencyTTL.Hours()))) * time.Hour
	cfg.OutboxPollInterval = envSeconds("OUTBOX_POLL_SECONDS", cfg.OutboxPollInterval)
	cfg.OutboxLeaseTTL = envSeconds("OUTBOX_LEASE_TTL_SECONDS", cfg.OutboxLeaseTTL)
}

func (cfg Config) validate() error {
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("missing DB_URL/POSTGRES_URL")
	}
	if cfg.RedisURL == "" {
		return fmt.Errorf("missing REDIS_URL")
	}
	if cfg.ChainID <= 0 {
		return fmt.Errorf("CHAIN_ID must be positive")
	}
	if !common.IsHexAddress(cfg.AuthorityAddress) {
		return fmt.Errorf("missing or malformed SETTLEMENT_AUTHORITY")
	}
	if cfg.AssetHubBaseURL == "" {
		return fmt.Errorf("missing ASSET_HUB_URL")
	}
	if cfg.AuthTokenPublicKeyPEM == "" && !cfg.AllowEphemeralAuth {
		return fmt.Errorf("missing AUTH_TOKEN_PUBLIC_KEY_PEM")
	}
	return nil
}

// Empty env values count as unset for every helper below, so a deployment can
// blank a variable without clobbering the configured fallback.

func envOrDefault(name, fallback string) string {
	value, ok := os.LookupEnv(name)
	if !ok || value == "" {
		return fallback
	}
	return value
}

func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envSeconds(name string, fallback time.Duration) time.Duration {
	return time.Duration(envInt(name, int(fallback.Seconds()))) * time.Second
}

func envBool(name string, fallback bool) bool {
	switch strings.ToLower(os.Getenv(name)) {
	case "1", "true", "yes":
		return true
	case "0", "false", "no":
		return false
	}
	return fallback
}

func envCSV(name string, fallback []string) []string {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	var parts []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	if len(parts) == 0 {
		return fallback
	}
	return parts
}
