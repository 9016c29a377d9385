package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the vote ingestion/tallying core.
type Config struct {
	// Server Configuration
	ListenAddr  string
	HealthAddr  string
	MetricsAddr string

	// Batch queue (C6). BATCH_ENABLED=false makes the queue flush every
	// Enqueue synchronously, one ledger write per request.
	BatchEnabled   bool
	BatchSize      int
	BatchFlushMS   int
	BlobBacklogCap int

	// Database (C7 checkpoint store / C2 blob store). USE_DATABASE=false
	// runs with in-process state only, suitable for development.
	UseDatabase       bool
	DatabaseURL       string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration

	// Blob store (C2) write-behind writer target.
	BlobWriterEndpoint string
	BlobWriterBucket   string

	// Anchor orchestrator (C9). USE_BITCOIN_ANCHORING selects between an
	// external OpenTimestamps-style calendar client and a direct EVM anchor
	// contract call.
	UseBitcoinAnchoring  bool
	TimestampingURL      string
	EthereumURL          string
	EthChainID           int64
	EthPrivateKey        string
	AnchorContractAddress string
	AnchorBaseDelayMS    int

	// Edge-sync server (C11). RSAPrivateKeyPath is this node's own signing
	// key when the core itself submits batches upstream; NodeKeysDir holds
	// PEM-encoded public keys for every edge node id this cloud trusts,
	// named <node_id>.pub.
	RSAPrivateKeyPath string
	NodeKeysDir       string

	// Credential issuance (§9 credential-signature feature flag).
	RequireCredentialSignature bool

	// Security
	JWTSecret         string
	CORSOrigins       []string
	TLSEnabled        bool
	RateLimitRequests int
	RateLimitWindow   int

	LogLevel string
}

// Load reads configuration from environment variables. Required values have
// no defaults; call Validate() after Load() before starting the service.
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:  getEnv("API_HOST", "0.0.0.0") + ":" + getEnv("API_PORT", "8080"),
		HealthAddr:  getEnv("API_HOST", "0.0.0.0") + ":" + getEnv("HEALTH_CHECK_PORT", "8081"),
		MetricsAddr: getEnv("API_HOST", "0.0.0.0") + ":" + getEnv("METRICS_PORT", "9090"),

		BatchEnabled:   getEnvBool("BATCH_ENABLED", true),
		BatchSize:      getEnvInt("BATCH_SIZE", 100),
		BatchFlushMS:   getEnvInt("BATCH_FLUSH_MS", 100),
		BlobBacklogCap: getEnvInt("BLOB_BACKLOG_CAP", 1000),

		UseDatabase:       getEnvBool("USE_DATABASE", false),
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		DBMaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
		DBConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", time.Hour),

		BlobWriterEndpoint: getEnv("BLOB_WRITER_ENDPOINT", ""),
		BlobWriterBucket:   getEnv("BLOB_WRITER_BUCKET", "vote-entries"),

		UseBitcoinAnchoring:   getEnvBool("USE_BITCOIN_ANCHORING", false),
		TimestampingURL:       getEnv("TIMESTAMPING_URL", ""),
		EthereumURL:           getEnv("ETHEREUM_URL", ""),
		EthChainID:            getEnvInt64("ETH_CHAIN_ID", 11155111),
		EthPrivateKey:         getEnv("ETH_PRIVATE_KEY", ""),
		AnchorContractAddress: getEnv("ANCHOR_CONTRACT_ADDRESS", ""),
		AnchorBaseDelayMS:     getEnvInt("ANCHOR_BASE_DELAY_MS", 2000),

		RSAPrivateKeyPath: getEnv("RSA_PRIVATE_KEY_PATH", ""),
		NodeKeysDir:       getEnv("EDGE_NODE_KEYS_DIR", "./edge-keys"),

		RequireCredentialSignature: getEnvBool("REQUIRE_CREDENTIAL_SIGNATURE", true),

		JWTSecret:         getEnv("JWT_SECRET", ""),
		CORSOrigins:       strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000"), ","),
		TLSEnabled:        getEnvBool("TLS_ENABLED", true),
		RateLimitRequests: getEnvInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow:   getEnvInt("RATE_LIMIT_WINDOW", 60),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	return cfg, nil
}

// Validate checks that configuration required for a production deployment
// is present and reasonably secure.
func (c *Config) Validate() error {
	var errs []string

	if c.UseDatabase && c.DatabaseURL == "" {
		errs = append(errs, "DATABASE_URL is required when USE_DATABASE=true")
	}
	if c.UseBitcoinAnchoring && c.TimestampingURL == "" {
		errs = append(errs, "TIMESTAMPING_URL is required when USE_BITCOIN_ANCHORING=true")
	}
	if !c.UseBitcoinAnchoring && c.AnchorContractAddress == "" {
		errs = append(errs, "ANCHOR_CONTRACT_ADDRESS is required when USE_BITCOIN_ANCHORING=false")
	}
	if c.JWTSecret == "" {
		errs = append(errs, "JWT_SECRET is required but not set")
	} else if len(c.JWTSecret) < 32 {
		errs = append(errs, "JWT_SECRET must be at least 32 characters for security")
	}
	if !c.TLSEnabled {
		fmt.Println("WARNING: TLS_ENABLED is false - enable TLS for production security")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ValidateForDevelopment performs relaxed validation suitable for local
// development, where most ambient infrastructure runs in-process.
func (c *Config) ValidateForDevelopment() error {
	if c.BatchSize <= 0 {
		return fmt.Errorf("development configuration validation failed: BATCH_SIZE must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
