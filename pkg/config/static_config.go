// Copyright 2025 Trustless Voting System
//
// Static configuration loader: YAML settings for tuning that doesn't belong
// behind an environment variable (per-environment defaults, batch/anchor
// timing, monitoring). Environment variables in the form ${VAR_NAME} or
// ${VAR_NAME:-default} are substituted before parsing, the same convention
// the teacher's anchor config loader used.

package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// StaticConfig holds the YAML-tunable settings for one deployment
// environment.
type StaticConfig struct {
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`

	Election   ElectionSettings   `yaml:"election"`
	BatchQueue BatchQueueSettings `yaml:"batch_queue"`
	Anchor     AnchorSettings     `yaml:"anchor"`
	EdgeSync   EdgeSyncSettings   `yaml:"edge_sync"`
	Database   DatabaseSettings   `yaml:"database"`
	Security   SecuritySettings   `yaml:"security"`
	Monitoring MonitoringSettings `yaml:"monitoring"`
}

// ElectionSettings bounds what an election creation request may ask for.
type ElectionSettings struct {
	DefaultThreshold         int `yaml:"default_threshold"`
	DefaultTotal             int `yaml:"default_total"`
	MaxCandidatesPerQuestion int `yaml:"max_candidates_per_question"`
	MaxQuestionsPerElection  int `yaml:"max_questions_per_election"`
	MaxTrustees              int `yaml:"max_trustees"`
}

// BatchQueueSettings tunes the in-process batch queue (C6).
type BatchQueueSettings struct {
	MaxBatchSize   int      `yaml:"max_batch_size"`
	FlushInterval  Duration `yaml:"flush_interval"`
	BlobBacklogCap int      `yaml:"blob_backlog_cap"`
}

// AnchorSettings tunes the anchor orchestrator (C9).
type AnchorSettings struct {
	BaseDelay      Duration `yaml:"base_delay"`
	MaxAttempts    int      `yaml:"max_attempts"`
	ContractChainID int64   `yaml:"contract_chain_id"`
}

// EdgeSyncSettings tunes the edge-sync server (C11).
type EdgeSyncSettings struct {
	NodeKeysDir       string   `yaml:"node_keys_dir"`
	MaxVotesPerBatch  int      `yaml:"max_votes_per_batch"`
	IdempotencyWindow Duration `yaml:"idempotency_window"`
}

// DatabaseSettings mirrors Config's database fields for the YAML surface.
type DatabaseSettings struct {
	URL            string   `yaml:"url"`
	MaxConnections int      `yaml:"max_connections"`
	MinConnections int      `yaml:"min_connections"`
	MaxIdleTime    Duration `yaml:"max_idle_time"`
	MaxLifetime    Duration `yaml:"max_lifetime"`
	Required       bool     `yaml:"required"`
}

// SecuritySettings contains security configuration.
type SecuritySettings struct {
	TLS       TLSSettings       `yaml:"tls"`
	Auth      AuthSettings      `yaml:"auth"`
	RateLimit RateLimitSettings `yaml:"rate_limit"`
	CORS      CORSSettings      `yaml:"cors"`
}

type TLSSettings struct {
	Enabled    bool   `yaml:"enabled"`
	CertFile   string `yaml:"cert_file"`
	KeyFile    string `yaml:"key_file"`
	MinVersion string `yaml:"min_version"`
}

type AuthSettings struct {
	Enabled   bool     `yaml:"enabled"`
	JWTSecret string   `yaml:"jwt_secret"`
	JWTExpiry Duration `yaml:"jwt_expiry"`
}

type RateLimitSettings struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
	Burst             int  `yaml:"burst"`
}

type CORSSettings struct {
	Enabled        bool     `yaml:"enabled"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
	MaxAge         int      `yaml:"max_age"`
}

// MonitoringSettings contains logging and health-surface configuration.
type MonitoringSettings struct {
	Health  HealthSettings  `yaml:"health"`
	Logging LoggingSettings `yaml:"logging"`
}

type HealthSettings struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

type LoggingSettings struct {
	Level         string `yaml:"level"`
	Format        string `yaml:"format"`
	Output        string `yaml:"output"`
	IncludeCaller bool   `yaml:"include_caller"`
}

// Duration wraps time.Duration for YAML unmarshaling as a Go duration
// string ("5s", "100ms") rather than a bare integer of ambiguous unit.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

func (d Duration) Duration() time.Duration { return time.Duration(d) }

// LoadStaticConfig reads and parses a YAML static-config file, substituting
// ${VAR_NAME} references first.
func LoadStaticConfig(path string) (*StaticConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	expanded := substituteEnvVars(string(data))

	var cfg StaticConfig
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *StaticConfig) applyDefaults() {
	if c.Election.DefaultThreshold == 0 {
		c.Election.DefaultThreshold = 2
	}
	if c.Election.DefaultTotal == 0 {
		c.Election.DefaultTotal = 3
	}
	if c.Election.MaxCandidatesPerQuestion == 0 {
		c.Election.MaxCandidatesPerQuestion = 64
	}
	if c.Election.MaxQuestionsPerElection == 0 {
		c.Election.MaxQuestionsPerElection = 20
	}
	if c.Election.MaxTrustees == 0 {
		c.Election.MaxTrustees = 15
	}

	if c.BatchQueue.MaxBatchSize == 0 {
		c.BatchQueue.MaxBatchSize = 100
	}
	if c.BatchQueue.FlushInterval == 0 {
		c.BatchQueue.FlushInterval = Duration(100 * time.Millisecond)
	}
	if c.BatchQueue.BlobBacklogCap == 0 {
		c.BatchQueue.BlobBacklogCap = 1000
	}

	if c.Anchor.BaseDelay == 0 {
		c.Anchor.BaseDelay = Duration(2 * time.Second)
	}
	if c.Anchor.MaxAttempts == 0 {
		c.Anchor.MaxAttempts = 3
	}

	if c.EdgeSync.NodeKeysDir == "" {
		c.EdgeSync.NodeKeysDir = "./edge-keys"
	}
	if c.EdgeSync.MaxVotesPerBatch == 0 {
		c.EdgeSync.MaxVotesPerBatch = 5000
	}
	if c.EdgeSync.IdempotencyWindow == 0 {
		c.EdgeSync.IdempotencyWindow = Duration(24 * time.Hour)
	}

	if c.Database.MaxConnections == 0 {
		c.Database.MaxConnections = 25
	}
	if c.Database.MinConnections == 0 {
		c.Database.MinConnections = 5
	}
	if c.Database.MaxIdleTime == 0 {
		c.Database.MaxIdleTime = Duration(5 * time.Minute)
	}
	if c.Database.MaxLifetime == 0 {
		c.Database.MaxLifetime = Duration(time.Hour)
	}

	if c.Security.Auth.JWTExpiry == 0 {
		c.Security.Auth.JWTExpiry = Duration(24 * time.Hour)
	}
	if c.Security.RateLimit.RequestsPerMinute == 0 {
		c.Security.RateLimit.RequestsPerMinute = 100
	}
	if c.Security.RateLimit.Burst == 0 {
		c.Security.RateLimit.Burst = 20
	}

	if c.Monitoring.Health.Port == 0 {
		c.Monitoring.Health.Port = 8081
	}
	if c.Monitoring.Health.Path == "" {
		c.Monitoring.Health.Path = "/health"
	}
	if c.Monitoring.Logging.Level == "" {
		c.Monitoring.Logging.Level = "info"
	}
	if c.Monitoring.Logging.Format == "" {
		c.Monitoring.Logging.Format = "json"
	}
}

var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

func substituteEnvVars(content string) string {
	return envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultValue := ""
		if len(groups) >= 4 {
			defaultValue = groups[3]
		}
		if value := os.Getenv(varName); value != "" {
			return value
		}
		return defaultValue
	})
}

// ValidateStaticConfig checks invariants a YAML file alone can't enforce by
// type (thresholds within bounds, production security requirements).
func (c *StaticConfig) ValidateStaticConfig() error {
	var errs []string

	if c.Election.DefaultThreshold > c.Election.DefaultTotal {
		errs = append(errs, "election.default_threshold cannot exceed election.default_total")
	}
	if c.Environment == "production" {
		if !c.Security.TLS.Enabled {
			errs = append(errs, "security.tls.enabled must be true for production")
		}
		if c.Security.Auth.JWTSecret == "" || strings.HasPrefix(c.Security.Auth.JWTSecret, "${") {
			errs = append(errs, "security.auth.jwt_secret is required for production")
		}
	}
	if c.Database.Required && c.Database.URL == "" {
		errs = append(errs, "database.url is required when database.required is true")
	}

	if len(errs) > 0 {
		return fmt.Errorf("static configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// IsProduction reports whether this is a production configuration.
func (c *StaticConfig) IsProduction() bool { return c.Environment == "production" }
