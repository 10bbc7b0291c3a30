// Dealhound - Adaptive Deal Ranking and Content Diversification Engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dealhound/dealhound

// Package config loads and validates Dealhound configuration via Koanf v2
// with layered sources: built-in defaults, optional YAML file, environment
// variables (highest priority).
package config

import (
	"fmt"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the root configuration for the Dealhound server.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Logging  LoggingConfig  `koanf:"logging"`
	Store    StoreConfig    `koanf:"store"`
	Catalog  CatalogConfig  `koanf:"catalog"`
	Ledger   LedgerConfig   `koanf:"ledger"`
	Governor GovernorConfig `koanf:"governor"`
	Ranking  RankingConfig  `koanf:"ranking"`
	Content  ContentConfig  `koanf:"content"`
	Pulse    PulseConfig    `koanf:"pulse"`
	Events   EventsConfig   `koanf:"events"`
	Archive  ArchiveConfig  `koanf:"archive"`
	Security SecurityConfig `koanf:"security"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port" validate:"min=1,max=65535"`
	Timeout time.Duration `koanf:"timeout"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn warning error fatal disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// StoreConfig holds snapshot store settings.
type StoreConfig struct {
	// Backend selects the snapshot store implementation: badger or memory.
	Backend string `koanf:"backend" validate:"oneof=badger memory"`

	// Path is the BadgerDB directory (ignored for the memory backend).
	Path string `koanf:"path"`
}

// CatalogConfig holds item snapshot loading settings.
type CatalogConfig struct {
	// Dir contains one JSON file per category with that category's items.
	Dir string `koanf:"dir"`

	// ReloadInterval is how often the catalog directory is re-read. Zero
	// disables periodic reload.
	ReloadInterval time.Duration `koanf:"reload_interval"`
}

// LedgerConfig holds engagement ledger settings.
type LedgerConfig struct {
	// RecentWindow caps the recent click-event window; oldest entries are evicted.
	RecentWindow int `koanf:"recent_window" validate:"min=1"`

	// DecayGap is the inter-click gap beyond which accumulated momentum halves.
	DecayGap time.Duration `koanf:"decay_gap"`

	// DeltaCap is the hard upper bound on per-item momentum delta.
	DeltaCap float64 `koanf:"delta_cap" validate:"gt=0"`

	// FlushInterval is how often dirty ledger state is persisted to the store.
	FlushInterval time.Duration `koanf:"flush_interval"`

	// IngestRate and IngestBurst clamp click ingestion (events/second).
	IngestRate  float64 `koanf:"ingest_rate" validate:"gt=0"`
	IngestBurst int     `koanf:"ingest_burst" validate:"min=1"`
}

// GovernorConfig holds category momentum aggregation settings.
type GovernorConfig struct {
	// RecencyWindow is how many of the most recent events feed the recency signal.
	RecencyWindow int `koanf:"recency_window" validate:"min=1"`

	// CTRWeight, RecencyWeight and LearningWeight blend the three signals.
	CTRWeight      float64 `koanf:"ctr_weight"`
	RecencyWeight  float64 `koanf:"recency_weight"`
	LearningWeight float64 `koanf:"learning_weight"`

	// ImpressionIncrement is added to a pattern's impressions on every
	// reinforcement (Laplace-style smoothing against early-sample noise).
	ImpressionIncrement int `koanf:"impression_increment" validate:"min=1"`
}

// RankingConfig holds ranking engine settings.
type RankingConfig struct {
	// Sub-score weights. The five must sum to 1.
	CTRWeight       float64 `koanf:"ctr_weight"`
	MomentumWeight  float64 `koanf:"momentum_weight"`
	SemanticWeight  float64 `koanf:"semantic_weight"`
	LongTailWeight  float64 `koanf:"longtail_weight"`
	FreshnessWeight float64 `koanf:"freshness_weight"`

	// ExploreScale multiplies the UCB exploration term.
	ExploreScale float64 `koanf:"explore_scale"`

	// ExploreEpsilon is the uniform jitter added to the exploration bonus.
	ExploreEpsilon float64 `koanf:"explore_epsilon"`

	// FreshnessHorizonDays is the age at which freshness bottoms out at its floor.
	FreshnessHorizonDays float64 `koanf:"freshness_horizon_days" validate:"gt=0"`
}

// ContentConfig holds deterministic content generation settings.
type ContentConfig struct {
	// MaxCTALength and MaxSubtitleLength clamp generated text.
	MaxCTALength      int `koanf:"max_cta_length" validate:"min=8"`
	MaxSubtitleLength int `koanf:"max_subtitle_length" validate:"min=16"`

	// TemplateAttempts is how many candidates are tried before the minimal fallback.
	TemplateAttempts int `koanf:"template_attempts" validate:"min=1"`
}

// PulseConfig holds analytics pulse settings.
type PulseConfig struct {
	// Interval between scheduled analytics pulse runs.
	Interval time.Duration `koanf:"interval"`

	// LiftEpsilon smooths the rising-term lift ratio.
	LiftEpsilon float64 `koanf:"lift_epsilon" validate:"gt=0"`
}

// EventsConfig holds click event bus settings.
type EventsConfig struct {
	// Transport selects the bus implementation: gochannel (in-process) or nats.
	Transport string `koanf:"transport" validate:"oneof=gochannel nats"`

	// URL is the NATS server URL (nats transport only).
	URL string `koanf:"url"`

	// Topic is the click event topic.
	Topic string `koanf:"topic" validate:"required"`
}

// ArchiveConfig holds DuckDB click archive settings.
type ArchiveConfig struct {
	Enabled bool `koanf:"enabled"`

	// Path is the DuckDB database file. Empty means in-memory.
	Path string `koanf:"path"`

	// BreakerThreshold is the consecutive-failure count that opens the circuit.
	BreakerThreshold uint32 `koanf:"breaker_threshold" validate:"min=1"`

	// BreakerCooldown is how long the circuit stays open before probing.
	BreakerCooldown time.Duration `koanf:"breaker_cooldown"`
}

// SecurityConfig holds API security settings.
type SecurityConfig struct {
	// AuthMode guards the admin API: jwt or none.
	AuthMode string `koanf:"auth_mode" validate:"oneof=jwt none"`

	// JWTSecret signs admin tokens (32+ chars required in jwt mode).
	JWTSecret string `koanf:"jwt_secret"`

	// RateLimitReqs requests per RateLimitWindow per client IP on the click endpoint.
	RateLimitReqs   int           `koanf:"rate_limit_reqs" validate:"min=1"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`

	// CORSOrigins allowed for browser clients.
	CORSOrigins []string `koanf:"cors_origins"`
}

// defaultConfig returns a Config with all defaults applied. Defaults mirror
// the engine's tuned constants; overriding the ranking weights requires the
// five to still sum to 1.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    8480,
			Timeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Store: StoreConfig{
			Backend: "badger",
			Path:    "/data/dealhound/store",
		},
		Catalog: CatalogConfig{
			Dir:            "/data/dealhound/catalog",
			ReloadInterval: 5 * time.Minute,
		},
		Ledger: LedgerConfig{
			RecentWindow:  120,
			DecayGap:      12 * time.Hour,
			DeltaCap:      5.0,
			FlushInterval: 15 * time.Second,
			IngestRate:    200,
			IngestBurst:   400,
		},
		Governor: GovernorConfig{
			RecencyWindow:       200,
			CTRWeight:           0.7,
			RecencyWeight:       1.0,
			LearningWeight:      0.9,
			ImpressionIncrement: 3,
		},
		Ranking: RankingConfig{
			CTRWeight:            0.48,
			MomentumWeight:       0.22,
			SemanticWeight:       0.18,
			LongTailWeight:       0.08,
			FreshnessWeight:      0.04,
			ExploreScale:         0.3,
			ExploreEpsilon:       0.05,
			FreshnessHorizonDays: 12,
		},
		Content: ContentConfig{
			MaxCTALength:      64,
			MaxSubtitleLength: 160,
			TemplateAttempts:  5,
		},
		Pulse: PulseConfig{
			Interval:    10 * time.Minute,
			LiftEpsilon: 0.5,
		},
		Events: EventsConfig{
			Transport: "gochannel",
			URL:       "nats://127.0.0.1:4222",
			Topic:     "clicks.recorded",
		},
		Archive: ArchiveConfig{
			Enabled:          false,
			Path:             "/data/dealhound/archive.duckdb",
			BreakerThreshold: 5,
			BreakerCooldown:  30 * time.Second,
		},
		Security: SecurityConfig{
			AuthMode:        "none",
			JWTSecret:       "",
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{"*"},
		},
	}
}

// validate is the shared validator instance used for struct tag checks.
var validate = validator.New()

// Validate checks structural tags plus the cross-field constraints the tags
// cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}

	sum := c.Ranking.CTRWeight + c.Ranking.MomentumWeight + c.Ranking.SemanticWeight +
		c.Ranking.LongTailWeight + c.Ranking.FreshnessWeight
	if math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("ranking weights must sum to 1.0, got %.6f", sum)
	}

	if c.Security.AuthMode == "jwt" && len(c.Security.JWTSecret) < 32 {
		return fmt.Errorf("security.jwt_secret must be at least 32 characters in jwt mode")
	}

	if c.Events.Transport == "nats" && c.Events.URL == "" {
		return fmt.Errorf("events.url is required for the nats transport")
	}

	return nil
}
