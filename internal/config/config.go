// Package config loads and hot-reloads the on-disk configuration for the
// governance runtime: policy definitions, budget/bulkhead tier overrides,
// sovereignty rules, carbon budgets, escalation timeouts and alert sinks.
package config

import (
	"time"
)

// Config is the top-level runtime configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Policies    []PolicyConfig    `yaml:"policies"`
	Budget      BudgetConfig      `yaml:"budget"`
	Bulkhead    BulkheadConfig    `yaml:"bulkhead"`
	Audit       AuditConfig       `yaml:"audit"`
	Envelope    EnvelopeConfig    `yaml:"envelope"`
	Sovereignty SovereigntyConfig `yaml:"sovereignty"`
	Carbon      CarbonConfig      `yaml:"carbon"`
	Escalation  EscalationConfig `yaml:"escalation"`
	Alerts      AlertsConfig      `yaml:"alerts"`
}

// ServerConfig holds process-level settings. There is no listen port here —
// the runtime is a library, not a transport service (see SPEC_FULL.md §A).
type ServerConfig struct {
	LogLevel string `yaml:"log_level"`
	FailMode string `yaml:"fail_mode"` // "closed" = deny on internal error, "open" = allow
}

// PolicyConfig describes one policy rule backing the Verification Engine.
type PolicyConfig struct {
	Name         string   `yaml:"name"`
	Condition    string   `yaml:"condition"`
	Dialect      string   `yaml:"dialect"` // "" (default grammar) or "cel"
	Effect       string   `yaml:"effect"`  // allow, deny, review, audit
	Priority     int      `yaml:"priority"`
	Message      string   `yaml:"message"`
	Enabled      bool     `yaml:"enabled"`
	Jurisdiction string   `yaml:"jurisdiction"` // "" or "*" matches everywhere
	RiskScore    uint8    `yaml:"risk_score"`   // risk contributed when this rule matches
}

// BudgetConfig holds the named tier presets and the active default tier.
type BudgetConfig struct {
	DefaultTier string                 `yaml:"default_tier"`
	Tiers       map[string]BudgetTier  `yaml:"tiers"`
}

// BudgetTier mirrors the original implementation's BudgetConfig presets
// (minimal/default/enterprise/unlimited), see budget.Tier.
type BudgetTier struct {
	MaxTokens      uint64  `yaml:"max_tokens"`
	MaxAPICalls    uint64  `yaml:"max_api_calls"`
	MaxCostUSD     float64 `yaml:"max_cost_usd"`
	MaxRuntimeSecs uint64  `yaml:"max_runtime_secs"`
	Enforce        bool    `yaml:"enforce"`
}

// BulkheadConfig holds the named concurrency/quota tier presets.
type BulkheadConfig struct {
	DefaultTier string                   `yaml:"default_tier"`
	Tiers       map[string]BulkheadTier  `yaml:"tiers"`
}

type BulkheadTier struct {
	MaxConcurrent   int   `yaml:"max_concurrent"`
	AcquireTimeoutMs int64 `yaml:"acquire_timeout_ms"`
	MaxAPICalls     uint64 `yaml:"max_api_calls"`
	MaxTokens       uint64 `yaml:"max_tokens"`
	MaxCostUSD      float64 `yaml:"max_cost_usd"`
	FairQueuing     bool  `yaml:"fair_queuing"`
}

// AuditConfig controls the in-memory ring buffer and optional durability hook.
type AuditConfig struct {
	Capacity      int    `yaml:"capacity"`
	DurabilityDSN string `yaml:"durability_dsn"` // "" disables the sqlite hook
}

// EnvelopeConfig controls the State Envelope's active algorithm.
type EnvelopeConfig struct {
	Algorithm       string `yaml:"algorithm"` // placeholder, aes-256-gcm, chacha20-poly1305
	KeyRotationDays int    `yaml:"key_rotation_days"`
}

// SovereigntyConfig points at the hot-reloadable transfer-rule table.
type SovereigntyConfig struct {
	RulesFile string `yaml:"rules_file"`
}

// CarbonConfig points at the hot-reloadable grid-intensity/budget table.
type CarbonConfig struct {
	BudgetsFile string `yaml:"budgets_file"`
	GridSource  string `yaml:"grid_source"` // "static" or "watttime"
}

// EscalationConfig overrides the default per-level timeouts and auto-approve set.
type EscalationConfig struct {
	CooldownSecs       uint64        `yaml:"cooldown_secs"`
	AutoApproveLevels  []string      `yaml:"auto_approve_levels"`
	TimeoutOverrides   map[string]time.Duration `yaml:"timeout_overrides"`
}

type AlertsConfig struct {
	Slack   SlackAlertConfig   `yaml:"slack"`
	Webhook WebhookAlertConfig `yaml:"webhook"`
}

type SlackAlertConfig struct {
	WebhookURL string `yaml:"webhook_url"`
	Channel    string `yaml:"channel"`
}

type WebhookAlertConfig struct {
	URL    string `yaml:"url"`
	Secret string `yaml:"secret"`
}

// DefaultConfig returns a config with sensible defaults for zero-config startup.
// The numeric defaults here match spec §4.3/§4.4/§4.5/§4.11 and the original
// Rust implementation's preset tables (see DESIGN.md).
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			LogLevel: "info",
			FailMode: "closed",
		},
		Budget: BudgetConfig{
			DefaultTier: "default",
			Tiers: map[string]BudgetTier{
				"minimal": {
					MaxTokens: 1_000, MaxAPICalls: 10,
					MaxCostUSD: 0.10, MaxRuntimeSecs: 60, Enforce: true,
				},
				"default": {
					MaxTokens: 100_000, MaxAPICalls: 1_000,
					MaxCostUSD: 10.00, MaxRuntimeSecs: 3_600, Enforce: true,
				},
				"enterprise": {
					MaxTokens: 10_000_000, MaxAPICalls: 100_000,
					MaxCostUSD: 1_000.00, MaxRuntimeSecs: 86_400, Enforce: true,
				},
				"unlimited": {
					MaxTokens: ^uint64(0), MaxAPICalls: ^uint64(0),
					MaxCostUSD: 1.7976931348623157e+308, MaxRuntimeSecs: ^uint64(0), Enforce: false,
				},
			},
		},
		Bulkhead: BulkheadConfig{
			DefaultTier: "default",
			Tiers: map[string]BulkheadTier{
				"basic": {
					MaxConcurrent: 5, AcquireTimeoutMs: 5_000,
					MaxAPICalls: 100, MaxTokens: 10_000, FairQueuing: true,
				},
				"default": {
					MaxConcurrent: 10, AcquireTimeoutMs: 5_000,
					MaxAPICalls: 1_000, MaxTokens: 100_000, FairQueuing: true,
				},
				"premium": {
					MaxConcurrent: 50, AcquireTimeoutMs: 5_000,
					MaxAPICalls: 10_000, MaxTokens: 1_000_000, FairQueuing: true,
				},
				"enterprise": {
					MaxConcurrent: 200, AcquireTimeoutMs: 5_000,
					MaxAPICalls: 100_000, MaxTokens: 10_000_000, FairQueuing: true,
				},
			},
		},
		Audit: AuditConfig{
			Capacity: 100_000,
		},
		Envelope: EnvelopeConfig{
			Algorithm:       "aes-256-gcm",
			KeyRotationDays: 90,
		},
		Escalation: EscalationConfig{
			CooldownSecs: 60,
		},
	}
}
