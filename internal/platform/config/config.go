package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures process-level configuration for the trustgate server.
// Secrets are sourced exclusively from the environment; they are never read
// from request payloads and never echoed in responses or logs.
type Config struct {
	Addr     string
	Auth     AuthConfig
	Webhooks WebhookConfig
	Policy   PolicyConfig
	Audit    AuditConfig
	Redis    RedisConfig
	Admin    AdminConfig
}

// AuthConfig controls bearer-token verification.
type AuthConfig struct {
	// Issuer is the expected `iss` claim and the base URL used to locate the
	// well-known discovery document.
	Issuer   string
	Audience string
	// JWKSTTL bounds how long a fetched key set is trusted before refresh.
	JWKSTTL time.Duration
	// ClockTolerance is the allowed skew for exp/nbf checks.
	ClockTolerance time.Duration
	// HTTPTimeout bounds discovery and key-set fetches so verification fails
	// closed instead of hanging.
	HTTPTimeout time.Duration
}

// WebhookConfig holds one signing secret per supported ingress provider plus
// the replay-suppression window.
type WebhookConfig struct {
	StripeSecret string
	RetellSecret string
	TwilioSecret string
	GHLSecret    string
	ReplayWindow time.Duration
}

// PolicyConfig locates the authorization rule set.
type PolicyConfig struct {
	RulesPath string
}

// AuditConfig selects and parameterizes the audit sink.
type AuditConfig struct {
	// Sink is one of "file", "postgres", "kafka".
	Sink         string
	FilePath     string
	DatabaseURL  string
	KafkaBrokers []string
	KafkaTopic   string
	// BufferSize bounds the async writer queue; overflow drops events rather
	// than blocking the request path.
	BufferSize int
}

// RedisConfig configures the optional shared idempotency store.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// AdminConfig guards operational endpoints. KeyHash is a bcrypt hash of the
// admin API key; an empty hash disables the admin surface entirely.
type AdminConfig struct {
	KeyHash string
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	return Config{
		Addr: envString("TRUSTGATE_ADDR", ":8080"),
		Auth: AuthConfig{
			Issuer:         os.Getenv("TRUSTGATE_ISSUER"),
			Audience:       os.Getenv("TRUSTGATE_AUDIENCE"),
			JWKSTTL:        envDuration("TRUSTGATE_JWKS_TTL", time.Hour),
			ClockTolerance: envDuration("TRUSTGATE_CLOCK_TOLERANCE", time.Minute),
			HTTPTimeout:    envDuration("TRUSTGATE_DISCOVERY_TIMEOUT", 10*time.Second),
		},
		Webhooks: WebhookConfig{
			StripeSecret: os.Getenv("TRUSTGATE_STRIPE_WEBHOOK_SECRET"),
			RetellSecret: os.Getenv("TRUSTGATE_RETELL_WEBHOOK_SECRET"),
			TwilioSecret: os.Getenv("TRUSTGATE_TWILIO_WEBHOOK_SECRET"),
			GHLSecret:    os.Getenv("TRUSTGATE_GHL_WEBHOOK_SECRET"),
			ReplayWindow: envDuration("TRUSTGATE_REPLAY_WINDOW", 5*time.Minute),
		},
		Policy: PolicyConfig{
			RulesPath: envString("TRUSTGATE_POLICY_RULES", "policy/rules.json"),
		},
		Audit: AuditConfig{
			Sink:         envString("TRUSTGATE_AUDIT_SINK", "file"),
			FilePath:     envString("TRUSTGATE_AUDIT_FILE", "audit.log"),
			DatabaseURL:  os.Getenv("TRUSTGATE_DATABASE_URL"),
			KafkaBrokers: envList("TRUSTGATE_KAFKA_BROKERS"),
			KafkaTopic:   envString("TRUSTGATE_KAFKA_TOPIC", "trustgate.audit"),
			BufferSize:   envInt("TRUSTGATE_AUDIT_BUFFER", 1024),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("TRUSTGATE_REDIS_URL"),
			PoolSize:     envInt("TRUSTGATE_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("TRUSTGATE_REDIS_MIN_IDLE", 2),
			DialTimeout:  envDuration("TRUSTGATE_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("TRUSTGATE_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("TRUSTGATE_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Admin: AdminConfig{
			KeyHash: os.Getenv("TRUSTGATE_ADMIN_KEY_HASH"),
		},
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
