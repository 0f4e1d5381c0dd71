// Package config provides configuration loading for solvd.
//
// Configuration is layered: hardcoded defaults, then an optional YAML file,
// then environment variables. Every section of the quote pipeline (model
// access, pricing constants, tax table, mail, payment, dispatch) has its own
// struct so that packages only receive the slice they need.
package config

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
)

// Config holds the complete solvd configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Observability ObservabilityConfig `koanf:"observability"`
	LLM           LLMConfig           `koanf:"llm"`
	Pricing       PricingConfig       `koanf:"pricing"`
	Tax           TaxConfig           `koanf:"tax"`
	Mail          MailConfig          `koanf:"mail"`
	Payment       PaymentConfig       `koanf:"payment"`
	Dispatch      DispatchConfig      `koanf:"dispatch"`
	Secrets       SecretsConfig       `koanf:"secrets"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            int           `koanf:"port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	// PublicURL is the externally visible base URL, used in email links.
	PublicURL string `koanf:"public_url"`
}

// ObservabilityConfig holds OpenTelemetry configuration.
type ObservabilityConfig struct {
	EnableTelemetry bool   `koanf:"enable_telemetry"`
	ServiceName     string `koanf:"service_name"`
	Endpoint        string `koanf:"endpoint"`
	Protocol        string `koanf:"protocol"`
	Insecure        bool   `koanf:"insecure"`
}

// LLMConfig configures the hosted language model used for quotes and analysis.
type LLMConfig struct {
	Provider  string        `koanf:"provider"`
	Model     string        `koanf:"model"`
	BaseURL   string        `koanf:"base_url"`
	APIKey    Secret        `koanf:"api_key"`
	Timeout   time.Duration `koanf:"timeout"`
	RateLimit float64       `koanf:"rate_limit"`
	Burst     int           `koanf:"burst"`
}

// PricingConfig holds the constants of the pricing formula.
type PricingConfig struct {
	BasePrice      float64 `koanf:"base_price"`
	LowRate        float64 `koanf:"low_rate"`
	HighRate       float64 `koanf:"high_rate"`
	RushSurcharge  float64 `koanf:"rush_surcharge"`
	ToleranceMode  string  `koanf:"tolerance_mode"`
	ToleranceValue float64 `koanf:"tolerance_value"`
}

// TaxConfig points at an optional override of the embedded rate table.
type TaxConfig struct {
	RatesFile string `koanf:"rates_file"`
}

// MailConfig configures SMTP delivery of operator and customer emails.
type MailConfig struct {
	SMTPHost string `koanf:"smtp_host"`
	SMTPPort int    `koanf:"smtp_port"`
	Username string `koanf:"username"`
	Password Secret `koanf:"password"`
	From     string `koanf:"from"`
	FromName string `koanf:"from_name"`
	// Operator receives quote analyses, acceptances and payment notices.
	Operator string `koanf:"operator"`
}

// Enabled reports whether an SMTP host has been configured.
func (m MailConfig) Enabled() bool {
	return m.SMTPHost != ""
}

// PaymentConfig configures the payment provider and the handoff session.
type PaymentConfig struct {
	StripeSecretKey Secret        `koanf:"stripe_secret_key"`
	WebhookSecret   Secret        `koanf:"webhook_secret"`
	PaymentPageURL  string        `koanf:"payment_page_url"`
	SessionSecret   Secret        `koanf:"session_secret"`
	SessionTTL      time.Duration `koanf:"session_ttl"`
}

// DispatchConfig selects how the post-quote analysis is fired.
type DispatchConfig struct {
	Mode    string        `koanf:"mode"`
	NATSURL string        `koanf:"nats_url"`
	Timeout time.Duration `koanf:"timeout"`
}

// SecretsConfig selects the engine used to scrub free-text intake fields.
type SecretsConfig struct {
	Engine string `koanf:"engine"`
}

// Dispatch modes.
const (
	DispatchAsync = "async"
	DispatchNATS  = "nats"
)

// Load loads configuration from environment variables with defaults.
//
// Environment variables follow the SECTION_FIELD convention, for example:
//   - SERVER_PORT: HTTP server port (default: 8080)
//   - LLM_API_KEY: model provider key
//   - LLM_TIMEOUT: model call timeout (default: 30s)
//   - PRICING_TOLERANCE_MODE: absolute or relative (default: absolute)
//   - MAIL_OPERATOR: address receiving operator notifications
//   - PAYMENT_SESSION_SECRET: HMAC key for handoff tokens
//   - DISPATCH_MODE: async or nats (default: async)
//
// Example:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println("Server port:", cfg.Server.Port)
func Load() (*Config, error) {
	return load(nil)
}

// Validate validates the configuration.
//
// Returns an error if:
//   - Server port is not between 1 and 65535
//   - Shutdown timeout is not positive
//   - Service name is empty (when telemetry is enabled)
//   - Pricing constants are negative or the tolerance mode is unknown
//   - Dispatch mode is unknown, or nats is selected without a URL
//   - The operator address is set but malformed
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}

	if c.Observability.EnableTelemetry && c.Observability.ServiceName == "" {
		return errors.New("service name required when telemetry is enabled")
	}

	if c.LLM.Timeout <= 0 {
		return errors.New("llm timeout must be positive")
	}
	if c.LLM.RateLimit < 0 {
		return fmt.Errorf("invalid llm rate limit: %v", c.LLM.RateLimit)
	}

	p := c.Pricing
	if p.BasePrice <= 0 || p.LowRate < 0 || p.HighRate < 0 || p.RushSurcharge < 0 {
		return errors.New("pricing constants must be non-negative and base price positive")
	}
	switch strings.ToLower(p.ToleranceMode) {
	case "absolute", "relative":
	default:
		return fmt.Errorf("invalid pricing tolerance mode: %q (must be absolute or relative)", p.ToleranceMode)
	}
	if p.ToleranceValue < 0 {
		return fmt.Errorf("invalid pricing tolerance value: %v", p.ToleranceValue)
	}

	switch c.Dispatch.Mode {
	case DispatchAsync:
	case DispatchNATS:
		if c.Dispatch.NATSURL == "" {
			return errors.New("dispatch.nats_url required when dispatch mode is nats")
		}
	default:
		return fmt.Errorf("invalid dispatch mode: %q (must be async or nats)", c.Dispatch.Mode)
	}

	if c.Mail.Operator != "" {
		if _, err := mail.ParseAddress(c.Mail.Operator); err != nil {
			return fmt.Errorf("invalid operator address: %w", err)
		}
	}

	if c.Payment.SessionTTL <= 0 {
		return errors.New("payment session ttl must be positive")
	}

	switch c.Secrets.Engine {
	case "regex", "gitleaks", "off":
	default:
		return fmt.Errorf("invalid secrets engine: %q (must be regex, gitleaks or off)", c.Secrets.Engine)
	}

	return nil
}
