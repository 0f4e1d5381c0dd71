package config

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.InDelta(t, 200, cfg.Pricing.BasePrice, 1e-9)
	assert.InDelta(t, 50, cfg.Pricing.LowRate, 1e-9)
	assert.InDelta(t, 75, cfg.Pricing.HighRate, 1e-9)
	assert.InDelta(t, 0.5, cfg.Pricing.RushSurcharge, 1e-9)
	assert.Equal(t, "absolute", cfg.Pricing.ToleranceMode)
	assert.InDelta(t, 10, cfg.Pricing.ToleranceValue, 1e-9)
}

func TestLoad_EnvOnly(t *testing.T) {
	t.Setenv("LLM_TIMEOUT", "45s")
	t.Setenv("DISPATCH_MODE", "nats")
	t.Setenv("DISPATCH_NATS_URL", "nats://127.0.0.1:4222")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "45s", cfg.LLM.Timeout.String())
	assert.Equal(t, DispatchNATS, cfg.Dispatch.Mode)
	assert.Equal(t, "nats://127.0.0.1:4222", cfg.Dispatch.NATSURL)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults are valid", func(*Config) {}, ""},
		{"port too high", func(c *Config) { c.Server.Port = 70000 }, "invalid server port"},
		{"zero shutdown", func(c *Config) { c.Server.ShutdownTimeout = -1 }, "shutdown timeout"},
		{"telemetry without name", func(c *Config) {
			c.Observability.EnableTelemetry = true
			c.Observability.ServiceName = ""
		}, "service name"},
		{"bad tolerance mode", func(c *Config) { c.Pricing.ToleranceMode = "percent" }, "tolerance mode"},
		{"negative tolerance", func(c *Config) { c.Pricing.ToleranceValue = -1 }, "tolerance value"},
		{"negative rate", func(c *Config) { c.Pricing.HighRate = -75 }, "pricing constants"},
		{"unknown dispatch", func(c *Config) { c.Dispatch.Mode = "kafka" }, "dispatch mode"},
		{"nats without url", func(c *Config) { c.Dispatch.Mode = DispatchNATS }, "nats_url"},
		{"bad operator", func(c *Config) { c.Mail.Operator = "not-an-address" }, "operator"},
		{"bad engine", func(c *Config) { c.Secrets.Engine = "trufflehog" }, "secrets engine"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSecret_Redaction(t *testing.T) {
	s := Secret("sk_live_abcdef")

	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%v", s))
	assert.Equal(t, "Secret([REDACTED])", fmt.Sprintf("%#v", s))
	assert.Equal(t, "sk_live_abcdef", s.Value())
	assert.True(t, s.IsSet())

	data, err := json.Marshal(struct {
		Key Secret `json:"key"`
	}{s})
	require.NoError(t, err)
	assert.JSONEq(t, `{"key":"[REDACTED]"}`, string(data))
	assert.NotContains(t, string(data), "sk_live")

	var empty Secret
	assert.Equal(t, "", empty.String())
	assert.False(t, empty.IsSet())
}

func TestSecret_UnmarshalText(t *testing.T) {
	var s Secret
	require.NoError(t, s.UnmarshalText([]byte("whsec_123")))
	assert.Equal(t, "whsec_123", s.Value())
}
