package adminapi

import (
	"fmt"
	"strings"
)

const (
	defaultListenAddr    = ":8600"
	defaultAllowedOrigin = "http://localhost:3000"
	defaultTokenIssuer   = "coinledger"
	minimumReasonLength  = 5
)

// Config aggregates runtime settings for the admin API.
type Config struct {
	ListenAddr       string
	AllowedOrigins   []string
	AdminSigningKey  string
	AdminTokenIssuer string
}

// Validate ensures the configuration contains sane values.
func (cfg *Config) Validate() error {
	cfg.ListenAddr = defaultIfEmpty(cfg.ListenAddr, defaultListenAddr)
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{defaultAllowedOrigin}
	}
	cfg.AdminTokenIssuer = defaultIfEmpty(cfg.AdminTokenIssuer, defaultTokenIssuer)
	if strings.TrimSpace(cfg.ListenAddr) == "" {
		return fmt.Errorf("listen addr is required")
	}
	if len(cfg.AdminSigningKey) == 0 {
		return fmt.Errorf("admin jwt signing key is required")
	}
	if strings.TrimSpace(cfg.AdminTokenIssuer) == "" {
		return fmt.Errorf("admin jwt issuer is required")
	}
	return nil
}

func defaultIfEmpty(value string, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

// ParseAllowedOrigins splits comma-delimited origins into a slice.
func ParseAllowedOrigins(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	normalized := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			normalized = append(normalized, trimmed)
		}
	}
	return normalized
}
