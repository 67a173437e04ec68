package ratelimit

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Rule limits one kind of request.
type Rule struct {
	Method string        // HTTP method
	Path   string        // exact path, or a prefix when it ends in "/"
	Suffix string        // optional required path suffix, e.g. "/goto"
	Limit  int           // requests per window; 0 is unlimited
	Window time.Duration // refill window
	Burst  int           // bucket capacity (defaults to Limit if 0)
}

// Config holds rate limiting configuration.
type Config struct {
	Enabled         bool
	DefaultLimit    int
	DefaultWindow   time.Duration
	CleanupInterval time.Duration
	Whitelist       map[string]bool
	Rules           []Rule
}

// LoadConfig loads rate limiting configuration from environment variables.
func LoadConfig() *Config {
	if !getEnvBool("RATE_LIMIT_ENABLED", true) {
		return &Config{Enabled: false}
	}

	return &Config{
		Enabled:         true,
		DefaultLimit:    getEnvInt("RATE_LIMIT_DEFAULT_LIMIT", 600),
		DefaultWindow:   getEnvDuration("RATE_LIMIT_DEFAULT_WINDOW", time.Minute),
		CleanupInterval: getEnvDuration("RATE_LIMIT_CLEANUP_INTERVAL", 5*time.Minute),
		Whitelist:       parseIPList(os.Getenv("RATE_LIMIT_WHITELIST")),
		Rules:           DefaultRules(),
	}
}

// DefaultRules protect the passcode check and everything that types into
// the chat host.
func DefaultRules() []Rule {
	return []Rule{
		// Passcode guessing
		{Method: "POST", Path: "/login", Limit: 5, Window: time.Minute, Burst: 5},

		// Commands sent into the host chat
		{Method: "POST", Path: "/markers/", Suffix: "/goto", Limit: 10, Window: time.Minute, Burst: 3},
		{Method: "POST", Path: "/panels/", Suffix: "/open", Limit: 20, Window: time.Minute, Burst: 5},

		// Refreshes are debounced downstream; this only stops floods
		{Method: "POST", Path: "/panels/", Suffix: "/refresh", Limit: 120, Window: time.Minute, Burst: 20},

		// Unlimited
		{Method: "GET", Path: "/health"},
		{Method: "GET", Path: "/events"},
	}
}

// getEnvInt gets an environment variable as an integer with a default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvBool gets an environment variable as a boolean with a default value.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvDuration gets an environment variable as a duration with a default value.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// parseIPList parses a comma-separated list of IP addresses into a set.
func parseIPList(list string) map[string]bool {
	result := make(map[string]bool)
	for _, ip := range strings.Split(list, ",") {
		if ip = strings.TrimSpace(ip); ip != "" {
			result[ip] = true
		}
	}
	return result
}
