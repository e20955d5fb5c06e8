// Environment-backed secret resolution for vendor credentials.
//
// DESIGN: Vendor secrets follow a fixed naming pattern so transforms can
// derive them from the vendor name: <VENDOR>_API_BASE and <VENDOR>_API_KEY.
// Values come from the process environment; cmd/ loads .env files before
// anything reads them.
package config

import (
	"os"
	"strings"
)

// ResolveSecret returns the named secret from the environment, or "" when
// unset.
func ResolveSecret(name string) string {
	return strings.TrimSpace(os.Getenv(name))
}

// APIBaseEnv derives the base-URL secret name for a vendor, e.g.
// APIBaseEnv("groq") == "GROQ_API_BASE".
func APIBaseEnv(vendor string) string {
	return envPrefix(vendor) + "_API_BASE"
}

// APIKeyEnv derives the API-key secret name for a vendor, e.g.
// APIKeyEnv("groq") == "GROQ_API_KEY".
func APIKeyEnv(vendor string) string {
	return envPrefix(vendor) + "_API_KEY"
}

func envPrefix(vendor string) string {
	return strings.ToUpper(strings.ReplaceAll(vendor, "-", "_"))
}
