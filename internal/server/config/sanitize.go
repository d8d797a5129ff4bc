package config

import "slices"

// Sanitize returns a copy of cfg that is safe to log.
func Sanitize(cfg *ServerConfig) *ServerConfig {
	out := *cfg
	out.Fields = slices.Clone(cfg.Fields)
	out.Server.HTTP.AdminToken = maskSecret(cfg.Server.HTTP.AdminToken)
	return &out
}

// maskSecret hides a secret behind a fixed marker. Secrets long enough to
// stay unguessable keep two characters at each end so operators can tell
// tokens apart.
func maskSecret(secret string) string {
	const marker = "****"
	switch n := len(secret); {
	case n == 0:
		return ""
	case n < 12:
		return marker
	default:
		return secret[:2] + marker + secret[n-2:]
	}
}
