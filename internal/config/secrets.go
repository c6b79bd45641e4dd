package config

const redacted = "***"

// Redacted returns a copy of cfg with sensitive fields replaced by a
// placeholder. Use this when logging the active configuration so secrets are
// never accidentally exposed.
func Redacted(cfg *Config) Config {
	out := *cfg

	redact(&out.Embedding.APIKey)
	redact(&out.Store.RedisPassword)
	redact(&out.Sources.GJOPassword)
	redact(&out.Crypto.EncryptionKey)

	// Copy slices so callers cannot mutate the original through the copy.
	if cfg.CORS.AllowedOrigins != nil {
		out.CORS.AllowedOrigins = append([]string(nil), cfg.CORS.AllowedOrigins...)
	}
	if cfg.Sources.Enabled != nil {
		out.Sources.Enabled = append([]string(nil), cfg.Sources.Enabled...)
	}

	return out
}

// redact replaces a non-empty string with the placeholder.
func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}
