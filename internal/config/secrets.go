package config

import "slices"

// RedactedConfig returns a copy of cfg with every secret replaced by "***",
// for logging the active configuration.
func RedactedConfig(cfg *Config) Config {
	out := *cfg

	redact(&out.Coinbase.APIKey)
	redact(&out.Coinbase.APISecret)
	redact(&out.Coinbase.SecretPassword)

	redact(&out.Notify.TelegramToken)
	redact(&out.Notify.DiscordWebhookURL)

	redact(&out.Redis.Password)

	redact(&out.Postgres.DSN)
	redact(&out.Postgres.Password)

	redact(&out.S3.AccessKey)
	redact(&out.S3.SecretKey)

	// Slices are copied so the redacted value cannot be used to mutate cfg.
	out.Notify.Events = slices.Clone(cfg.Notify.Events)
	out.Pairs = slices.Clone(cfg.Pairs)

	return out
}

const redacted = "***"

// redact replaces a non-empty string with the redacted placeholder.
func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}
