package config

import (
	"net/url"
	"slices"
)

const redacted = "***"

// RedactedConfig returns a copy of cfg that is safe to log. Secrets become
// "***"; URLs keep their scheme and host so operators can still see where
// the service points.
func RedactedConfig(cfg *Config) Config {
	out := *cfg

	redact(&out.Wallet.PrivateKey)
	redact(&out.Wallet.KeyPassword)

	// Hosted RPC endpoints carry the API key in the path or query.
	out.Chain.RPCURL = redactURL(out.Chain.RPCURL, true)

	out.Postgres.DSN = redactURL(out.Postgres.DSN, false)
	redact(&out.Postgres.Password)

	redact(&out.Redis.Password)

	redact(&out.S3.AccessKey)
	redact(&out.S3.SecretKey)

	redact(&out.Server.APIKey)

	redact(&out.Notify.TelegramToken)
	out.Notify.DiscordWebhookURL = redactURL(out.Notify.DiscordWebhookURL, true)
	redact(&out.Notify.WebhookSecret)

	out.Notify.Kinds = slices.Clone(cfg.Notify.Kinds)
	out.Server.CORSOrigins = slices.Clone(cfg.Server.CORSOrigins)

	return out
}

// redact replaces a non-empty string with the redacted placeholder.
func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}

// redactURL masks the password of a URL and, when hidePath is set, its
// path and query. Strings that do not parse as URLs are fully redacted.
func redactURL(raw string, hidePath bool) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return redacted
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), redacted)
	}
	if hidePath {
		if u.Path != "" && u.Path != "/" {
			u.Path = "/" + redacted
		}
		if u.RawQuery != "" {
			u.RawQuery = redacted
		}
	}
	return u.String()
}
