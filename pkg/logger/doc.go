// Package logger builds log/slog loggers configured through functional
// options and provides attribute helpers shared across the service.
//
// New returns a JSON logger at info level on stdout unless options say
// otherwise. WithEnvironment picks level and format from the deployment
// environment (development: text at debug; staging and production: JSON at
// info) and tags every record with service and env. FromConfig maps the
// env-driven Config onto those options.
//
// Context extractors add request-scoped attributes at log time:
//
//	log := logger.New(append(logger.FromConfig(cfg),
//		logger.WithContextExtractors(
//			requestid.LoggerExtractor(),
//			tenant.LoggerExtractor(),
//		),
//	)...)
//	log.InfoContext(r.Context(), "tenant access granted via bypass",
//		logger.Component("tenant.middleware"),
//		logger.Bypass("superuser_bypass"),
//	)
//
// Attributes named in DefaultRedactedKeys or WithRedactedKeys are written as
// Redacted, so bearer tokens and session tokens never reach log storage.
//
// Error and Errors return an empty attribute for nil errors, which slog drops.
package logger
