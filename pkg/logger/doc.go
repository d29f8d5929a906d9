// Package logger builds *slog.Logger instances for the flag service.
//
// New applies functional options (format, level, static attributes, context
// extractors) and wraps the chosen slog handler with WrapHandler, which
// pulls request-scoped attributes such as the request id out of the context on
// every record.
//
// Attribute helpers (ProjectID, EnvironmentID, FeatureID, IdentityID, Error...)
// keep key names consistent across packages.
//
// # Usage
//
//	log := logger.New(
//		logger.WithEnvironment("production", "flagd"),
//		logger.WithLevelName(cfg.LogLevel),
//		logger.WithContextExtractors(api.RequestIDExtractor()),
//	)
//	log.InfoContext(ctx, "feature created", logger.FeatureID(f.ID), logger.ProjectID(f.ProjectID))
package logger
