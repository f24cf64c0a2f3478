// Package logger builds the application's *slog.Logger.
//
// Production output is JSON at INFO; development output is text at DEBUG.
// Request-scoped values (request ID, account ID) are attached through context
// extractors that run on every record, so handlers log with
// logger.InfoContext(ctx, ...) and get the correlation fields for free.
//
//	log := logger.New(
//		logger.WithEnvironment(cfg.Env, "memorialkit"),
//		logger.WithContextExtractors(logger.RequestIDExtractor(middleware.GetReqID)),
//	)
//	log.InfoContext(ctx, "memorial created", logger.AccountID(id), logger.PlanID(p))
package logger
