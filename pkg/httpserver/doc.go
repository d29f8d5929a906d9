// Package httpserver runs an http.Handler with configured timeouts and
// graceful shutdown.
//
// Run binds the listener, serves until the context is cancelled or SIGINT or
// SIGTERM arrives, then calls http.Server.Shutdown bounded by
// Config.ShutdownTimeout. Errors wrap ErrStart or ErrShutdown.
//
//	srv := httpserver.New(cfg.HTTP, httpserver.WithLogger(log))
//	if err := srv.Run(ctx, router); err != nil {
//		log.Error("server failed", logger.Error(err))
//	}
//
// HealthHandler serves JSON liveness and readiness probes:
//
//	r.Get("/healthz", httpserver.HealthHandler(log, 2*time.Second, nil))
//	r.Get("/readyz", httpserver.HealthHandler(log, 2*time.Second, map[string]httpserver.Check{
//		"postgres": pg.Healthcheck(pool),
//	}))
package httpserver
