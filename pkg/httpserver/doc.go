// Package httpserver runs an http.Handler with graceful shutdown, env-driven
// timeouts and health probes.
//
// Run binds the listener, fires start hooks with the bound address, and
// blocks until the context is cancelled or SIGINT/SIGTERM arrives. Shutdown
// then drains in-flight requests within the configured deadline and fires
// stop hooks, which is where callers flush background workers such as the
// audit recorder or the session activity worker.
//
//	srv := httpserver.NewFromConfig(cfg.HTTP,
//		httpserver.WithLogger(log),
//		httpserver.WithStopHook(func(*slog.Logger) { _ = sessions.Close() }),
//	)
//	r.Get("/healthz", httpserver.Liveness())
//	r.Get("/readyz", httpserver.Readiness(log, 2*time.Second, map[string]httpserver.Check{
//		"postgres": pool.Ping,
//	}))
//	err := srv.Run(ctx, r)
//
// Listen failures are wrapped with ErrStart and drain failures with ErrShutdown.
package httpserver
