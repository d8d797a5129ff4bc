// Package shutdown runs named cleanup hooks, newest first, when the process
// receives SIGINT or SIGTERM or shutdown is triggered programmatically.
//
// Usage:
//
//	h := shutdown.NewHandler(10*time.Second, logger)
//	h.OnShutdown("storage", engine.Close)
//	h.OnShutdown("http", srv.Shutdown)
//	err := h.Wait(ctx)
package shutdown
