// Package health serves liveness and readiness probes for the truncator
// daemon.
//
// Liveness reports that the process is up. Readiness runs every registered
// component check (storage connectivity, scheduler state) concurrently, each
// bounded by the checker's timeout, and answers 503 when any of them fails.
//
//	checker := health.New(2 * time.Second)
//	checker.Register("storage", store.Ping)
//	checker.Register("scheduler", func(ctx context.Context) error {
//	    if !scheduler.IsRunning() {
//	        return errors.New("scheduler not running")
//	    }
//	    return nil
//	})
//	checker.Mount(mux)
package health
