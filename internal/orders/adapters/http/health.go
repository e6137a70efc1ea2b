package http

import (
	"context"
	"net/http"
	"sort"
	"time"
)

// Check reports whether one dependency is ready.
type Check func(ctx context.Context) error

func healthz(w http.ResponseWriter, _ *http.Request) {
	writeSuccess(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readyz runs every check with a shared deadline and fails when any of them does.
func readyz(checks map[string]Check) http.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		results := make(map[string]string, len(names))
		ready := true
		for _, name := range names {
			if err := checks[name](ctx); err != nil {
				results[name] = err.Error()
				ready = false
				continue
			}
			results[name] = "ok"
		}

		if !ready {
			writeJSON(w, http.StatusServiceUnavailable, envelope{Status: statusError, Message: "not ready", Data: results})
			return
		}
		writeSuccess(w, http.StatusOK, results)
	}
}
