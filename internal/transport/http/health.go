package httptransport

import (
	"context"
	"net/http"
	"time"
)

// HealthChecker is one dependency probed by /ready.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type CheckFunc func(ctx context.Context) error

func (f CheckFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

type readyResp struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

const readyTimeout = 2 * time.Second

func health(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write([]byte("ok"))
}

// ready probes every checker and answers 503 when any of them fails.
func ready(checkers map[string]HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()

		resp := readyResp{Status: "ready", Checks: map[string]string{}}
		code := http.StatusOK
		for name, c := range checkers {
			if err := c.HealthCheck(ctx); err != nil {
				resp.Checks[name] = "error: " + err.Error()
				resp.Status = "unavailable"
				code = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}
		writeJSON(w, code, resp)
	}
}
