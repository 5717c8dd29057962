package middleware

import (
	"net/http"
	"runtime/debug"

	"SoilMonitorAPI/internal/logger"
	"SoilMonitorAPI/internal/metrics"
)

func Recovery(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.Error("PANIC [%s] %s %s: %v", r.Header.Get(RequestIDHeader), r.Method, r.URL.Path, err)
					log.Error("Stack trace:\n%s", debug.Stack())
					metrics.PanicsRecovered.WithLabelValues("http_handler").Inc()

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					w.Write([]byte(`{"error": "Internal server error"}`))
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
