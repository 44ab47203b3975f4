// Package http
package http

import (
	"net/http"

	"trafficstats/internal/adapters/http/middleware"
	"trafficstats/internal/adapters/ws/speedws"
	"trafficstats/internal/config"
	"trafficstats/internal/logger"
)

type RouterDeps struct {
	WsSpeed *speedws.Handler
	Speed   *SpeedHandler
	Metrics http.Handler
}

func NewRouter(cfg *config.Config, log logger.Logger, deps *RouterDeps) http.Handler {
	mux := http.NewServeMux()

	globalMw := middleware.New()
	globalMw.Use(middleware.Logging(log))
	globalMw.Use(middleware.CORS(cfg))

	// HEALTH
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	// METRICS
	if deps.Metrics != nil {
		mux.Handle("GET /metrics", deps.Metrics)
	}

	// WEBSOCKET
	mux.HandleFunc("GET /ws/speed", deps.WsSpeed.Serve)

	// SPEED
	mux.HandleFunc("GET /speed", deps.Speed.Latest)

	return globalMw.Apply(mux)
}
