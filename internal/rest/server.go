// Package rest wires the counter handlers into the two HTTP servers: the
// public read endpoint behind session auth and CORS, and the internal write
// endpoint for trusted backend callers.
package rest

import (
	"net/http"

	"github.com/rs/cors"
	"github.com/talkline/counters/internal/rest/handler"
	"github.com/talkline/counters/internal/rest/middleware/session"
	"github.com/uptrace/bunrouter"
	"go.uber.org/zap"
)

// NewPublicServer builds the handler for the public counter read endpoint.
// Browsers call it with credentials from arbitrary frontend origins, so the
// request Origin is echoed back rather than whitelisted.
func NewPublicServer(service handler.CounterService, sessions *session.Middleware, logger *zap.Logger) http.Handler {
	counterHandler := handler.NewCounterHandler(service, logger)

	router := bunrouter.New()

	router.Use(sessions.AsMiddleware).WithGroup("", func(g *bunrouter.Group) {
		g.GET("/get_counters/", counterHandler.GetCounters)
	})

	corsMiddleware := cors.New(cors.Options{
		AllowOriginFunc:  func(string) bool { return true },
		AllowCredentials: true,
		AllowedHeaders:   []string{"*"},
	})

	return corsMiddleware.Handler(router)
}

// NewInternalServer builds the handler for the internal counter write
// endpoint. It is meant to be reachable only from the backend network and
// carries no session auth, mirroring the split the public server enforces.
func NewInternalServer(service handler.CounterService, logger *zap.Logger) http.Handler {
	counterHandler := handler.NewCounterHandler(service, logger)

	router := bunrouter.New()

	router.POST("/update_counter/", counterHandler.UpdateCounter)

	return router
}
