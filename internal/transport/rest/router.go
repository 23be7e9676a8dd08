// Package rest wires the dispatcher to gorilla/mux, exposing every HTTP
// endpoint of §6.1.
package rest

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"buzzer/internal/dispatcher"
	"buzzer/internal/transport/ws"
)

// Container holds every dependency the router needs.
type Container struct {
	Dispatcher         *dispatcher.Dispatcher
	WSHandler          *ws.Handler
	Log                zerolog.Logger
	CORSAllowedOrigins string
}

func NewRouter(c *Container) http.Handler {
	r := mux.NewRouter()
	h := &handler{dispatcher: c.Dispatcher, log: c.Log}

	origins := c.CORSAllowedOrigins
	if origins == "" {
		origins = "*"
	}
	r.Use(corsMiddleware(origins))

	r.HandleFunc("/health", h.health).Methods(http.MethodGet, http.MethodOptions)

	r.HandleFunc("/api/session", h.createSession).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/api/rooms", h.listRooms).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/api/session/{code}", h.getSession).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/api/session/{code}/join", h.join).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/api/session/{code}/leave", h.leave).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/api/session/{code}/destroy", h.destroy).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/api/session/{code}/share", h.issueShareCode).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/api/share/claim", h.claimShareCode).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/api/session/{code}/turn", h.setTurn).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/api/session/{code}/question/activate", h.activate).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/api/session/{code}/question/open", h.openBuzzers).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/api/session/{code}/question/mark", h.mark).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/api/session/{code}/question/cancel", h.cancel).Methods(http.MethodPost, http.MethodOptions)

	r.HandleFunc("/ws/{code}", c.WSHandler.Serve).Methods(http.MethodGet)

	return r
}

// corsMiddleware closes over the configured allowed-origins value instead of
// reading the environment per request — it is resolved once, at startup, by
// config.Load.
func corsMiddleware(allowedOrigins string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", allowedOrigins)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
