package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"hubgateway/internal/auth"
	"hubgateway/internal/hub"
	"hubgateway/internal/models"
	"hubgateway/internal/queue"
	"hubgateway/internal/repository"
)

// ProfileReader is the narrow capability the HTTP handlers need from the
// repository layer: read-through profile and link lookups. Taking this
// rather than the concrete *repository.Repository lets handler tests
// substitute a fake without a live Postgres.
type ProfileReader interface {
	GetUserProfile(ctx context.Context, fid uint64, forceFetch bool) (models.Profile, error)
	GetProfileLinks(ctx context.Context, fid uint64, forceFetch bool, dir repository.FollowDirection) ([]models.Profile, error)
}

// Server wires the repository, hub adapter, auth gate, and task queue
// behind the HTTP route table.
type Server struct {
	repo       ProfileReader
	hub        hub.HubClient
	gate       *auth.Gate
	queue      *queue.TaskQueue
	httpServer *http.Server
}

func NewServer(repo ProfileReader, h hub.HubClient, gate *auth.Gate, q *queue.TaskQueue, bindAddr string) *Server {
	r := mux.NewRouter()

	s := &Server{
		repo:  repo,
		hub:   h,
		gate:  gate,
		queue: q,
	}

	r.Use(commonMiddleware)
	r.Use(rateLimitMiddleware)

	registerRoutes(r, s)

	s.httpServer = &http.Server{
		Addr:    bindAddr,
		Handler: r,
	}

	return s
}

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func commonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, key_hex, sig, timestamp, extra_sig_data_hex")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
