package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/atvirokodosprendimai/slavealloc/internal/allocator"
	"github.com/atvirokodosprendimai/slavealloc/internal/db"
	"github.com/atvirokodosprendimai/slavealloc/internal/log"
	"github.com/atvirokodosprendimai/slavealloc/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"gorm.io/gorm"
)

// Allocator is the part of the allocator the front end drives.
type Allocator interface {
	Allocate(ctx context.Context, slaveName string) (*allocator.Allocation, error)
}

// Renderer turns an allocation into tac text.
type Renderer interface {
	Render(*allocator.Allocation) (string, error)
}

// NewRouter builds the HTTP surface. GET /{slaveName} is the boot-time
// contract; the /api and /metrics routes are read-only conveniences.
func NewRouter(gormDB *gorm.DB, alloc Allocator, renderer Renderer) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok\n"))
	})
	r.Handle("/metrics", metrics.Handler())
	r.Get("/api/slaves", slavesHandler(gormDB))
	r.Get("/api/masters", mastersHandler(gormDB))
	r.Get("/{slaveName}", tacHandler(alloc, renderer))
	return r
}

func tacHandler(alloc Allocator, renderer Renderer) http.HandlerFunc {
	l := log.WithComponent("http")
	return func(w http.ResponseWriter, r *http.Request) {
		slaveName := chi.URLParam(r, "slaveName")
		w.Header().Set("Content-Type", "text/plain")

		allocation, err := alloc.Allocate(r.Context(), slaveName)
		if err == nil {
			var tac string
			tac, err = renderer.Render(allocation)
			if err == nil {
				metrics.ObserveHTTP(http.StatusOK)
				w.Write([]byte(tac))
				return
			}
		}

		l.Error().Err(err).Str("slave", slaveName).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("while handling tac request")
		metrics.ObserveHTTP(http.StatusInternalServerError)
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("error processing request: " + err.Error() + "\n"))
	}
}

func slavesHandler(gormDB *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := db.DenormalizedSlaves(r.Context(), gormDB)
		writeJSON(w, rows, err)
	}
}

func mastersHandler(gormDB *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := db.DenormalizedMasters(r.Context(), gormDB)
		writeJSON(w, rows, err)
	}
}

func writeJSON(w http.ResponseWriter, v any, err error) {
	if err != nil {
		http.Error(w, "failed to query store: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// ListenAndServe serves handler on addr until ctx is cancelled.
func ListenAndServe(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Logger.Info().Str("addr", addr).Msg("HTTP server listening")
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
