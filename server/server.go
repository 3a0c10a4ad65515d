package server

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"propsearch/agent"
	"propsearch/config"
	"propsearch/scraper"
	"propsearch/services"
	"propsearch/storage"
)

// Server is the HTTP boundary: the structured and natural-language search
// endpoints, the portal diagnostics endpoints and the static test page.
type Server struct {
	cfg     *config.Config
	search  *services.SearchService
	agent   *agent.Agent
	scraper *scraper.Client
	store   storage.CacheStore
}

func New(cfg *config.Config, search *services.SearchService, ag *agent.Agent, sc *scraper.Client, store storage.CacheStore) *http.Server {
	s := &Server{
		cfg:     cfg,
		search:  search,
		agent:   ag,
		scraper: sc,
		store:   store,
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP, requestLogger, middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/", s.handleIndex)

	r.Route("/api", func(r chi.Router) {
		r.Get("/search", s.handleSearch)
		r.Post("/ask", s.handleAsk)
		r.Get("/properties/{id}", s.handleProperty)
	})

	r.Route("/pf", func(r chi.Router) {
		r.Get("/locations", s.handleLocations)
		r.Post("/build-id", s.handleBuildID)
		r.Post("/listings", s.handleRawListings)
	})

	return &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// requestLogger tags every request with a short id and logs method, path,
// status and duration.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()[:8]
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		log.Printf("[%s] %s %s -> %d (%s)", id, r.Method, r.URL.Path, ww.Status(), time.Since(start))
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	http.ServeFile(w, r, "web/index.html")
}
