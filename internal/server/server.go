package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/evidlabel/did/internal/anonymize"
	"github.com/evidlabel/did/internal/cache"
	"github.com/evidlabel/did/internal/cluster"
	"github.com/evidlabel/did/internal/config"
	"github.com/evidlabel/did/internal/detect"
	"github.com/evidlabel/did/internal/entity"
	"github.com/evidlabel/did/internal/logger"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Server exposes extraction and anonymization as an HTTP API. It owns one
// shared entity set; requests mutate it under a lock so groups minted for one
// request are visible to the next, with a strict happens-before ordering.
type Server struct {
	config     *config.Config
	logger     *logger.Logger
	engine     *anonymize.Engine
	recognizer detect.Recognizer
	clusterer  *cluster.Clusterer
	cache      *cache.DetectionCache
	hub        *Hub
	router     *mux.Router
	server     *http.Server
	limiters   *ipLimiters

	mu           sync.Mutex
	entities     *entity.Set
	entitiesPath string
}

// New creates the API server. entitiesPath may name an existing entity
// configuration to serve from; an empty path starts with an empty set.
func New(cfg *config.Config, log *logger.Logger, entitiesPath string) (*Server, error) {
	set := entity.NewSet()
	if entitiesPath != "" {
		loaded, err := entity.Load(entitiesPath)
		if err != nil {
			return nil, err
		}
		set = loaded
	}

	recognizer, err := detect.New(cfg.Detection, log.WithComponent("detect"))
	if err != nil {
		return nil, fmt.Errorf("failed to create recognizer: %w", err)
	}
	if cfg.Detection.Remote.Enabled {
		recognizer.SetDelegate(detect.NewRemote(cfg.Detection.Remote))
	}

	var rec detect.Recognizer = recognizer
	var detectionCache *cache.DetectionCache
	if cfg.Cache.Enabled {
		detectionCache, err = cache.New(cfg.Cache, log.WithComponent("cache"))
		if err != nil {
			return nil, fmt.Errorf("failed to create detection cache: %w", err)
		}
		rec = cache.Wrap(recognizer, detectionCache)
	}

	clusterer := cluster.New(cfg.Clustering.Threshold)

	s := &Server{
		config:       cfg,
		logger:       log.WithComponent("server"),
		engine:       anonymize.NewEngine(rec, clusterer, cfg.Language, log.WithComponent("anonymize")),
		recognizer:   rec,
		clusterer:    clusterer,
		cache:        detectionCache,
		hub:          NewHub(log.WithComponent("events").Logger),
		router:       mux.NewRouter(),
		limiters:     newIPLimiters(cfg.Server.RateLimit.RequestsPerSecond, cfg.Server.RateLimit.Burst),
		entities:     set,
		entitiesPath: entitiesPath,
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return s, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/info", s.handleInfo).Methods("GET")

	if s.config.Server.Events.Enabled {
		s.router.HandleFunc(s.config.Server.Events.Path, s.handleEvents).Methods("GET")
	}

	api := s.router.PathPrefix("/v1").Subrouter()
	api.Use(s.loggingMiddleware)
	api.Use(s.rateLimitMiddleware)
	api.HandleFunc("/extract", s.handleExtract).Methods("POST")
	api.HandleFunc("/anonymize", s.handleAnonymize).Methods("POST")
	api.HandleFunc("/entities", s.handleEntities).Methods("GET")
}

// Start starts the HTTP server and the event hub.
func (s *Server) Start() error {
	s.logger.Info("Starting API server",
		zap.Int("port", s.config.Server.Port),
		zap.String("language", s.config.Language),
		zap.Int("groups", s.groupCount()),
	)

	go s.hub.Run()

	return s.server.ListenAndServe()
}

// Stop gracefully stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping API server")
	if s.cache != nil {
		defer s.cache.Close()
	}
	return s.server.Shutdown(ctx)
}

// newExtractor creates a fresh extractor sharing the server's recognizer
// and clusterer. Each extract request pools its own spans; only Finalize
// touches the shared set, under the lock.
func (s *Server) newExtractor() *anonymize.Extractor {
	return anonymize.NewExtractor(s.recognizer, s.clusterer, s.config.Language, s.logger)
}

func (s *Server) groupCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entities.GroupCount()
}
