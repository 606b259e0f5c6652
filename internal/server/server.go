package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/websocket"

	"github.com/gravitas-games/hexrts/internal/config"
	"github.com/gravitas-games/hexrts/internal/persistence"
)

// Server represents the game server
type Server struct {
	config       *config.Config
	session      *Session
	upgrader     websocket.Upgrader
	httpSrv      *http.Server
	jwtValidator *JWTValidator
	redis        *redis.Client
	store        *persistence.DB

	// Connection tracking
	connections map[*Connection]bool
	connMu      sync.RWMutex

	// Shutdown
	ctx    context.Context
	cancel context.CancelFunc
	runErr chan error

	logger *slog.Logger
}

// New creates a new server instance
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("initializing server")

	ctx, cancel := context.WithCancel(context.Background())
	srv := &Server{
		config:      cfg,
		connections: make(map[*Connection]bool),
		ctx:         ctx,
		cancel:      cancel,
		runErr:      make(chan error, 1),
		logger:      logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// TODO: check Origin against a configured allow list
				return true
			},
		},
	}

	srv.redis = redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := srv.redis.Ping(ctx).Err(); err != nil {
		srv.abort()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	logger.Info("connected to Redis", "address", cfg.Redis.Address)

	jwtValidator, err := NewJWTValidator(ctx, cfg, srv.redis, logger)
	if err != nil {
		srv.abort()
		return nil, fmt.Errorf("failed to initialize JWT validator: %w", err)
	}
	srv.jwtValidator = jwtValidator

	if cfg.Database.Path != "" {
		store, err := persistence.Open(cfg.Database.Path, logger)
		if err != nil {
			srv.abort()
			return nil, err
		}
		srv.store = store
	}

	session, err := NewSession(ctx, "main", cfg, srv.store, logger)
	if err != nil {
		srv.abort()
		return nil, err
	}
	srv.session = session
	go func() { srv.runErr <- session.Run(ctx) }()

	logger.Info("server initialized")
	return srv, nil
}

// abort releases what New acquired before failing.
func (s *Server) abort() {
	s.cancel()
	if s.redis != nil {
		s.redis.Close()
	}
	if s.store != nil {
		s.store.Close()
	}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	return mux
}

// Start begins listening for connections
func (s *Server) Start(addr string) error {
	s.httpSrv = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("websocket server listening", "ws", "ws://"+addr+"/ws", "health", "http://"+addr+"/health")
	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server. The session saves the world before
// the store is closed.
func (s *Server) Shutdown() error {
	s.logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if s.httpSrv != nil {
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			s.logger.Warn("HTTP server shutdown error", "error", err)
		}
	}

	s.connMu.Lock()
	for conn := range s.connections {
		conn.Close()
	}
	s.connMu.Unlock()

	s.cancel()

	var errs []error
	select {
	case err := <-s.runErr:
		errs = append(errs, err)
	case <-ctx.Done():
		errs = append(errs, fmt.Errorf("session did not stop: %w", ctx.Err()))
	}

	if s.store != nil {
		errs = append(errs, s.store.Close())
	}
	if s.redis != nil {
		errs = append(errs, s.redis.Close())
	}

	s.logger.Info("server shutdown complete")
	return errors.Join(errs...)
}

// handleWebSocket handles WebSocket connection requests
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	log := s.logger.With("remote", r.RemoteAddr)

	tokenString := extractTokenFromHeader(r)
	if tokenString == "" {
		log.Info("missing JWT token")
		http.Error(w, "Missing authentication token", http.StatusUnauthorized)
		return
	}

	player, err := s.jwtValidator.ValidateToken(r.Context(), tokenString)
	if err != nil {
		log.Info("invalid JWT token", "error", err)
		http.Error(w, fmt.Sprintf("Invalid token: %v", err), http.StatusUnauthorized)
		return
	}
	log = log.With("player", player.ID, "username", player.Username)

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("websocket upgrade failed", "error", err)
		return
	}

	conn := NewConnection(ws, s.session, log)
	conn.player = player
	conn.authenticated = true

	s.connMu.Lock()
	s.connections[conn] = true
	s.connMu.Unlock()

	log.Info("websocket connection established")
	conn.Handle(s.ctx)

	s.connMu.Lock()
	delete(s.connections, conn)
	s.connMu.Unlock()

	log.Info("websocket connection closed")
}

// handleHealth reports liveness and the session status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(struct {
		Status  string        `json:"status"`
		Session SessionStatus `json:"session"`
	}{"ok", s.session.GetStatus()})
}
