// Package mock provides a local stand-in for the contact and quote API,
// used for dry runs of the suite and by tests.
package mock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"
)

const (
	// DefaultRootMessage is served by GET <prefix>/
	DefaultRootMessage = "API CAUGUSTEG Inc. - Support informatique"
	// DefaultAPIPrefix is where the endpoints are mounted
	DefaultAPIPrefix = "/api"
	// DefaultPort is the port the backend listens on in development
	DefaultPort = 8001
)

// Server is a mock HTTP server for the contact and quote endpoints
type Server struct {
	router      *Router
	store       *Store
	port        int
	prefix      string
	rootMessage string
	delay       time.Duration
	storageDown bool
	logger      *slog.Logger
}

// Option is a functional option for Server
type Option func(*Server)

// WithPort sets the server port
func WithPort(port int) Option {
	return func(s *Server) {
		s.port = port
	}
}

// WithDelay adds a delay to all responses
func WithDelay(delay time.Duration) Option {
	return func(s *Server) {
		s.delay = delay
	}
}

// WithAPIPrefix mounts the endpoints under prefix instead of /api
func WithAPIPrefix(prefix string) Option {
	return func(s *Server) {
		s.prefix = prefix
	}
}

// WithRootMessage sets the message returned by the root endpoint
func WithRootMessage(msg string) Option {
	return func(s *Server) {
		s.rootMessage = msg
	}
}

// WithStorageDown makes every submission fail with 500, as a backend
// that lost its database would.
func WithStorageDown(down bool) Option {
	return func(s *Server) {
		s.storageDown = down
	}
}

// WithLogger sets the request logger
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates a new mock server
func NewServer(opts ...Option) *Server {
	s := &Server{
		router:      NewRouter(),
		store:       NewStore(),
		port:        DefaultPort,
		prefix:      DefaultAPIPrefix,
		rootMessage: DefaultRootMessage,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.router.AddRoute(&Route{Method: http.MethodGet, Path: s.prefix + "/", Name: "root", Handler: s.handleRoot})
	s.router.AddRoute(&Route{Method: http.MethodPost, Path: s.prefix + "/contact", Name: "contact", Handler: s.handleContact})
	s.router.AddRoute(&Route{Method: http.MethodPost, Path: s.prefix + "/quote", Name: "quote", Handler: s.handleQuote})
	return s
}

// Store returns the submissions accepted so far
func (s *Server) Store() *Store {
	return s.store
}

// Routes returns all registered routes
func (s *Server) Routes() []*Route {
	return s.router.Routes()
}

// Handler returns the server's HTTP handler, for use with httptest
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRequest)
	return mux
}

// Start starts the mock server and blocks until it stops
func (s *Server) Start() error {
	return s.StartWithContext(context.Background())
}

// StartWithContext starts the server with context for graceful shutdown
func (s *Server) StartWithContext(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return fmt.Errorf("listening on port %d: %w", s.port, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	server := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("mock server listening", "addr", ln.Addr().String(), "prefix", s.prefix)
	for _, route := range s.router.Routes() {
		s.logger.Debug("route", "method", route.Method, "path", route.Path)
	}

	if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleRequest(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if s.delay > 0 {
		time.Sleep(s.delay)
	}

	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	route, pathKnown := s.router.Match(r.Method, r.URL.Path)
	switch {
	case route != nil:
		route.Handler(rec, r)
	case pathKnown:
		writeJSON(rec, http.StatusMethodNotAllowed, map[string]string{"detail": "Method Not Allowed"})
	default:
		writeJSON(rec, http.StatusNotFound, map[string]string{"detail": "Not Found"})
	}

	s.logger.Debug("mock request",
		"method", r.Method,
		"path", r.URL.Path,
		"status", rec.status,
		"duration", time.Since(start),
	)
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": s.rootMessage})
}

func (s *Server) handleContact(w http.ResponseWriter, r *http.Request) {
	var c ContactSubmission
	if !decodeBody(w, r, &c) {
		return
	}
	if errs := validateContact(&c); len(errs) > 0 {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": errs})
		return
	}
	if s.storageDown {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "database unavailable"})
		return
	}

	if c.Telephone != "" {
		c.Telephone, _ = NormalizePhone(c.Telephone)
	}
	ticket := s.store.AddContact(c)

	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"message":      "Message received, we will get back to you shortly.",
		"ticketNumber": ticket,
		"telephone":    c.Telephone,
	})
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	var q QuoteSubmission
	if !decodeBody(w, r, &q) {
		return
	}
	if errs := validateQuote(&q); len(errs) > 0 {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": errs})
		return
	}
	if s.storageDown {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "database unavailable"})
		return
	}

	if q.Telephone != "" {
		q.Telephone, _ = NormalizePhone(q.Telephone)
	}
	ref := s.store.AddQuote(q)

	writeJSON(w, http.StatusOK, map[string]any{
		"success":         true,
		"message":         "Quote request received.",
		"referenceNumber": ref,
	})
}

// decodeBody writes a 400 and returns false unless the body is exactly one
// JSON value
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	err := dec.Decode(v)
	if err == nil {
		if _, tokErr := dec.Token(); tokErr != io.EOF {
			err = errors.New("unexpected data after JSON value")
		}
	}
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "Invalid JSON body: " + err.Error()})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
