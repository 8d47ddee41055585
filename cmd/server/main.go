// cmd/server/main.go - read-only HTTP server for the generated feed
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/valpere/CatalogHarvest/internal/catalog"
	"github.com/valpere/CatalogHarvest/internal/monitoring"
	"github.com/valpere/CatalogHarvest/internal/output"
	"github.com/valpere/CatalogHarvest/internal/utils"
)

var version = "dev"

var viewNamePattern = regexp.MustCompile(`^[a-z0-9_]+$`)

// serverConfig holds the command-line settings.
type serverConfig struct {
	Addr     string
	Dir      string
	APIKey   string
	Rate     float64
	Burst    int
	MaxAge   time.Duration
	LogLevel string
}

// feedServer serves the files written by a pipeline run.
type feedServer struct {
	dir     string
	apiKey  string
	health  *monitoring.HealthManager
	metrics *monitoring.Metrics
	limiter *rate.Limiter
	logger  *zap.Logger
}

func newFeedServer(cfg serverConfig, logger *zap.Logger) *feedServer {
	health := monitoring.NewHealthManager(version, 5*time.Second)
	health.RegisterCheck("feed", true, monitoring.FeedFreshnessCheck(filepath.Join(cfg.Dir, output.GlobalFile), cfg.MaxAge, nil))
	health.RegisterCheck("goroutines", false, monitoring.GoroutineHealthCheck(1000))

	var limiter *rate.Limiter
	if cfg.Rate > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.Rate), burst)
	}

	return &feedServer{
		dir:     cfg.Dir,
		apiKey:  cfg.APIKey,
		health:  health,
		metrics: monitoring.NewMetrics(monitoring.MetricsConfig{Subsystem: "server", EnableGoMetrics: true}),
		limiter: limiter,
		logger:  utils.OrNop(logger).Named("server"),
	}
}

func (s *feedServer) routes() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.health.HealthHandler()).Methods("GET")
	r.Handle("/metrics", s.metrics.Handler()).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(s.authMiddleware, s.rateLimitMiddleware)
	api.HandleFunc("/global", s.globalHandler).Methods("GET")
	api.HandleFunc("/search", s.searchHandler).Methods("GET")
	api.HandleFunc("/{category}/{view}", s.viewHandler).Methods("GET")

	r.Use(s.loggingMiddleware)
	return r
}

func (s *feedServer) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey == "" {
			next.ServeHTTP(w, r)
			return
		}
		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		if strings.TrimPrefix(authHeader, "Bearer ") != s.apiKey {
			writeError(w, http.StatusUnauthorized, "invalid API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *feedServer) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow() {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *feedServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("took", time.Since(start)))
	})
}

func (s *feedServer) globalHandler(w http.ResponseWriter, r *http.Request) {
	s.serveFile(w, filepath.Join(s.dir, output.GlobalFile))
}

// searchHandler serves the search index, filtered by the optional q
// (title substring) and category parameters.
func (s *feedServer) searchHandler(w http.ResponseWriter, r *http.Request) {
	path := filepath.Join(s.dir, output.SearchIndexFile)
	query := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("q")))
	category := catalog.Category(r.URL.Query().Get("category"))
	if query == "" && category == "" {
		s.serveFile(w, path)
		return
	}
	if category != "" && !category.Valid() {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown category %q", category))
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		s.fileError(w, err)
		return
	}
	var entries []catalog.SearchEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		s.logger.Error("corrupt search index", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "search index is unreadable")
		return
	}

	matches := []catalog.SearchEntry{}
	for _, e := range entries {
		if category != "" && e.ContentType != category {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(e.Title), query) &&
			!strings.Contains(strings.ToLower(e.OriginalTitle), query) {
			continue
		}
		matches = append(matches, e)
	}
	writeJSON(w, http.StatusOK, matches)
}

func (s *feedServer) viewHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	category := catalog.Category(vars["category"])
	view := vars["view"]

	if !category.Valid() {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown category %q", category))
		return
	}
	if !viewNamePattern.MatchString(view) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid view name %q", view))
		return
	}
	s.serveFile(w, filepath.Join(s.dir, string(category), view+".json"))
}

func (s *feedServer) serveFile(w http.ResponseWriter, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		s.fileError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "public, max-age=300")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (s *feedServer) fileError(w http.ResponseWriter, err error) {
	if errors.Is(err, os.ErrNotExist) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	s.logger.Error("failed to read feed file", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "failed to read feed")
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	data, err := output.MarshalJSON(v)
	if err != nil {
		http.Error(w, "encoding failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func parseFlags(args []string) (serverConfig, error) {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	cfg := serverConfig{}
	fs.StringVar(&cfg.Addr, "addr", ":8080", "listen address")
	fs.StringVar(&cfg.Dir, "dir", "output", "feed directory written by catalogharvest run")
	fs.StringVar(&cfg.APIKey, "api-key", os.Getenv("FEED_API_KEY"), "bearer token required on /api/v1 (empty disables auth)")
	fs.Float64Var(&cfg.Rate, "rate", 10, "API requests per second (0 disables limiting)")
	fs.IntVar(&cfg.Burst, "burst", 20, "API burst size")
	fs.DurationVar(&cfg.MaxAge, "max-age", 36*time.Hour, "feed age after which /health reports degraded")
	fs.StringVar(&cfg.LogLevel, "log-level", "info", "log level")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func main() {
	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}

	logger, err := utils.NewLogger(cfg.LogLevel, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newFeedServer(cfg, logger).routes(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info("feed server listening", zap.String("addr", cfg.Addr), zap.String("dir", cfg.Dir))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server failed", zap.Error(err))
		os.Exit(1)
	}
}
