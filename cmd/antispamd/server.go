package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/lumasweb/antispam/internal/audit"
	"github.com/lumasweb/antispam/internal/cachestore"
	"github.com/lumasweb/antispam/internal/config"
	"github.com/lumasweb/antispam/internal/engine"
	"github.com/lumasweb/antispam/internal/reputation"
	"github.com/lumasweb/antispam/internal/session"
)

// throttleCacheTTL bounds the audit-throttle windows; it must be at least as
// long as the largest window the engine uses.
const throttleCacheTTL = 10 * time.Minute

// server hosts the check API and the metrics endpoint around one engine.
type server struct {
	cfg *config.Config
	eng *engine.Engine
	rep *reputation.Engine

	repStore  *reputation.BoltStore
	auditSink *audit.BoltSink
	sessRedis *session.RedisStore // nil for the in-process store

	apiSrv     *http.Server
	metricsSrv *http.Server // nil when MetricsAddr == ""
}

// newServer wires all stores and the engine from configuration. With a
// redis URL configured, the status cache and session store are shared across
// instances; otherwise everything but the bbolt files stays in-process.
func newServer(cfg *config.Config) (*server, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	repStore, err := reputation.Open(filepath.Join(cfg.DataDir, "reputation.db"))
	if err != nil {
		return nil, err
	}
	auditSink, err := audit.OpenBolt(filepath.Join(cfg.DataDir, "audit.db"))
	if err != nil {
		_ = repStore.Close()
		return nil, err
	}

	var (
		statusCache   cachestore.Store
		throttleCache cachestore.Store
		sessStore     session.Store
		sessRedis     *session.RedisStore
	)
	if cfg.RedisURL != "" {
		statusCache, err = cachestore.NewRedisStore(cfg.RedisURL, cfg.StatusCacheTTL)
		if err == nil {
			throttleCache, err = cachestore.NewRedisStore(cfg.RedisURL, throttleCacheTTL)
		}
		if err == nil {
			sessRedis, err = session.NewRedisStore(cfg.RedisURL, cfg.SessionTTL)
			sessStore = sessRedis
		}
		if err != nil {
			_ = repStore.Close()
			_ = auditSink.Close()
			return nil, fmt.Errorf("redis: %w", err)
		}
		log.Info().Msg("using redis status cache and session store")
	} else {
		statusCache = cachestore.NewMemStore(16_384, cfg.StatusCacheTTL)
		throttleCache = cachestore.NewMemStore(16_384, throttleCacheTTL)
		sessStore = session.NewMemStore()
	}

	rep := reputation.NewEngine(repStore, statusCache)
	s := &server{
		cfg:       cfg,
		rep:       rep,
		repStore:  repStore,
		auditSink: auditSink,
		sessRedis: sessRedis,
		eng: engine.New(
			cfg,
			session.NewTracker(sessStore, cfg.SessionAllowance),
			rep,
			audit.NewThrottle(throttleCache),
			auditSink,
			audit.LogSink{},
		),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/compile", s.handleCompile)
	mux.HandleFunc("POST /v1/validate", s.handleValidate)
	s.apiSrv = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	if cfg.MetricsAddr != "" {
		mmux := http.NewServeMux()
		mmux.Handle("/metrics", promhttp.Handler())
		mmux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		mmux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
			if err := s.rep.Healthy(r.Context()); err != nil {
				http.Error(w, err.Error(), http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		s.metricsSrv = &http.Server{
			Addr:         cfg.MetricsAddr,
			Handler:      mmux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
		}
	}

	return s, nil
}

// Run serves until ctx is cancelled, then shuts both servers down.
func (s *server) Run(ctx context.Context) error {
	errCh := make(chan error, 2)

	go func() {
		log.Info().Str("addr", s.apiSrv.Addr).Msg("check API listening")
		if err := s.apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("api server: %w", err)
		}
	}()
	if s.metricsSrv != nil {
		go func() {
			log.Info().Str("addr", s.metricsSrv.Addr).Msg("metrics listening")
			if err := s.metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server: %w", err)
			}
		}()
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.apiSrv.Shutdown(shutCtx); err != nil {
		log.Warn().Err(err).Msg("api shutdown")
	}
	if s.metricsSrv != nil {
		if err := s.metricsSrv.Shutdown(shutCtx); err != nil {
			log.Warn().Err(err).Msg("metrics shutdown")
		}
	}
	return nil
}

// Close releases the stores. Safe to call after Run returns.
func (s *server) Close() {
	if err := s.auditSink.Close(); err != nil {
		log.Warn().Err(err).Msg("closing audit store")
	}
	if err := s.repStore.Close(); err != nil {
		log.Warn().Err(err).Msg("closing reputation store")
	}
	if s.sessRedis != nil {
		if err := s.sessRedis.Close(); err != nil {
			log.Warn().Err(err).Msg("closing session store")
		}
	}
}

// checkRequest is the wire shape of both API endpoints. Fields carries the
// submitted values on validate; on compile it may be empty.
type checkRequest struct {
	Form      string            `json:"form"`
	FormKey   string            `json:"form_key,omitempty"`
	FormAlias string            `json:"form_alias,omitempty"`
	SessionID string            `json:"session_id"`
	Address   string            `json:"address"`
	URI       string            `json:"uri,omitempty"`
	UserAgent string            `json:"user_agent,omitempty"`
	POST      bool              `json:"post,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
}

func (s *server) engineRequest(body checkRequest, post bool) engine.Request {
	return engine.Request{
		FormID:    body.Form,
		FormKey:   body.FormKey,
		FormAlias: body.FormAlias,
		SessionID: body.SessionID,
		Address:   body.Address,
		URI:       body.URI,
		UserAgent: body.UserAgent,
		POST:      post,
		StartedAt: time.Now(),
		Values:    body.Fields,
		Honeypot:  body.Fields[s.cfg.HoneypotField],
	}
}

func (s *server) handleCompile(w http.ResponseWriter, r *http.Request) {
	var body checkRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.Form == "" {
		http.Error(w, "form is required", http.StatusBadRequest)
		return
	}

	suppress := s.eng.CompileFields(r.Context(), s.engineRequest(body, body.POST))
	writeJSON(w, map[string]any{"suppress": suppress})
}

func (s *server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var body checkRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.Form == "" {
		http.Error(w, "form is required", http.StatusBadRequest)
		return
	}

	req := s.engineRequest(body, true)
	names := make([]string, 0, len(body.Fields))
	for name := range body.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	st := engine.NewState()
	fieldErrs := make(map[string]string)
	for _, name := range names {
		if msg := s.eng.ValidateField(r.Context(), st, req, name, body.Fields[name]); msg != "" {
			fieldErrs[name] = msg
		}
	}

	// Once any field failed, every field carries the uniform rejection, so
	// no success path leaks through for fields validated before the flag.
	if len(fieldErrs) > 0 {
		for _, name := range names {
			fieldErrs[name] = s.cfg.RejectMessage
		}
	}

	writeJSON(w, map[string]any{
		"spam":   len(fieldErrs) > 0,
		"errors": fieldErrs,
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("encoding response")
	}
}
