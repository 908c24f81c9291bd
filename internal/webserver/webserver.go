package webserver

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zsprackett/usage-bar/internal/config"
	"github.com/zsprackett/usage-bar/internal/db"
	"github.com/zsprackett/usage-bar/internal/events"
	"github.com/zsprackett/usage-bar/internal/metrics"
	"github.com/zsprackett/usage-bar/internal/usage"
	"github.com/zsprackett/usage-bar/internal/usagepoller"
)

// Poller is the scheduler surface the server reads and drives.
type Poller interface {
	Current() usage.State
	Status() usagepoller.State
	Interval() time.Duration
	Refresh() bool
}

// History is the read side of the usage database.
type History interface {
	Snapshots(since time.Time, limit int) ([]db.Snapshot, error)
	RecentErrors(limit int) ([]db.PollError, error)
	Summarize(since time.Time) (db.Summary, error)
}

// Deps are the server's collaborators. History, Gatherer and HTTPMetrics may be nil.
type Deps struct {
	Poller      Poller
	Settings    *config.Store
	History     History
	Gatherer    prometheus.Gatherer
	HTTPMetrics *metrics.HTTP
	Logger      *slog.Logger
}

type Server struct {
	deps Deps
	cfg  config.WebserverConfig

	secret string

	mu      sync.Mutex
	clients map[chan events.Event]struct{}
	srv     *http.Server
}

// New builds a server. When auth is enabled without a configured secret, a
// random one is generated, so tokens do not survive a restart.
func New(deps Deps, cfg config.WebserverConfig) *Server {
	secret := cfg.Auth.Secret
	if secret == "" && cfg.Auth.Enabled() {
		var err error
		if secret, err = GenerateSecret(); err != nil {
			deps.Logger.Error("webserver: generate secret", "err", err)
		}
	}
	return &Server{
		deps:    deps,
		cfg:     cfg,
		secret:  secret,
		clients: make(map[chan events.Event]struct{}),
	}
}

// Broadcast implements events.Broadcaster.
func (s *Server) Broadcast(e events.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.clients {
		select {
		case ch <- e:
		default:
		}
	}
}

func (s *Server) addClient(ch chan events.Event) {
	s.mu.Lock()
	s.clients[ch] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) removeClient(ch chan events.Event) {
	s.mu.Lock()
	delete(s.clients, ch)
	s.mu.Unlock()
}

// FollowSettings re-renders and broadcasts the current state whenever the
// settings change, so clients pick up a new display mode immediately.
func (s *Server) FollowSettings() (unsubscribe func()) {
	return s.deps.Settings.Subscribe(func(c config.Change) {
		s.Broadcast(s.settingsEvent(c.New))
	})
}

func (s *Server) snapshot() events.Event {
	settings := s.deps.Settings.Settings()
	e := events.New(events.TypeSnapshot, s.deps.Poller.Current(), settings.DisplayMode)
	e.Settings = &settings
	return e
}

func (s *Server) settingsEvent(settings config.Settings) events.Event {
	e := events.New(events.TypeSettings, s.deps.Poller.Current(), settings.DisplayMode)
	e.Settings = &settings
	return e
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.RequestID)
	r.Use(requestLogger(s.deps.Logger))
	if s.deps.HTTPMetrics != nil {
		r.Use(s.deps.HTTPMetrics.Middleware)
	}

	r.Group(func(r chi.Router) {
		if s.cfg.Auth.Enabled() {
			r.Use(func(next http.Handler) http.Handler {
				return jwtMiddleware(s.secret, []string{"/api/login"}, next)
			})
		}
		r.Route("/api", func(r chi.Router) {
			if s.cfg.Auth.Enabled() {
				r.Post("/login", s.handleLogin)
			}
			r.Get("/usage", s.handleUsage)
			r.Post("/refresh", s.handleRefresh)
			r.Get("/history", s.handleHistory)
			r.Get("/settings", s.handleGetSettings)
			r.Put("/settings", s.handlePutSettings)
		})
		r.Get("/events", s.handleSSE)
		r.Get("/ws", s.handleWebSocket)
		if s.deps.Gatherer != nil {
			r.Handle("/metrics", promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{}))
		}
	})
	r.Handle("/*", staticHandler())
	return r
}

// Start listens on the configured address and serves in the background.
// It is a no-op when the server is disabled.
func (s *Server) Start() error {
	if !s.cfg.Enabled {
		return nil
	}
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("webserver listen %s: %w", addr, err)
	}
	tlsCfg, err := s.tlsConfig()
	if err != nil {
		ln.Close()
		return fmt.Errorf("webserver tls: %w", err)
	}
	if tlsCfg != nil {
		ln = tls.NewListener(ln, tlsCfg)
	}
	srv := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	s.mu.Lock()
	s.srv = srv
	s.mu.Unlock()

	s.deps.Logger.Info("webserver: listening", "addr", ln.Addr().String(), "tls", tlsCfg != nil, "auth", s.cfg.Auth.Enabled())
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.deps.Logger.Error("webserver: serve", "err", err)
		}
	}()
	return nil
}

// Shutdown stops a started server, waiting up to ctx for open requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	s.srv = nil
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

type usageResponse struct {
	events.Event
	Status   string `json:"status"`
	Interval string `json:"interval"`
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, usageResponse{
		Event:    s.snapshot(),
		Status:   s.deps.Poller.Status().String(),
		Interval: s.deps.Poller.Interval().String(),
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	started := s.deps.Poller.Refresh()
	writeJSON(w, http.StatusAccepted, map[string]bool{"started": started})
}

type historyResponse struct {
	Snapshots []snapshotJSON  `json:"snapshots"`
	Errors    []pollErrorJSON `json:"errors"`
	Summary   summaryJSON     `json:"summary"`
}

type snapshotJSON struct {
	PollID     string       `json:"poll_id"`
	At         time.Time    `json:"at"`
	DurationMs int64        `json:"duration_ms"`
	Record     usage.Record `json:"record"`
}

type pollErrorJSON struct {
	PollID   string          `json:"poll_id"`
	At       time.Time       `json:"at"`
	Kind     usage.ErrorKind `json:"kind"`
	Message  string          `json:"message"`
	ExitCode int             `json:"exit_code,omitempty"`
}

type summaryJSON struct {
	OK     int       `json:"ok"`
	Failed int       `json:"failed"`
	Since  time.Time `json:"since"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.deps.History == nil {
		http.Error(w, "history is not enabled", http.StatusServiceUnavailable)
		return
	}
	hours := queryInt(r, "hours", 24)
	limit := queryInt(r, "limit", 500)
	if hours <= 0 || limit <= 0 {
		http.Error(w, "hours and limit must be positive", http.StatusBadRequest)
		return
	}
	since := time.Now().Add(-time.Duration(hours) * time.Hour)

	snaps, err := s.deps.History.Snapshots(since, limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	errs, err := s.deps.History.RecentErrors(limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	sum, err := s.deps.History.Summarize(since)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	resp := historyResponse{
		Snapshots: make([]snapshotJSON, 0, len(snaps)),
		Errors:    make([]pollErrorJSON, 0, len(errs)),
		Summary:   summaryJSON{OK: sum.OK, Failed: sum.Failed, Since: sum.Since},
	}
	for _, sn := range snaps {
		resp.Snapshots = append(resp.Snapshots, snapshotJSON{
			PollID: sn.PollID, At: sn.At, DurationMs: sn.Duration.Milliseconds(), Record: sn.Record,
		})
	}
	for _, e := range errs {
		resp.Errors = append(resp.Errors, pollErrorJSON{
			PollID: e.PollID, At: e.At, Kind: e.Kind, Message: e.Message, ExitCode: e.ExitCode,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

type settingsResponse struct {
	config.Settings
	PathWarning string `json:"pathWarning,omitempty"`
}

func newSettingsResponse(st config.Settings) settingsResponse {
	return settingsResponse{Settings: st, PathWarning: config.PathWarning(st.ExecutablePath)}
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newSettingsResponse(s.deps.Settings.Settings()))
}

// settingsPatch carries only the fields a client wants to change.
type settingsPatch struct {
	DisplayMode     *config.DisplayMode     `json:"displayMode"`
	RefreshInterval *config.RefreshInterval `json:"refreshInterval"`
	ExecutablePath  *string                 `json:"executablePath"`
	ResetPath       bool                    `json:"resetExecutablePath"`
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var patch settingsPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	err := s.deps.Settings.Update(func(st *config.Settings) {
		if patch.DisplayMode != nil {
			st.DisplayMode = *patch.DisplayMode
		}
		if patch.RefreshInterval != nil {
			st.RefreshInterval = *patch.RefreshInterval
		}
		if patch.ExecutablePath != nil {
			st.ExecutablePath = *patch.ExecutablePath
		}
		if patch.ResetPath {
			st.ExecutablePath = config.DefaultExecutablePath
		}
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, newSettingsResponse(s.deps.Settings.Settings()))
}

func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", 500)
		return
	}

	ch := make(chan events.Event, 16)
	s.addClient(ch)
	defer s.removeClient(ch)

	writeSSE(w, flusher, s.snapshot())

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case e := <-ch:
			writeSSE(w, flusher, e)
		case <-ticker.C:
			fmt.Fprintf(w, ": keepalive\n\n")
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, f http.Flusher, e events.Event) {
	data, _ := json.Marshal(e)
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Type, data)
	f.Flush()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return -1
	}
	return n
}

// requestLogger emits one debug line per request, tagged with chi's request id.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Debug("webserver: request",
				"request_id", chiMiddleware.GetReqID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
			)
		})
	}
}
