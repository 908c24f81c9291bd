package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/term"

	"github.com/zsprackett/usage-bar/internal/applog"
	"github.com/zsprackett/usage-bar/internal/config"
	"github.com/zsprackett/usage-bar/internal/db"
	"github.com/zsprackett/usage-bar/internal/events"
	"github.com/zsprackett/usage-bar/internal/history"
	"github.com/zsprackett/usage-bar/internal/invoker"
	"github.com/zsprackett/usage-bar/internal/metrics"
	"github.com/zsprackett/usage-bar/internal/notify"
	"github.com/zsprackett/usage-bar/internal/render"
	"github.com/zsprackett/usage-bar/internal/tmux"
	"github.com/zsprackett/usage-bar/internal/ui"
	"github.com/zsprackett/usage-bar/internal/usage"
	"github.com/zsprackett/usage-bar/internal/usagepoller"
	"github.com/zsprackett/usage-bar/internal/webserver"
)

const usageText = `usage: usage-bar [command]

commands:
  (none)          interactive status panel
  serve           poll in the background and serve the web API
  once            poll once and print the result as JSON
  set KEY VALUE   change a setting (display-mode, interval, path)
  passwd USER     require a login for the web API
`

func openDB() (*db.DB, error) {
	dbPath := config.DBPath()
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, err
	}
	store, err := db.Open(dbPath)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

func loadConfig() config.Config {
	cfg, err := config.Load(config.DefaultPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not load config: %v\n", err)
	}
	return cfg
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}

func main() {
	cmd := ""
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	switch cmd {
	case "":
		runTUI()
	case "serve":
		runServe()
	case "once":
		os.Exit(runOnce(os.Stdout))
	case "set":
		if len(os.Args) != 4 {
			fmt.Fprint(os.Stderr, usageText)
			os.Exit(2)
		}
		if err := runSet(os.Args[2], os.Args[3]); err != nil {
			fatal("%v", err)
		}
	case "passwd":
		if len(os.Args) != 3 {
			fmt.Fprint(os.Stderr, usageText)
			os.Exit(2)
		}
		if err := runPasswd(os.Args[2]); err != nil {
			fatal("%v", err)
		}
	case "help", "-h", "--help":
		fmt.Print(usageText)
	default:
		fmt.Fprint(os.Stderr, usageText)
		os.Exit(2)
	}
}

// app holds the long-running pieces shared by the TUI and serve modes.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	store    *config.Store
	poller   *usagepoller.Poller
	history  *db.DB
	notifier *notify.Notifier
	web      *webserver.Server
	closers  []func()
}

func newApp(cfg config.Config, logger *slog.Logger, forceWeb bool) (*app, error) {
	a := &app{cfg: cfg, logger: logger}
	a.store = config.NewStore(config.DefaultPath(), cfg)

	parser, err := usage.NewParser(cfg.Grammar)
	if err != nil {
		return nil, fmt.Errorf("usage grammar: %w", err)
	}
	inv := invoker.New(time.Duration(cfg.TimeoutSeconds)*time.Second, cfg.PTY)
	fetch := usagepoller.NewCLIFetch(a.store, inv, parser, cfg.Args)
	a.poller = usagepoller.New(fetch, a.store.Settings().RefreshInterval.Duration(), logger)

	store, err := openDB()
	if err != nil {
		logger.Warn("history disabled: could not open database", "err", err)
	} else {
		a.history = store
		a.closers = append(a.closers, func() { store.Close() })
		a.poller.Subscribe(history.NewRecorder(store, history.DefaultRetention, logger).Handle)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	pollMetrics := metrics.NewPoll()
	if err := pollMetrics.Register(reg); err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}
	httpMetrics := metrics.NewHTTP()
	if err := httpMetrics.Register(reg); err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}
	a.poller.Subscribe(pollMetrics.Observe)

	if path := cfg.TmuxStatusFile; path != "" || tmux.InsideTmux() {
		if path == "" {
			path = config.DefaultTmuxStatusFile()
		}
		sw := tmux.NewStatusWriter(path, a.store, logger)
		if err := sw.Init(); err != nil {
			logger.Warn("tmux status file disabled", "path", path, "err", err)
		} else {
			a.poller.Subscribe(sw.Handle)
			a.closers = append(a.closers, sw.Follow(a.store, a.poller.Current))
		}
	}

	a.notifier = notify.New(cfg.Notifications, notify.NewDesktop(), logger)
	a.poller.Subscribe(a.notifier.Handle)

	webCfg := cfg.Webserver
	if forceWeb {
		webCfg.Enabled = true
	}
	deps := webserver.Deps{
		Poller:      a.poller,
		Settings:    a.store,
		Gatherer:    reg,
		HTTPMetrics: httpMetrics,
		Logger:      logger,
	}
	if a.history != nil {
		deps.History = a.history
	}
	a.web = webserver.New(deps, webCfg)
	var b events.Broadcaster
	if webCfg.Enabled {
		b = a.web
		a.closers = append(a.closers, a.web.FollowSettings())
	}
	a.poller.Subscribe(events.Forward(b, a.store))

	return a, nil
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.web.Shutdown(ctx); err != nil {
		a.logger.Warn("webserver shutdown", "err", err)
	}
	a.notifier.Wait()
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func initLogger(cfg config.Config, stderr bool) (*slog.Logger, func()) {
	logger, logCloser, err := applog.Init(applog.InitConfig{
		LogDir:   cfg.LogDir,
		LogLevel: cfg.LogLevel,
		Stderr:   stderr,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not init log file: %v\n", err)
		return slog.Default(), func() {}
	}
	return logger, func() { logCloser.Close() }
}

func runTUI() {
	cfg := loadConfig()
	logger, closeLog := initLogger(cfg, false)
	defer closeLog()

	a, err := newApp(cfg, logger, false)
	if err != nil {
		fatal("%v", err)
	}
	defer a.close()

	if err := a.web.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: webserver: %v\n", err)
	}

	var hist ui.HistorySource
	if a.history != nil {
		hist = a.history
	}
	if err := ui.NewApp(a.poller, a.store, hist, logger).Run(); err != nil {
		fatal("%v", err)
	}
}

func runServe() {
	cfg := loadConfig()
	logger, closeLog := initLogger(cfg, true)
	defer closeLog()

	a, err := newApp(cfg, logger, true)
	if err != nil {
		fatal("%v", err)
	}
	defer a.close()

	if err := a.web.Start(); err != nil {
		fatal("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	unfollow := a.poller.FollowSettings(a.store)
	defer unfollow()
	a.poller.Start()
	logger.Info("usage-bar: serving", "interval", a.poller.Interval())

	<-ctx.Done()
	logger.Info("usage-bar: shutting down")
	a.poller.Stop()
}

type onceResult struct {
	Record *usage.Record `json:"record,omitempty"`
	Error  *usage.Error  `json:"error,omitempty"`
	Render render.Spec   `json:"render"`
	Line   string        `json:"line"`
}

// runOnce polls a single time and writes the outcome to w. It returns the
// process exit code.
func runOnce(w io.Writer) int {
	cfg := loadConfig()
	logger, closeLog := initLogger(cfg, false)
	defer closeLog()

	parser, err := usage.NewParser(cfg.Grammar)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: usage grammar: %v\n", err)
		return 1
	}
	store := config.NewStore("", cfg)
	inv := invoker.New(time.Duration(cfg.TimeoutSeconds)*time.Second, cfg.PTY)
	fetch := usagepoller.NewCLIFetch(store, inv, parser, cfg.Args)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	rec, err := fetch(ctx)
	var state usage.State
	var res onceResult
	if err != nil {
		res.Error = usage.AsError(err)
		state = usage.StateErr(res.Error)
		logger.Warn("once: poll failed", "err", err, "duration", time.Since(start))
	} else {
		res.Record = &rec
		state = usage.StateOK(rec)
		logger.Debug("once: poll ok", "duration", time.Since(start))
	}
	res.Render = render.Decide(state, cfg.Settings.DisplayMode)
	res.Line = render.Line(res.Render)

	enc := json.NewEncoder(w)
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(res); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	if res.Error != nil {
		return 1
	}
	return 0
}

func runSet(key, value string) error {
	cfg := loadConfig()
	store := config.NewStore(config.DefaultPath(), cfg)

	var err error
	switch key {
	case "display-mode", "mode":
		err = store.SetDisplayMode(config.DisplayMode(value))
	case "interval", "refresh-interval":
		var r config.RefreshInterval
		r, err = config.ParseRefreshInterval(value)
		if err == nil {
			err = store.SetRefreshInterval(r)
		}
	case "path", "executable-path":
		if value == "default" {
			err = store.ResetExecutablePath()
		} else {
			err = store.SetExecutablePath(value)
		}
	default:
		return fmt.Errorf("unknown setting %q (want display-mode, interval or path)", key)
	}
	if err != nil {
		return err
	}

	st := store.Settings()
	fmt.Printf("display-mode=%s interval=%s path=%s\n", st.DisplayMode, st.RefreshInterval.Duration(), st.ExecutablePath)
	if w := config.PathWarning(st.ExecutablePath); w != "" {
		fmt.Fprintf(os.Stderr, "warning: %s: %s\n", w, st.ExecutablePath)
	}
	return nil
}

func runPasswd(username string) error {
	fmt.Printf("Password for %s: ", username)
	pw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return err
	}
	if len(pw) == 0 {
		return fmt.Errorf("empty password")
	}
	hash, err := webserver.HashPassword(pw)
	if err != nil {
		return err
	}
	secret, err := webserver.GenerateSecret()
	if err != nil {
		return err
	}

	cfg := loadConfig()
	cfg.Webserver.Auth = config.AuthConfig{Username: username, PasswordHash: hash, Secret: secret}
	if err := config.Save(config.DefaultPath(), cfg); err != nil {
		return err
	}
	fmt.Printf("Web login set for %s (existing sessions invalidated)\n", username)
	return nil
}
