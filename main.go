package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/zsprackett/nexus-console/internal/applog"
	"github.com/zsprackett/nexus-console/internal/config"
	"github.com/zsprackett/nexus-console/internal/db"
	"github.com/zsprackett/nexus-console/internal/demo"
	"github.com/zsprackett/nexus-console/internal/monitor"
	"github.com/zsprackett/nexus-console/internal/nexus"
	"github.com/zsprackett/nexus-console/internal/notify"
	"github.com/zsprackett/nexus-console/internal/ui"
	"github.com/zsprackett/nexus-console/internal/webserver"
)

// env is the state every command shares once flags are parsed.
type env struct {
	configPath string
	serverURL  string
	verbose    bool

	cfg       config.Config
	logger    *slog.Logger
	logCloser io.Closer
}

func (e *env) setup(console bool) error {
	config.LoadDotenv()

	cfg, err := config.Load(e.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not load config: %v\n", err)
		cfg = config.Defaults()
	}
	if e.serverURL != "" {
		cfg.ServerURL = e.serverURL
	}
	if e.verbose {
		cfg.LogLevel = "debug"
	}
	e.cfg = cfg

	logger, closer, err := applog.Init(applog.InitConfig{
		LogDir:   cfg.LogDir,
		LogLevel: cfg.LogLevel,
		Console:  console,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not init log file: %v\n", err)
		logger = slog.Default()
	} else {
		e.logCloser = closer
	}
	e.logger = logger
	return nil
}

func (e *env) close() {
	if e.logCloser != nil {
		e.logCloser.Close()
	}
}

func (e *env) client() *nexus.Client {
	return nexus.NewClient(e.cfg.ServerURL, e.cfg.Token, e.cfg.Timeout())
}

func (e *env) monitorConfig() monitor.Config {
	return monitor.Config{
		StatusInterval:    e.cfg.StatusEvery(),
		SynthesisInterval: e.cfg.SynthesisEvery(),
		UptimeInterval:    e.cfg.UptimeEvery(),
		RequestTimeout:    e.cfg.Timeout(),
		Location:          time.Local,
	}
}

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

// wiring is the set of long-lived components behind the dashboard and
// headless modes.
type wiring struct {
	mon      *monitor.Monitor
	web      *webserver.Server
	notifier *notify.Notifier
	store    *db.DB
}

// openJournal returns nil when the journal cannot be opened. The dashboard
// runs without it.
func (e *env) openJournal() *db.DB {
	store, err := openDB()
	if err != nil {
		e.logger.Warn("journal unavailable", "err", err)
		return nil
	}
	return store
}

func (e *env) wire(client monitor.Client, store *db.DB, onUpdate monitor.OnUpdate) *wiring {
	w := &wiring{
		notifier: notify.New(notify.Config(e.cfg.Notifications), e.logger),
		store:    store,
	}

	deps := monitor.Deps{OnUpdate: onUpdate, Notifier: w.notifier}
	if w.store != nil {
		deps.Journal = w.store
	}

	if e.cfg.Mirror.Enabled {
		if err := config.EnsureMirrorSecret(e.configPath, &e.cfg); err != nil {
			e.logger.Warn("could not persist mirror secret", "err", err)
		}
		w.web = webserver.New(webserver.Config{
			Enabled:   true,
			Port:      e.cfg.Mirror.Port,
			Host:      e.cfg.Mirror.Host,
			JWTSecret: e.cfg.Mirror.JWTSecret,
		}, func() any { return w.mon.Snapshot() }, e.logger)
		deps.Broadcaster = w.web
	}

	w.mon = monitor.New(client, e.monitorConfig(), deps, e.logger)
	return w
}

func (w *wiring) start() {
	if w.web == nil {
		return
	}
	if err := w.web.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: webserver: %v\n", err)
	}
}

func (w *wiring) close() {
	if w.web != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		w.web.Shutdown(ctx)
		cancel()
	}
	if w.store != nil {
		w.store.Close()
	}
}

// watchConfig applies notification changes from the config file while
// running.
func (e *env) watchConfig(ctx context.Context, n *notify.Notifier) {
	err := config.Watch(ctx, e.configPath, e.logger, func(c config.Config) {
		n.SetConfig(notify.Config(c.Notifications))
		e.logger.Info("config reloaded", "notifications", c.Notifications.Enabled)
	})
	if err != nil {
		e.logger.Warn("config watch unavailable", "err", err)
	}
}

// startEmbeddedDemo serves a demo status service on a random local port and
// returns its URL.
func startEmbeddedDemo(e *env) (string, func(), error) {
	svc := demo.New(demo.Options{
		CaptureInterval: config.Duration(e.cfg.Demo.CaptureInterval, 3*time.Second),
		StringAnalysis:  e.cfg.Demo.StringAnalysis,
		Seed:            20,
	}, e.logger)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", nil, err
	}
	srv := &http.Server{Handler: svc.Handler(), ReadHeaderTimeout: 10 * time.Second}
	go srv.Serve(ln)
	stop := func() {
		srv.Close()
		svc.Close()
	}
	return "http://" + ln.Addr().String(), stop, nil
}

func newRootCmd() *cobra.Command {
	e := &env{}
	var withDemo bool

	root := &cobra.Command{
		Use:           "nexus-console",
		Short:         "Terminal dashboard for a NEXUS activity monitor",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := e.setup(false); err != nil {
				return err
			}
			defer e.close()

			if withDemo {
				url, stop, err := startEmbeddedDemo(e)
				if err != nil {
					return fmt.Errorf("start demo service: %w", err)
				}
				defer stop()
				e.cfg.ServerURL = url
			}

			store := e.openJournal()
			opts := ui.Options{Locale: e.cfg.Locale, ServerURL: e.cfg.ServerURL}
			if store != nil {
				opts.Journal = store
			}
			app := ui.NewApp(opts, e.logger)
			w := e.wire(e.client(), store, app.OnUpdate)
			defer w.close()
			app.SetController(w.mon)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			e.watchConfig(ctx, w.notifier)
			w.start()

			e.logger.Info("dashboard starting", "server", e.cfg.ServerURL)
			return app.Run()
		},
	}

	root.PersistentFlags().StringVar(&e.configPath, "config", config.DefaultPath(), "config file")
	root.PersistentFlags().StringVar(&e.serverURL, "server", "", "status service URL (overrides config)")
	root.PersistentFlags().BoolVarP(&e.verbose, "verbose", "v", false, "debug logging")
	root.Flags().BoolVar(&withDemo, "demo", false, "run against an in-process demo service")

	root.AddCommand(
		newStatusCmd(e),
		newActionCmd(e, "start", "Start activity capture", func(ctx context.Context, c *nexus.Client) (string, error) {
			return "capture started", c.Start(ctx)
		}),
		newActionCmd(e, "stop", "Stop activity capture", func(ctx context.Context, c *nexus.Client) (string, error) {
			return "capture stopped", c.Stop(ctx)
		}),
		newActionCmd(e, "focus", "Toggle focus mode", func(ctx context.Context, c *nexus.Client) (string, error) {
			on, err := c.ToggleFocus(ctx)
			if on {
				return "focus mode on", err
			}
			return "focus mode off", err
		}),
		newActionCmd(e, "dismiss", "Dismiss the current alert", func(ctx context.Context, c *nexus.Client) (string, error) {
			return "alert dismissed", c.DismissAlert(ctx)
		}),
		newQueryCmd(e),
		newActivitiesCmd(e),
		newHistoryCmd(e),
		newHeadlessCmd(e),
		newDemoCmd(e),
		newTokenCmd(e),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
