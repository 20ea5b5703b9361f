package cli

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mchmarny/leadpulse/pkg/logging"
	"github.com/mchmarny/leadpulse/pkg/metrics"
	"github.com/urfave/cli/v3"
)

const (
	serverShutdownWaitSeconds = 5
	serverTimeoutSeconds      = 300
	serverMaxHeaderBytes      = 20

	portFlagName      = "port"
	noBrowserFlagName = "no-browser"
	logFormatFlagName = "log-format"
)

var (
	//go:embed assets/* templates/*
	embedFS embed.FS
)

func newServerCmd() *cli.Command {
	return &cli.Command{
		Name:    "server",
		Aliases: []string{"serve"},
		Usage:   "Start local dashboard server",
		Action:  cmdStartServer,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  portFlagName,
				Usage: "Port on which the server will listen (default: from config)",
			},
			&cli.BoolFlag{
				Name:    noBrowserFlagName,
				Aliases: []string{"nb"},
				Usage:   "Do not open browser automatically",
			},
			&cli.StringFlag{
				Name:  logFormatFlagName,
				Usage: "Request log format [text, json]",
				Value: "text",
			},
		},
	}
}

func cmdStartServer(ctx context.Context, cmd *cli.Command) error {
	cfg := getConfig(cmd)
	port := cfg.Config.Server.Port
	if cmd.IsSet(portFlagName) {
		port = cmd.Int(portFlagName)
	}
	address := fmt.Sprintf("127.0.0.1:%d", port)

	logger := slog.Default()
	if cmd.String(logFormatFlagName) == formatJSON {
		level := "info"
		if cfg.Debug {
			level = "debug"
		}
		logger = logging.NewServerLogger(os.Stderr, level)
	}

	m := metrics.New()
	d := newDashboard(cfg, m)
	if _, err := d.reload(false); err != nil {
		return err
	}

	s := &http.Server{
		Addr:           address,
		Handler:        makeRouter(d, logger),
		ReadTimeout:    serverTimeoutSeconds * time.Second,
		WriteTimeout:   serverTimeoutSeconds * time.Second,
		MaxHeaderBytes: 1 << serverMaxHeaderBytes,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	url := fmt.Sprintf("http://%s", address)
	slog.Info("server started", "address", url)

	if !cmd.Bool(noBrowserFlagName) {
		openBrowser(url)
	}

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("starting server: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), serverShutdownWaitSeconds*time.Second)
	defer cancel()

	if err := s.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("error shutting down server", "error", err)
	}
	slog.Info("server stopped")
	return nil
}

func makeRouter(d *dashboard, logger *slog.Logger) http.Handler {
	tmpl := template.Must(template.New("").ParseFS(embedFS, "templates/*.html"))

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(d.metrics.Middleware)

	// Static files
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServerFS(embedFS)))
	r.Get("/favicon.ico", faviconHandler)

	// Views
	r.Get("/", homeViewHandler(tmpl, d))

	// Ops
	r.Get("/healthz", healthHandler(d))
	r.Method(http.MethodGet, "/metrics", d.metrics.Handler())

	// Data API
	r.Route("/data", func(r chi.Router) {
		r.Get("/snapshot", d.snapshotAPIHandler)
		r.Post("/reload", d.reloadAPIHandler)
		r.Get("/filters", d.filtersAPIHandler)
		r.Get("/summary", d.summaryAPIHandler)
		r.Get("/alerts", d.alertsAPIHandler)
		r.Get("/performance", performanceAPIHandler)

		r.Get("/leads/score-distribution", d.scoreDistributionAPIHandler)
		r.Get("/leads/sources", d.leadSourcesAPIHandler)
		r.Get("/leads/hot", d.hotLeadsAPIHandler)

		r.Get("/customers/clv-by-segment", d.clvBySegmentAPIHandler)
		r.Get("/customers/churn-distribution", d.churnDistributionAPIHandler)
		r.Get("/customers/high-value", d.highValueCustomersAPIHandler)

		r.Get("/score/lead", d.leadScoreAPIHandler)
		r.Get("/score/clv", d.clvAPIHandler)
		r.Get("/score/churn", d.churnAPIHandler)
	})

	return r
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Info("http",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.String("rid", middleware.GetReqID(r.Context())),
				slog.Duration("latency", time.Since(start)))
		})
	}
}

func openBrowser(url string) {
	var cmd string
	args := make([]string, 0, 1)

	switch runtime.GOOS {
	case "darwin":
		cmd = "open"
	case "linux":
		cmd = "xdg-open"
	default: // windows
		cmd = "rundll32"
		args = []string{"url.dll,FileProtocolHandler"}
	}

	args = append(args, url)
	if err := exec.Command(cmd, args...).Start(); err != nil {
		slog.Error("failed to open browser", "error", err)
	}
}
