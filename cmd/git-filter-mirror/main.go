package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"runtime/debug"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/utilitywarehouse/git-filter-mirror/internal/config"
	"github.com/utilitywarehouse/git-filter-mirror/internal/metrics"
	"github.com/utilitywarehouse/git-filter-mirror/internal/webhook"
	"github.com/utilitywarehouse/git-filter-mirror/pkg/giturl"
	"github.com/utilitywarehouse/git-filter-mirror/pkg/mirror"
)

var (
	loggerLevel = new(slog.LevelVar)
	logger      *slog.Logger

	levelStrings = map[string]slog.Level{
		"trace": slog.Level(-8),
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}
)

func init() {
	loggerLevel.Set(slog.LevelInfo)
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: loggerLevel}))
}

func envString(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseBool(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func main() {
	os.Exit(run(os.Args[1:]))
}

// run dispatches to single-shot mode (the §6 CLI surface, driven entirely by
// internal/config.ParseArgs) or fleet mode (-config <batch.yaml>, for
// unattended use against many repositories on an interval).
func run(args []string) int {
	for _, a := range args {
		if a == "-config" || a == "--config" {
			return runFleet(args)
		}
	}
	return runOnce(args)
}

func runOnce(args []string) int {
	cfg, err := config.ParseArgs("git-filter-mirror", args)
	if err != nil {
		logger.Error("invalid arguments", "err", err)
		return 2
	}
	cfg.ApplyDefaults()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	notifyShutdown(cancel)

	if err := mirror.Run(ctx, *cfg, logger, nil); err != nil {
		logger.Error("run failed", "err", err)
		return 1
	}
	return 0
}

func runFleet(args []string) int {
	fs := flag.NewFlagSet("git-filter-mirror", flag.ContinueOnError)

	configPath := fs.String("config", envString("GIT_FILTER_MIRROR_CONFIG", ""), "Path to the fleet YAML batch config")
	watch := fs.Bool("watch", envBool("GIT_FILTER_MIRROR_WATCH", true), "Re-run the fleet on -watch-interval until terminated")
	interval := fs.Duration("watch-interval", 5*time.Minute, "Interval between fleet passes when -watch is set")
	logLevel := fs.String("log-level", envString("LOG_LEVEL", "info"), "Log level")
	metricsBind := fs.String("metrics-bind-address", envString("GIT_FILTER_MIRROR_METRICS_BIND", ""), "Address to serve /metrics and /debug/pprof on; empty disables")
	webhookSecret := fs.String("github-webhook-secret", envString("GITHUB_WEBHOOK_SECRET", ""), "GitHub webhook secret used to validate payloads")
	webhookSkipValidation := fs.Bool("github-skip-sig-validation", envBool("GITHUB_SKIP_SIG_VALIDATION", false), "Skip webhook signature validation")
	webhookPath := fs.String("github-webhook-path", envString("GITHUB_WEBHOOK_PATH", "/github-webhook"), "Path the webhook handler listens on")
	version := fs.Bool("version", false, "Print version and exit")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *version {
		info, _ := debug.ReadBuildInfo()
		var v, g string
		if info != nil {
			v, g = info.Main.Version, info.GoVersion
		}
		logger.Info("version", "app", v, "go", g)
		return 0
	}

	if *configPath == "" {
		logger.Error("-config is required in fleet mode")
		return 2
	}

	if v, ok := levelStrings[strings.ToLower(*logLevel)]; ok {
		loggerLevel.Set(v)
	}

	reg := prometheus.NewRegistry()
	m := metrics.New("", reg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	notifyShutdown(cancel)

	if *metricsBind != "" {
		go serveMetrics(*metricsBind, reg, *webhookSecret, *webhookSkipValidation, *webhookPath, *configPath)
	}

	runFleetLoop(ctx, *configPath, *watch, *interval, m)
	return 0
}

func runFleetLoop(ctx context.Context, configPath string, watch bool, interval time.Duration, m *metrics.Metrics) {
	for {
		batch, err := config.LoadBatch(configPath)
		if err != nil {
			logger.Error("unable to load fleet config", "path", configPath, "err", err)
		} else {
			runBatch(ctx, batch, m)
		}

		if !watch {
			return
		}

		t := time.NewTimer(interval)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return
		}
	}
}

func runBatch(ctx context.Context, batch *config.BatchConfig, m *metrics.Metrics) {
	for _, repo := range batch.Repositories {
		repoLog := logger.With("source", repo.Source, "destination", repo.Destination)
		if err := mirror.Run(ctx, repo, repoLog, m); err != nil {
			repoLog.Error("fleet run failed", "err", err)
		}
		if ctx.Err() != nil {
			return
		}
	}
}

func serveMetrics(bind string, reg *prometheus.Registry, whSecret string, whSkipValidation bool, whPath, configPath string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	if whSkipValidation || whSecret != "" {
		wh := &webhook.Handler{
			Secret:            whSecret,
			SkipSigValidation: whSkipValidation,
			Log:               logger.With("logger", "github-webhook"),
			OnPush: func(htmlURL string) {
				triggerMatchingRepo(htmlURL, configPath)
			},
		}
		mux.Handle(whPath, wh)
	}

	server := &http.Server{
		Addr:              bind,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       5 * time.Second,
		ReadHeaderTimeout: 1 * time.Second,
		Handler:           mux,
	}
	logger.Info("starting metrics/webhook server", "addr", bind)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("metrics/webhook server terminated", "err", err)
	}
}

// triggerMatchingRepo runs a single out-of-band pass for the configured
// repository whose source matches htmlURL, ahead of the next scheduled
// fleet tick.
func triggerMatchingRepo(htmlURL, configPath string) {
	batch, err := config.LoadBatch(configPath)
	if err != nil {
		logger.Error("unable to load fleet config for webhook trigger", "err", err)
		return
	}
	for _, repo := range batch.Repositories {
		if same, err := giturl.SameRemote(repo.Source, htmlURL); err == nil && same {
			repoLog := logger.With("source", repo.Source, "destination", repo.Destination, "trigger", "webhook")
			if err := mirror.Run(context.Background(), repo, repoLog, nil); err != nil {
				repoLog.Error("webhook-triggered run failed", "err", err)
			}
			return
		}
	}
}

func notifyShutdown(cancel context.CancelFunc) {
	stop := make(chan os.Signal, 2)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-stop
		logger.Info("shutting down...")
		cancel()
	}()
}
