// Command rssbot runs the bot process: it loads the subscriber snapshot,
// starts the adaptive feed scheduler, the daily membership gardener and
// the admin HTTP surface, then serves until told to stop.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"rssbot/internal/delivery"
	"rssbot/internal/gardener"
	"rssbot/internal/httpapi"
	"rssbot/internal/httpfetch"
	"rssbot/internal/infra/worker"
	"rssbot/internal/logging"
	"rssbot/internal/scheduler"
	"rssbot/internal/store"
	"rssbot/internal/telegram"
)

const (
	pkgName    = "rssbot"
	pkgVersion = "0.1.0"
)

type cliFlags struct {
	databasePath    string
	minIntervalSecs int
	maxIntervalSecs int
	maxFeedSize     int64
	admins          []string
	restricted      bool
	apiURI          string
	insecure        bool
	adminHTTPAddr   string
}

func (f *cliFlags) minInterval() time.Duration { return time.Duration(f.minIntervalSecs) * time.Second }
func (f *cliFlags) maxInterval() time.Duration { return time.Duration(f.maxIntervalSecs) * time.Second }

func (f *cliFlags) validate() error {
	if f.minIntervalSecs < 1 {
		return fmt.Errorf("--min-interval must be at least 1 second, got %d", f.minIntervalSecs)
	}
	if f.maxIntervalSecs < 1 {
		return fmt.Errorf("--max-interval must be at least 1 second, got %d", f.maxIntervalSecs)
	}
	if f.maxFeedSize < 0 {
		return fmt.Errorf("--max-feed-size must not be negative, got %d", f.maxFeedSize)
	}
	return nil
}

func main() {
	logger := logging.NewLogger()
	slog.SetDefault(logger)

	flags := &cliFlags{}
	root := &cobra.Command{
		Use:   "rssbot <token>",
		Short: "An RSS/Atom/JSON Feed subscription bot for Telegram",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := flags.validate(); err != nil {
				return err
			}
			return run(cmd.Context(), logger, args[0], flags)
		},
	}

	root.Flags().StringVarP(&flags.databasePath, "database", "d", "./rssbot.json", "path to the subscriber snapshot file")
	root.Flags().IntVar(&flags.minIntervalSecs, "min-interval", 300, "floor on per-feed poll interval, in seconds")
	root.Flags().IntVar(&flags.maxIntervalSecs, "max-interval", 43200, "ceiling on per-feed poll interval, in seconds")
	root.Flags().Int64Var(&flags.maxFeedSize, "max-feed-size", 2097152, "maximum feed response size in bytes")
	root.Flags().StringArrayVar(&flags.admins, "admin", nil, "user ID allowed to issue bot commands (repeatable); this build handles no commands and only counts these in the startup log")
	root.Flags().BoolVar(&flags.restricted, "restricted", false, "in groups, limit bot commands to group admins; this build handles no commands and only logs this at startup")
	root.Flags().StringVar(&flags.apiURI, "api-uri", "https://api.telegram.org/", "Telegram Bot API base URI")
	root.Flags().BoolVar(&flags.insecure, "insecure", false, "skip TLS certificate verification when fetching feeds")
	root.Flags().StringVar(&flags.adminHTTPAddr, "admin-addr", ":9091", "address the admin HTTP server (health/ready/metrics) listens on")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		logger.Error("rssbot exited with error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, token string, flags *cliFlags) error {
	db, err := store.Load(flags.databasePath)
	if err != nil {
		return fmt.Errorf("load store: %w", err)
	}
	db.SetLogger(logger)
	logger.Info("store loaded", slog.String("path", db.Path()))

	botClient, err := telegram.NewWithToken(token, flags.apiURI)
	if err != nil {
		return fmt.Errorf("authenticate with telegram: %w", err)
	}

	fetchClient := httpfetch.New(httpfetch.Config{
		BotUsername:    botUsername(token),
		PkgName:        pkgName,
		PkgVersion:     pkgVersion,
		Insecure:       flags.insecure,
		MaxFeedSize:    flags.maxFeedSize,
		DontProxyFeeds: false,
	})

	concurrency := maxConcurrentFetches(flags)
	pipeline := delivery.NewPipeline(botClient, db, logger, int(concurrency))

	sched := scheduler.New(scheduler.Config{
		MinInterval:          flags.minInterval(),
		MaxInterval:          flags.maxInterval(),
		MaxConcurrentFetches: concurrency,
	}, db, fetchClient, pipeline, logger)

	gardenerCfg := worker.DefaultConfig()
	gardenerMetrics := worker.NewGardenerMetrics()
	gardenerMetrics.MustRegister(prometheus.DefaultRegisterer)
	loadedGardenerCfg, err := worker.LoadConfigFromEnv(logger, gardenerMetrics)
	if err != nil {
		logger.Warn("gardener configuration load failed, using defaults", slog.Any("error", err))
	} else {
		gardenerCfg = *loadedGardenerCfg
	}

	g := gardener.New(botClient, db, logger, gardenerCfg.PruneConcurrency, gardenerCfg.ScanTimeout)
	cronJob, err := g.StartCron(ctx, gardenerCfg.CronSchedule, gardenerCfg.Timezone)
	if err != nil {
		return fmt.Errorf("start gardener cron: %w", err)
	}
	defer cronJob.Stop()

	admin := httpapi.New(flags.adminHTTPAddr, logger)
	adminErrCh := make(chan error, 1)
	go func() {
		if err := admin.Start(ctx); err != nil && err != http.ErrServerClosed {
			adminErrCh <- err
		}
	}()

	go sched.Run(ctx)
	admin.SetReady(true)

	logger.Info("rssbot started",
		slog.String("database", flags.databasePath),
		slog.Duration("min_interval", flags.minInterval()),
		slog.Duration("max_interval", flags.maxInterval()),
		slog.Bool("restricted", flags.restricted),
		slog.Int("admins", len(flags.admins)))

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-adminErrCh:
		return fmt.Errorf("admin http server failed: %w", err)
	}

	return nil
}

func maxConcurrentFetches(flags *cliFlags) int64 {
	n := int64(flags.minIntervalSecs)
	if n < 1 {
		n = 1
	}
	if n > 64 {
		n = 64
	}
	return n
}

// botUsername is a placeholder for the feed fetcher's User-Agent string;
// Telegram tokens don't carry the bot's @username, and learning it would
// require an extra GetMe round trip this process doesn't otherwise need.
func botUsername(string) string {
	return "rssbot"
}
