package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Lavr-18/OKK-Tropic/internal/botapi"
	"github.com/Lavr-18/OKK-Tropic/internal/config"
	"github.com/Lavr-18/OKK-Tropic/internal/daemon"
	"github.com/Lavr-18/OKK-Tropic/internal/logging"
	"github.com/Lavr-18/OKK-Tropic/internal/metrics"
	"github.com/Lavr-18/OKK-Tropic/internal/namecheck"
	"github.com/Lavr-18/OKK-Tropic/internal/report"
	"github.com/Lavr-18/OKK-Tropic/internal/retailcrm"
	"github.com/Lavr-18/OKK-Tropic/internal/timeutil"
	"github.com/Lavr-18/OKK-Tropic/internal/uis"
)

func main() {
	cfgFile := flag.String("config", "", "Path to config file")
	runOnce := flag.Bool("run-once", false, "build and send one report, then exit")
	dryRun := flag.Bool("dry-run", false, "build and log the report without sending it")
	reportDate := flag.String("date", "", "report date override, YYYY-MM-DD (MSK); defaults to yesterday")
	flag.Parse()

	cfg := config.DefaultConfig()
	if *cfgFile != "" {
		c, err := config.LoadConfigFromFile(*cfgFile)
		if err != nil {
			log.Fatalf("failed loading config: %v", err)
		}
		cfg = c
	}

	// env overrides file/defaults; CLI flags override env
	if err := config.ApplyEnvOverrides(cfg); err != nil {
		log.Fatalf("invalid environment configuration: %v", err)
	}
	if *dryRun {
		cfg.DryRun = true
	}
	cfg.NormalizeBaseURL()

	cleanup := initLogging()
	defer cleanup()

	if missing := cfg.MissingCredentials(); len(missing) > 0 {
		logging.Get().Fatal().Strs("missing", missing).Msg("required credentials not configured")
	}

	initMetricsAndInflux(cfg)

	d := buildDaemon(cfg)
	runAndWait(d, *runOnce, *reportDate)
}

// initLogging initializes the log subsystem from env and returns a cleanup func.
func initLogging() func() {
	logLevel := os.Getenv("OKK_LOG_LEVEL")
	logFile := os.Getenv("OKK_LOG_FILE")
	cleanup, err := logging.Init(logFile, logLevel)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	return cleanup
}

// initMetricsAndInflux starts the optional metrics server and Influx pusher.
func initMetricsAndInflux(cfg *config.Config) {
	if cfg.MetricsEnabled {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.PromHandler())
			mux.Handle("/status", metrics.JSONHandler())
			addr := fmt.Sprintf(":%d", cfg.MetricsPort)
			logging.Get().Info().Str("addr", addr).Msg("starting metrics server")
			_ = http.ListenAndServe(addr, mux)
		}()
	}
	if cfg.InfluxURL != "" {
		go metrics.StartInfluxPusher(context.Background(), cfg.InfluxURL, cfg.InfluxToken, cfg.InfluxOrg, cfg.InfluxBucket, cfg.InfluxInterval)
	}
}

// buildDaemon wires the API clients into a report builder and daemon.
func buildDaemon(cfg *config.Config) *daemon.Daemon {
	crm := retailcrm.New(cfg.RetailCRMBaseURL, cfg.RetailCRMAPIKey, cfg.RetailCRMSite, cfg.HTTPTimeout)
	calls := uis.New(cfg.UISBaseURL, cfg.UISToken, cfg.HTTPTimeout)
	chats := botapi.New(cfg.BotAPIBaseURL, cfg.BotAPIToken, cfg.HTTPTimeout)
	names := namecheck.New(cfg.OpenAIKey, cfg.OpenAIModel)

	builder := report.NewBuilder(crm, calls, chats, names, cfg.MaxDialogs, cfg.MaxConcurrentChecks)
	return daemon.New(cfg, builder)
}

// runAndWait runs a single report or the scheduler with graceful shutdown.
func runAndWait(d *daemon.Daemon, runOnce bool, dateOverride string) {
	ctx := context.Background()

	if runOnce || dateOverride != "" {
		day := timeutil.Yesterday(time.Now())
		if dateOverride != "" {
			parsed, err := timeutil.ParseDay(dateOverride)
			if err != nil {
				logging.Get().Fatal().Err(err).Msg("invalid -date value")
			}
			day = parsed
		}
		logging.Get().Info().Str("report_date", timeutil.FormatDay(day)).Msg("run-once: building report")
		if err := d.RunFor(ctx, day); err != nil {
			logging.Get().Fatal().Err(err).Msg("report run failed")
		}
		waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		_ = d.Notifier().Wait(waitCtx)
		return
	}

	go d.Start()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logging.Get().Info().Msg("shutdown signal received, waiting for active report runs")
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	d.Stop(shutdownCtx)
}
