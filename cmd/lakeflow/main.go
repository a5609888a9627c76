// lakeflow runs the staged promotion pipeline for the urban traffic
// data lake: raw → cleaned → mirrored, with results intake and
// cross-tier verification.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/lmoraga/lakeflow/internal/config"
	"github.com/lmoraga/lakeflow/internal/fault"
	"github.com/lmoraga/lakeflow/internal/gateway"
	"github.com/lmoraga/lakeflow/internal/gateway/dfs"
	"github.com/lmoraga/lakeflow/internal/gateway/objectstore"
	"github.com/lmoraga/lakeflow/internal/logging"
	"github.com/lmoraga/lakeflow/internal/pipeline"
	"github.com/lmoraga/lakeflow/internal/tier"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfgPath := flag.String("config", "lakeflow.yaml", "config file path")
	weather := flag.String("weather", "", "raw weather CSV (overrides config)")
	traffic := flag.String("traffic", "", "raw traffic CSV (overrides config)")
	results := flag.String("results", "", "external results directory (overrides config)")
	join := flag.String("join", "", "join policy: inner or left (overrides config)")
	dryRun := flag.Bool("dry-run", false, "run against in-memory backends, write nothing")
	debug := flag.Bool("debug", false, "debug logging")
	jsonLogs := flag.Bool("json-logs", false, "JSON log output")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logging.Init(level, *jsonLogs)
	log := logging.Component("main")
	log.Info("lakeflow starting", "version", Version)

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Info("no config file found, using defaults", "path", *cfgPath)
			cfg = config.DefaultConfig()
			cfg.ApplyEnv()
		} else {
			log.Error("load config", "error", err)
			os.Exit(1)
		}
	}

	// CLI overrides
	if *weather != "" {
		cfg.Input.WeatherFile = *weather
	}
	if *traffic != "" {
		cfg.Input.TrafficFile = *traffic
	}
	if *results != "" {
		cfg.Input.ResultsDir = *results
	}
	if *join != "" {
		cfg.Pipeline.Join = *join
	}

	if *dryRun {
		// Dry runs skip credential checks; nothing leaves the process.
		cfg.ObjectStore.AccessKey = "dry-run"
		cfg.ObjectStore.SecretKey = "dry-run"
	}
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	backends, err := buildBackends(cfg, *dryRun)
	if err != nil {
		log.Error("connect backends", "error", err)
		os.Exit(1)
	}

	gw := gateway.New(backends, gateway.Config{
		CallTimeout: cfg.Gateway.CallTimeout,
		Retry: gateway.RetryConfig{
			MaxAttempts:   cfg.Gateway.Retry.MaxAttempts,
			InitialDelay:  cfg.Gateway.Retry.InitialDelay,
			MaxDelay:      cfg.Gateway.Retry.MaxDelay,
			BackoffFactor: cfg.Gateway.Retry.BackoffFactor,
		},
	})

	orch, err := pipeline.New(cfg, gw)
	if err != nil {
		log.Error("create orchestrator", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, runErr := orch.Execute(ctx)
	printSummary(report)

	if runErr != nil {
		log.Error("run failed", "error", runErr, "class", fault.Classify(runErr).String())
		os.Exit(1)
	}
}

// buildBackends wires each tier to its physical service. This is the
// only place that knows which backend serves which tier.
func buildBackends(cfg *config.Config, dryRun bool) (map[tier.Tier]gateway.Backend, error) {
	if dryRun {
		mem := gateway.NewMemoryBackend()
		return map[tier.Tier]gateway.Backend{
			tier.TierRaw:      mem,
			tier.TierCleaned:  mem,
			tier.TierMirrored: mem,
			tier.TierResults:  mem,
		}, nil
	}

	store, err := objectstore.New(objectstore.Config{
		Endpoint:  cfg.ObjectStore.Endpoint,
		AccessKey: cfg.ObjectStore.AccessKey,
		SecretKey: cfg.ObjectStore.SecretKey,
		UseSSL:    cfg.ObjectStore.UseSSL,
		Buckets: map[tier.Tier]string{
			tier.TierRaw:     cfg.ObjectStore.Buckets.Raw,
			tier.TierCleaned: cfg.ObjectStore.Buckets.Cleaned,
			tier.TierResults: cfg.ObjectStore.Buckets.Results,
		},
	})
	if err != nil {
		return nil, err
	}

	mirror, err := dfs.New(dfs.Config{
		Namenode: cfg.DFS.Namenode,
		User:     cfg.DFS.User,
		Root:     cfg.DFS.Root,
	})
	if err != nil {
		return nil, err
	}

	return map[tier.Tier]gateway.Backend{
		tier.TierRaw:      store,
		tier.TierCleaned:  store,
		tier.TierMirrored: mirror,
		tier.TierResults:  store,
	}, nil
}

func printSummary(report *pipeline.Report) {
	fmt.Printf("\nrun %s: %s\n", report.RunID, report.Status)
	for _, p := range report.Phases {
		line := fmt.Sprintf("  %-14s %s", p.ID, p.Status)
		if p.Error != "" {
			line += "  (" + p.Error + ")"
		}
		fmt.Println(line)
	}
	if report.MergeStats != nil {
		fmt.Printf("  merged rows: %d (%s join, %d matched)\n",
			report.MergeStats.MergedRows, report.MergeStats.Policy, report.MergeStats.Matched)
	}
	if report.Reconciliation != nil {
		fmt.Printf("  verified: %d match, %d mismatch, %d missing, %d extra\n",
			report.Reconciliation.Matches, report.Reconciliation.Mismatches,
			report.Reconciliation.Missing, report.Reconciliation.Extras)
	}
}
