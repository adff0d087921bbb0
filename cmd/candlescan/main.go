// Daily candle synchronization and double-bullish screening CLI.
//
// The tool incrementally synchronizes daily OHLCV candles for OKX spot and
// perpetual swap markets into per-partition CSV datasets, and scans those
// datasets for instruments whose two most recent candles are both bullish,
// ranked by latest volume.
//
// Usage:
//
//	candlescan sync [--market spot|swap|all] [--config candlescan.json]
//	candlescan scan [--market spot|swap|all] [--top 10]
//	candlescan run  [--market spot|swap|all]
//
// For detailed help on any command, use: candlescan <command> --help
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"candlescan/internal/catalog"
	"candlescan/internal/config"
	errs "candlescan/internal/errors"
	"candlescan/internal/exchange"
	"candlescan/internal/logger"
	"candlescan/internal/scan"
	"candlescan/internal/store"
	"candlescan/internal/syncer"
)

const (
	version       = "1.0.0"
	appName       = "candlescan"
	defaultConfig = "candlescan.json"
)

// Exit codes following standard conventions.
const (
	exitSuccess     = 0
	exitUsageError  = 1
	exitConfigError = 2
	exitRunError    = 3
	exitDataError   = 4
)

// app holds the wired components shared by the subcommands.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	closer io.Closer
	okx    *exchange.OKXAdapter
	store  *store.CSVStore
	runner *syncer.Runner
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(exitUsageError)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "sync":
		os.Exit(cmdSync(ctx, args))
	case "scan":
		os.Exit(cmdScan(args))
	case "run":
		os.Exit(cmdRun(ctx, args))
	case "version":
		fmt.Printf("%s %s\n", appName, version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", command)
		printUsage()
		os.Exit(exitUsageError)
	}
}

func printUsage() {
	fmt.Printf(`%s - daily OHLCV sync and double-bullish screener

Usage:
  %s <command> [options]

Commands:
  sync      Synchronize daily candles into the partition datasets
  scan      Scan persisted datasets for the double-bullish signal
  run       Sync then scan (the full pipeline)
  version   Print version information
  help      Show this help

Run '%s <command> --help' for command options.
`, appName, appName, appName)
}

// commonFlags registers the flags every subcommand shares.
func commonFlags(fs *flag.FlagSet) (configPath, market *string) {
	configPath = fs.String("config", defaultConfig, "path to the JSON configuration file")
	market = fs.String("market", "all", "market partition: spot, swap or all")
	return configPath, market
}

func cmdSync(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("sync", flag.ExitOnError)
	configPath, market := commonFlags(fs)
	fs.Parse(args)

	a, code := newApp(*configPath)
	if code != exitSuccess {
		return code
	}
	defer a.close()

	kinds, err := resolveKinds(*market)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitConfigError
	}
	return a.sync(ctx, kinds)
}

func cmdScan(args []string) int {
	fs := flag.NewFlagSet("scan", flag.ExitOnError)
	configPath, market := commonFlags(fs)
	top := fs.Int("top", 0, "ranked report length (default from config)")
	fs.Parse(args)

	a, code := newApp(*configPath)
	if code != exitSuccess {
		return code
	}
	defer a.close()

	kinds, err := resolveKinds(*market)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitConfigError
	}

	topN := a.cfg.Scan.TopN
	if *top > 0 {
		topN = *top
	}
	return a.scan(kinds, topN)
}

func cmdRun(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath, market := commonFlags(fs)
	fs.Parse(args)

	a, code := newApp(*configPath)
	if code != exitSuccess {
		return code
	}
	defer a.close()

	kinds, err := resolveKinds(*market)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitConfigError
	}

	if code := a.sync(ctx, kinds); code != exitSuccess {
		return code
	}
	return a.scan(kinds, a.cfg.Scan.TopN)
}

// newApp loads configuration and wires the shared components.
func newApp(configPath string) (*app, int) {
	cfg, err := config.Load(configPath, slog.Default())
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return nil, exitConfigError
	}

	log, closer, err := logger.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger setup failed: %v\n", err)
		return nil, exitConfigError
	}

	okx := exchange.NewOKXAdapter(logger.Component(log, "exchange"))
	if cfg.Exchange.BaseURL != "" {
		okx.SetBaseURL(cfg.Exchange.BaseURL)
	}
	okx.SetTimeout(time.Duration(cfg.Exchange.TimeoutSeconds) * time.Second)

	st, err := store.NewCSVStore(cfg.DataDir, logger.Component(log, "store"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "store setup failed: %v\n", err)
		return nil, exitConfigError
	}

	loc, err := cfg.Location()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return nil, exitConfigError
	}
	policy, err := syncer.ParseVolumePolicy(cfg.Sync.VolumePolicy)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return nil, exitConfigError
	}

	runner := syncer.NewRunner(okx, st, syncer.Options{
		QuoteCurrency: cfg.Sync.QuoteCurrency,
		Concurrency:   cfg.Sync.Concurrency,
		Pacing:        cfg.Pacing(),
		FetchLimit:    cfg.Sync.FetchLimit,
		Location:      loc,
		VolumePolicy:  policy,
	}, logger.Component(log, "syncer"))

	return &app{cfg: cfg, logger: log, closer: closer, okx: okx, store: st, runner: runner}, exitSuccess
}

func (a *app) close() {
	if a.closer != nil {
		a.closer.Close()
	}
}

func (a *app) sync(ctx context.Context, kinds []catalog.MarketKind) int {
	for _, kind := range kinds {
		report, err := a.runner.SyncPartition(ctx, kind)
		if err != nil {
			a.logger.Error("partition sync failed", "partition", kind, "error", err)
			fmt.Fprintf(os.Stderr, "sync %s failed: %v\n", kind, err)
			return exitRunError
		}
		fmt.Printf("=== synced %s partition ===\n", report.Partition)
		fmt.Printf("instruments: %d  succeeded: %d  failed: %d  empty: %d\n",
			report.Instruments, report.Succeeded, report.Failed, report.Empty)
		if report.Merged {
			fmt.Printf("persisted rows: %d\n", report.Rows)
		} else {
			fmt.Println("nothing to merge, dataset unchanged")
		}
	}
	return exitSuccess
}

func (a *app) scan(kinds []catalog.MarketKind, topN int) int {
	for _, kind := range kinds {
		path := a.store.PartitionPath(string(kind))
		dataset, err := a.store.Load(path)
		if err != nil {
			if errors.Is(err, errs.ErrDatasetNotFound) {
				fmt.Fprintf(os.Stderr, "scan %s: dataset not found (%s), run sync first\n", kind, path)
			} else {
				fmt.Fprintf(os.Stderr, "scan %s failed: %v\n", kind, err)
			}
			return exitDataError
		}

		matches, total := scan.Scan(dataset, topN)
		fmt.Printf("=== %s double-bullish signals: %d match(es) ===\n", kind, total)
		for i, m := range matches {
			fmt.Printf("%2d. %-20s volume %s\n", i+1, m.Instrument, m.Volume)
		}
	}
	return exitSuccess
}

func resolveKinds(market string) ([]catalog.MarketKind, error) {
	if market == "all" {
		return []catalog.MarketKind{catalog.MarketSpot, catalog.MarketSwap}, nil
	}
	kind, err := catalog.ParseMarketKind(market)
	if err != nil {
		return nil, err
	}
	return []catalog.MarketKind{kind}, nil
}
