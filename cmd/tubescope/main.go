// -----------------------------------------------------------------------
// Tubescope - YouTube channel About-page scraper
// -----------------------------------------------------------------------

package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/tubescope/internal/common"
	"github.com/ternarybob/tubescope/internal/interfaces"
	"github.com/ternarybob/tubescope/internal/models"
	"github.com/ternarybob/tubescope/internal/services/batch"
	"github.com/ternarybob/tubescope/internal/services/captcha"
	"github.com/ternarybob/tubescope/internal/services/export"
	"github.com/ternarybob/tubescope/internal/services/extract"
	"github.com/ternarybob/tubescope/internal/services/fetch"
	"github.com/ternarybob/tubescope/internal/services/session"
	"github.com/ternarybob/tubescope/internal/services/store"
)

var (
	// Command-line flags
	targetURL    = flag.String("url", "", "Single channel URL to scrape")
	inputFile    = flag.String("input", "", "File with one channel URL per line")
	outputName   = flag.String("output", "", "Output file basename (overrides config)")
	outputDir    = flag.String("output-dir", "", "Output directory (overrides config)")
	configFile   = flag.String("config", "", "Configuration file path")
	configFileC  = flag.String("c", "", "Configuration file path (shorthand)")
	headless     = flag.Bool("headless", false, "Run the browser headless (overrides config)")
	noHeadless   = flag.Bool("no-headless", false, "Run the browser with a visible window (overrides config)")
	refresh      = flag.Bool("refresh", false, "Ignore cached records and re-fetch every target")
	schedule     = flag.String("schedule", "", "Cron expression for recurring runs (overrides config)")
	showBalance  = flag.Bool("balance", false, "Print the captcha service balance and exit")
	showVersion  = flag.Bool("version", false, "Print version information")
	showVersionV = flag.Bool("v", false, "Print version information (shorthand)")
)

// lowBalanceThreshold is the USD balance below which a warning is logged at
// startup. Solving stops entirely at zero, so surface it early.
const lowBalanceThreshold = 1.0

func main() {
	flag.Parse()

	if *showVersion || *showVersionV {
		fmt.Printf("Tubescope version %s\n", common.GetFullVersion())
		os.Exit(0)
	}

	configPath := *configFile
	if configPath == "" {
		configPath = *configFileC
	}
	// Auto-discover config file if not specified
	if configPath == "" {
		if _, err := os.Stat("tubescope.toml"); err == nil {
			configPath = "tubescope.toml"
		} else if _, err := os.Stat("deployments/local/tubescope.toml"); err == nil {
			configPath = "deployments/local/tubescope.toml"
		}
	}

	// Startup sequence (REQUIRED ORDER):
	// 1. Load config (defaults -> file -> env)
	// 2. Apply CLI overrides (highest priority)
	// 3. Initialize logger
	// 4. Print banner
	config, err := common.LoadConfig(configPath)
	if err != nil {
		arbor.NewLogger().Fatal().Err(err).Str("path", configPath).Msg("Failed to load configuration")
		os.Exit(1)
	}
	applyFlagOverrides(config)

	logger := common.InitLogger(config)
	common.PrintBanner(common.GetVersion())

	logger.Info().
		Str("config", configPath).
		Str("log_level", config.Logging.Level).
		Bool("headless", config.Browser.Headless).
		Bool("cache_enabled", config.Storage.Enabled).
		Msg("Configuration loaded")

	solver := captcha.NewService(config.Captcha, logger)

	if *showBalance {
		balance, err := solver.Balance(context.Background())
		if err != nil {
			logger.Fatal().Err(err).Msg("Balance check failed")
			os.Exit(1)
		}
		fmt.Printf("Captcha service balance: $%.2f\n", balance)
		os.Exit(0)
	}

	targets, err := loadTargets(*targetURL, *inputFile)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load targets")
		os.Exit(1)
	}
	if len(targets) == 0 {
		fmt.Fprintln(os.Stderr, "No targets: pass -url or -input (see -h)")
		os.Exit(2)
	}

	if config.Captcha.APIKey == "" {
		logger.Warn().Msg("No captcha API key configured; gated emails will not be revealed")
	} else if balance, err := solver.Balance(context.Background()); err == nil {
		logger.Info().Float64("balance", balance).Msg("Captcha service balance")
		if balance < lowBalanceThreshold {
			logger.Warn().Float64("balance", balance).Msg("Captcha service balance is low")
		}
	}

	sessions := session.NewService(config.Session.File, logger)
	extractor := extract.NewService(logger)
	fetcher := fetch.NewService(sessions, solver, extractor, fetch.DefaultLaunchers(config.Browser), config.Scraper, logger)

	outDir, basename := config.Output.Dir, config.Output.Basename
	if *outputDir != "" {
		outDir = *outputDir
	}
	if *outputName != "" {
		basename = *outputName
	}
	exporter := export.NewService(outDir, basename, logger)

	var recordStore interfaces.RecordStore
	if config.Storage.Enabled {
		cache, err := store.NewService(config.Storage, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("Record cache unavailable, continuing without it")
		} else {
			recordStore = cache
			defer cache.Close()
		}
	}

	runner := batch.NewService(fetcher, exporter, recordStore, batch.Options{
		Delay:     config.Scraper.DelayBetweenTargetsDuration(),
		Staleness: config.Storage.StalenessDuration(),
		Refresh:   *refresh,
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cronSpec := config.Scraper.Schedule
	if *schedule != "" {
		cronSpec = *schedule
	}
	if cronSpec != "" {
		runScheduled(ctx, runner, targets, cronSpec, logger)
		return
	}

	result := runner.Run(ctx, targets)
	printSummary(result, outDir, basename)
}

// applyFlagOverrides layers command-line flags over the loaded configuration.
func applyFlagOverrides(config *common.Config) {
	if *headless {
		config.Browser.Headless = true
	}
	if *noHeadless {
		config.Browser.Headless = false
	}
}

// loadTargets builds the target list from the single-URL flag and/or the
// input file. Blank lines and #-comments are skipped.
func loadTargets(singleURL, path string) ([]models.Target, error) {
	var targets []models.Target
	if singleURL != "" {
		targets = append(targets, models.NewTarget(singleURL))
	}
	if path == "" {
		return targets, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		targets = append(targets, models.NewTarget(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read input file: %w", err)
	}
	return targets, nil
}

// runScheduled repeats the batch on a cron schedule until interrupted.
func runScheduled(ctx context.Context, runner *batch.Service, targets []models.Target, spec string, logger arbor.ILogger) {
	scheduler := cron.New()
	_, err := scheduler.AddFunc(spec, func() {
		result := runner.Run(ctx, targets)
		logger.Info().
			Str("run_id", result.RunID).
			Int("succeeded", len(result.Succeeded)).
			Int("failed", len(result.Failed)).
			Msg("Scheduled run completed")
	})
	if err != nil {
		logger.Fatal().Err(err).Str("schedule", spec).Msg("Invalid cron schedule")
		os.Exit(1)
	}

	logger.Info().Str("schedule", spec).Int("targets", len(targets)).Msg("Scheduler started")
	scheduler.Start()
	<-ctx.Done()
	logger.Info().Msg("Shutting down scheduler")
	<-scheduler.Stop().Done()
}

func printSummary(result *models.BatchResult, dir, basename string) {
	fmt.Printf("\nRun %s: %d scraped, %d succeeded, %d failed, %d emails found\n",
		result.RunID, result.Total(), len(result.Succeeded), len(result.Failed), result.EmailsFound())
	fmt.Printf("Results written to %s/%s.json and %s/%s.csv\n", dir, basename, dir, basename)
}
