package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/pevans/newsharvest"
	"github.com/pevans/newsharvest/config"
	"github.com/pevans/newsharvest/discovery"
	"github.com/pevans/newsharvest/logger"
	"github.com/pevans/newsharvest/render"
	"github.com/pevans/newsharvest/seen"
)

// getEnv returns the value of an environment variable or a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	// A missing .env is fine; anything else is worth knowing about
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Warning: failed to load .env: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	subcommand := os.Args[1]
	args := os.Args[2:]

	var err error
	switch subcommand {
	case "serve":
		err = runServe(ctx, args)
	case "scrape":
		err = runScrape(ctx, args)
	case "sweep":
		err = runSweep(ctx, args)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command: %s\n\n", subcommand)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("newsharvest - News site scraping pipeline")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  newsharvest <command> [arguments]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve      Run the scrape API server")
	fmt.Println("  scrape     Scrape the sites in a descriptor file")
	fmt.Println("  sweep      Remove expired seen-article records")
	fmt.Println("  help       Show this help message")
	fmt.Println()
	fmt.Println("Every command accepts -config <path>.")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  NEWSHARVEST_CONFIG      Path to config file (default: ~/.newsharvest/config.yaml)")
	fmt.Println("  NEWSHARVEST_STORE_TYPE  sqlite, postgres, redis or memory")
	fmt.Println("  NEWSHARVEST_STORE_DSN   Store path or connection string")
	fmt.Println("  NEWSHARVEST_API_KEY     Bearer key required by the API server")
	fmt.Println("  NEWSHARVEST_LOG_LEVEL   debug, info, warn or error")
}

// configFlag registers the -config flag shared by all subcommands.
func configFlag(fs *flag.FlagSet) *string {
	return fs.String("config", getEnv("NEWSHARVEST_CONFIG", config.DefaultPath()), "path to config file")
}

// app holds the components every subcommand needs.
type app struct {
	cfg       *config.Config
	log       logger.Logger
	store     seen.Store
	metrics   *newsharvest.Metrics
	harvester *newsharvest.Harvester
}

// newApp loads configuration and opens the seen store. extra options are
// applied after the configured ones.
func newApp(ctx context.Context, configPath string, extra ...newsharvest.Option) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	log, err := logger.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	store, err := seen.Open(ctx, cfg.SeenConfig())
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("failed to open seen store: %w", err)
	}

	userAgent := render.DefaultUserAgents[0]
	if len(cfg.Scrape.UserAgents) > 0 {
		userAgent = cfg.Scrape.UserAgents[0]
	}

	metrics := newsharvest.NewMetrics()
	opts := []newsharvest.Option{
		newsharvest.WithLogger(log),
		newsharvest.WithMetrics(metrics),
		newsharvest.WithPacer(cfg.Pacer()),
		newsharvest.WithSink(newsharvest.NewWebhookSink(nil, cfg.Scrape.WebhookTimeout)),
		newsharvest.WithImageVerifier(discovery.NewHTTPImageVerifier(cfg.Scrape.ImageCheckTimeout, userAgent)),
		newsharvest.WithFeedDiscoverer(discovery.NewFeedDiscoverer(nil, userAgent, cfg.Scrape.Navigation.Timeout)),
	}
	opts = append(opts, extra...)

	provider := render.NewHTTPProvider(cfg.ProviderConfig())
	harvester := newsharvest.NewHarvester(provider, store, cfg.HarvesterConfig(), opts...)

	return &app{
		cfg:       cfg,
		log:       log,
		store:     store,
		metrics:   metrics,
		harvester: harvester,
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.log.Warn("Failed to close seen store", logger.Err(err))
	}
	a.log.Sync()
}
