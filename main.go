package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"immopipe/config"
	"immopipe/locations"
	"immopipe/logging"
	"immopipe/models"
	"immopipe/scheduler"
	"immopipe/scraper"
	"immopipe/services"
	"immopipe/storage"
)

var (
	inputPath = flag.String("input", "input.json", "Path to the run input JSON")
	daemon    = flag.Bool("daemon", false, "Keep running and scrape on the configured schedule")
	interval  = flag.Duration("interval", 0, "Daemon interval between runs (ignored when CRON_SCHEDULE is set)")
)

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logFile, err := logging.Setup(cfg.LogFile)
	if err != nil {
		log.Printf("Warning: could not set up file logging: %v", err)
	} else if logFile != nil {
		defer logFile.Close()
	}

	log.Println("Starting immopipe...")

	input, err := loadInput(*inputPath)
	if err != nil {
		log.Fatalf("Failed to load input: %v", err)
	}
	if err := input.Validate(); err != nil {
		log.Fatalf("Invalid input: %v", err)
	}

	ctx := context.Background()

	store, err := storage.NewSQLiteStore(cfg.StatePath)
	if err != nil {
		log.Fatalf("Failed to open state store: %v", err)
	}
	defer store.Close()
	log.Printf("State store: %s", cfg.StatePath)

	dataset, err := storage.NewJSONLDataset(cfg.DatasetPath)
	if err != nil {
		log.Fatalf("Failed to open dataset: %v", err)
	}
	defer dataset.Close()
	log.Printf("Dataset: %s", cfg.DatasetPath)

	var pg *storage.PostgresSink
	if cfg.PostgresDSN != "" {
		pg, err = storage.NewPostgresSink(ctx, cfg.PostgresDSN)
		if err != nil {
			log.Fatalf("Failed to connect to Postgres: %v", err)
		}
		defer pg.Close()
		log.Println("Postgres sink connected")
	}

	resolver, err := locations.NewResolver(&locations.FileBackend{Path: cfg.LocationCache}, nil, log.Default())
	if err != nil {
		log.Fatalf("Failed to load location cache: %v", err)
	}

	opts := input.EffectiveOptions()
	headless := opts.Headless && cfg.Headless
	normalizer := services.NewNormalizer()

	factory := func(portal string) (scraper.PortalCrawler, error) {
		pc, err := config.LoadPortal(cfg.PortalsDir, portal)
		if err != nil {
			return nil, err
		}
		switch portal {
		case models.PortalImmoScout24:
			return scraper.NewImmoScoutCrawler(pc, headless, normalizer, log.Default()), nil
		case models.PortalImmowelt:
			return scraper.NewImmoweltCrawler(pc, headless, normalizer, log.Default()), nil
		default:
			return nil, fmt.Errorf("unknown portal %q", portal)
		}
	}

	runOnce := func(ctx context.Context) error {
		o := scraper.NewOrchestrator(input, factory, dataset, store, resolver,
			scraper.OrchestratorOptions{Postgres: pg})
		_, err := o.Run(ctx)
		return err
	}

	if !*daemon {
		if err := runOnce(ctx); err != nil {
			log.Fatalf("Run failed: %v", err)
		}
		log.Println("Run complete")
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	tick := *interval
	if cfg.CronSchedule == "" && tick <= 0 {
		tick = 6 * time.Hour
	}
	sched := scheduler.New(runOnce, log.Default())
	if err := sched.Start(ctx, cfg.CronSchedule, tick); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	log.Println("Daemon running. Press Ctrl+C to stop.")
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Println("Shutting down")
}

func loadInput(path string) (*models.ActorInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	var input models.ActorInput
	if err := json.Unmarshal(data, &input); err != nil {
		return nil, fmt.Errorf("parse input: %w", err)
	}
	return &input, nil
}
