package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/KhavKivar/piwebapi-etl/internal/config"
	"github.com/KhavKivar/piwebapi-etl/internal/engine"
	"github.com/KhavKivar/piwebapi-etl/internal/logger"
	"github.com/KhavKivar/piwebapi-etl/internal/scheduler"
	"github.com/KhavKivar/piwebapi-etl/internal/sink"
	"github.com/KhavKivar/piwebapi-etl/internal/sink/csvfile"
	"github.com/KhavKivar/piwebapi-etl/internal/sink/kafka"
	"github.com/KhavKivar/piwebapi-etl/internal/sink/multi"
	"github.com/KhavKivar/piwebapi-etl/internal/sink/sqlite"
	"github.com/KhavKivar/piwebapi-etl/internal/transform"
)

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: piwebapi-etl [flags] <command> [site]

Commands:
  init              Initialize database tables
  populate <site>   Full repopulate for one site
  workbook <site>   Export one site's event frames to CSV
  run               Continuous monitoring mode

Flags:
`)
	flag.PrintDefaults()
}

func main() {
	var (
		configPath = flag.String("config", "configs/config.yml", "path to configuration file")
		debug      = flag.Bool("debug", false, "enable verbose logging")
		startStr   = flag.String("start", "2025-01-01T00:00:00Z", "start of the extraction window (RFC 3339, UTC)")
		endStr     = flag.String("end", "", "end of the extraction window (RFC 3339, UTC; defaults to now)")
		outPath    = flag.String("out", "", "CSV output path for the workbook command")
	)
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "piwebapi-etl: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel, *debug)
	defer log.Sync()

	start, end, err := parseWindow(*startStr, *endStr)
	if err != nil {
		log.Fatalw("invalid time window", "err", err)
	}

	// Cancel on SIGINT/SIGTERM: the current fetch cycle finishes, the next
	// one never starts.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eng := engine.New(cfg, log)

	switch cmd := flag.Arg(0); cmd {
	case "init":
		err = runInit(ctx, cfg, log)
	case "populate":
		err = runPopulate(ctx, cfg, eng, log, flag.Arg(1), start, end)
	case "workbook":
		err = runWorkbook(ctx, cfg, eng, log, flag.Arg(1), start, end, *outPath)
	case "run":
		err = runLoop(ctx, cfg, eng, log)
	default:
		usage()
		os.Exit(1)
	}
	if err != nil && err != context.Canceled {
		log.Fatalw("command failed", "command", flag.Arg(0), "err", err)
	}
}

func parseWindow(startStr, endStr string) (time.Time, time.Time, error) {
	start, err := time.Parse(time.RFC3339, startStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parse -start: %w", err)
	}
	var end time.Time
	if endStr != "" {
		if end, err = time.Parse(time.RFC3339, endStr); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("parse -end: %w", err)
		}
	}
	return start, end, nil
}

func runInit(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	db, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	// DDL depends only on the schema; the transformer is unused here.
	s := sqlite.New(db, cfg.Database.Table, cfg.Schema, transform.New(cfg.Schema, "", config.SiteConfig{}), log)
	if err := s.Init(ctx); err != nil {
		return err
	}
	return sqlite.NewTracker(db).Init(ctx)
}

func runPopulate(ctx context.Context, cfg *config.Config, eng *engine.Engine, log *logger.Logger,
	site string, start, end time.Time) error {
	if site == "" {
		return fmt.Errorf("populate: site name required")
	}
	siteCfg, err := cfg.Site(site)
	if err != nil {
		return err
	}

	db, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	tr := transform.New(cfg.Schema, site, siteCfg)
	s := sqlite.New(db, cfg.Database.Table, cfg.Schema, tr, log)
	if err := s.DeleteSite(ctx, site); err != nil {
		return err
	}

	log.Infow("fetching event frame data", "site", site, "start", start)
	res, err := eng.Fetch(ctx, site, start, end)
	if err != nil {
		return err
	}
	log.Infow("rows loaded from PI Web API", "site", site, "rows", len(res.Records))
	return s.Write(ctx, res.Records)
}

func runWorkbook(ctx context.Context, cfg *config.Config, eng *engine.Engine, log *logger.Logger,
	site string, start, end time.Time, outPath string) error {
	if site == "" {
		return fmt.Errorf("workbook: site name required")
	}
	siteCfg, err := cfg.Site(site)
	if err != nil {
		return err
	}

	log.Infow("fetching event frame data", "site", site, "start", start)
	res, err := eng.Fetch(ctx, site, start, end)
	if err != nil {
		return err
	}
	if len(res.Records) == 0 {
		log.Warnw("no data to export for the date range", "site", site)
		return nil
	}

	if outPath == "" {
		outPath = csvfile.DefaultFilename(site, time.Now())
	}
	tr := transform.New(cfg.Schema, site, siteCfg)
	out, err := csvfile.New(outPath, tr)
	if err != nil {
		return err
	}
	if err := out.Init(ctx); err != nil {
		out.Close()
		return err
	}
	if err := out.Write(ctx, res.Records); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	log.Infow("CSV export complete", "site", site, "rows", len(res.Records), "file", outPath)
	return nil
}

func runLoop(ctx context.Context, cfg *config.Config, eng *engine.Engine, log *logger.Logger) error {
	db, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	tracker := sqlite.NewTracker(db)
	if err := tracker.Init(ctx); err != nil {
		return err
	}

	sinks := buildSinks(cfg, db, log)
	defer func() {
		for _, s := range sinks {
			s.Close()
		}
	}()

	sites := cfg.SitesRun
	if len(sites) == 0 {
		for name := range cfg.Sites {
			sites = append(sites, name)
		}
	}

	log.Infow("starting continuous monitoring",
		"sites", sites, "interval", cfg.Run.Interval, "lookback", cfg.Run.Lookback)
	sched := scheduler.New(eng, tracker, sinks, sites, cfg.Run.Interval, cfg.Run.Lookback, log)
	return sched.Run(ctx)
}

// buildSinks wires one destination per site: the SQLite cache table, plus
// the Kafka topic when brokers are configured.
func buildSinks(cfg *config.Config, db *sql.DB, log *logger.Logger) map[string]sink.Sink {
	sinks := make(map[string]sink.Sink, len(cfg.Sites))
	for name, siteCfg := range cfg.Sites {
		tr := transform.New(cfg.Schema, name, siteCfg)
		var s sink.Sink = sqlite.New(db, cfg.Database.Table, cfg.Schema, tr, log)
		if len(cfg.Kafka.Brokers) > 0 && cfg.Kafka.Topic != "" {
			s = multi.New(s, kafka.New(cfg.Kafka, name))
		}
		sinks[name] = s
	}
	return sinks
}
