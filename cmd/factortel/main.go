package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	factortel "github.com/kangbyounggwan/factor-telemetry"
	"github.com/kangbyounggwan/factor-telemetry/internal/adapters/store"
	"github.com/kangbyounggwan/factor-telemetry/internal/app/session"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	var err error

	switch cmd {
	case "run":
		err = runCommand(os.Args[2:])
	case "validate":
		err = validateCommand(os.Args[2:])
	case "history":
		err = historyCommand(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		printUsage()
		err = fmt.Errorf("unknown command %q", cmd)
	}

	if err != nil {
		log.Fatalf("factortel %s: %v", cmd, err)
	}
}

func runCommand(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	cfgPath := fs.String("config", "./data/config.yaml", "Path to engine configuration file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	rt, err := factortel.Conf(*cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return rt.Run(ctx)
}

func validateCommand(args []string) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	cfgPath := fs.String("config", "./data/config.yaml", "Path to configuration file to validate")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if _, err := factortel.LoadConfig(*cfgPath); err != nil {
		return err
	}
	fmt.Printf("config %s looks good\n", *cfgPath)
	return nil
}

func historyCommand(args []string) error {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	cfgPath := fs.String("config", "./data/config.yaml", "Path to engine configuration file")
	device := fs.String("device", "", "Device id to query")
	window := fs.Duration("window", time.Hour, "How far back to read")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *device == "" {
		return fmt.Errorf("-device is required")
	}

	cfg, err := factortel.LoadConfig(*cfgPath)
	if err != nil {
		return err
	}

	db, err := sql.Open("postgres", cfg.Postgres.ConnString)
	if err != nil {
		return err
	}
	defer db.Close()

	reader := session.NewHistoryReader(store.NewPostgresStore(db, cfg.Postgres.Table), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	readings, err := reader.History(ctx, *device, *window)
	if err != nil {
		return err
	}
	if len(readings) == 0 {
		fmt.Printf("no samples for %s in the last %s\n", *device, *window)
		return nil
	}

	for _, r := range readings {
		fmt.Printf("%s", r.Timestamp.Format(time.RFC3339))
		for k, v := range r.Fields {
			fmt.Printf("  %s=%.2f", k, v)
		}
		fmt.Println()
	}
	fmt.Printf("%d samples\n", len(readings))
	return nil
}

func printUsage() {
	fmt.Println(`factortel - telemetry session buffering & archival engine

Usage:
  factortel run      [-config path]                     Run the engine
  factortel validate [-config path]                     Validate a config file
  factortel history  [-config path] -device id [-window 1h]
                                                        Print a device's recent samples
  factortel help                                        Show this help`)
}
