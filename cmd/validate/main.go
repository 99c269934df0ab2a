// Command validate runs the batch address validation over the whole address
// table, skipping rows already recorded in ValidatedAddresses.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/stwalsh4118/ng911/internal/config"
	"github.com/stwalsh4118/ng911/internal/logger"
	"github.com/stwalsh4118/ng911/internal/schema"
	"github.com/stwalsh4118/ng911/internal/store"
	"github.com/stwalsh4118/ng911/internal/validation"
)

func main() {
	configFile := flag.String("config", "", "path to config.json (default: ./config.json, env overrides)")
	flag.Parse()

	cfg, err := config.LoadFrom(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Server.Env)
	log.Info("Starting batch address validation", map[string]interface{}{
		"environment": cfg.Server.Env,
		"agency":      cfg.NG911.AgencyID,
	})

	ctx := context.Background()
	st, err := store.NewPostgresStore(ctx, cfg.Database, cfg.NG911.SRID)
	if err != nil {
		log.Fatal("Failed to connect to geodatabase", err, map[string]interface{}{
			"host": cfg.Database.Host,
			"name": cfg.Database.Name,
		})
	}
	defer st.Close()

	registry := schema.NewRegistry(cfg.NG911.SchemasPath, log)
	addressValidator, err := validation.NewValidator(st, registry, log)
	if err != nil {
		log.Fatal("Failed to initialize address validator", err, map[string]interface{}{
			"schemas_path": cfg.NG911.SchemasPath,
		})
	}

	runner := validation.NewRunner(st, addressValidator, log)
	summary, err := runner.Run(ctx)
	if err != nil {
		log.Fatal("Batch validation aborted", err, nil)
	}

	log.Info("Batch validation finished", map[string]interface{}{
		"run_id":    summary.RunID,
		"processed": summary.Processed,
		"flagged":   summary.Flagged,
		"skipped":   summary.Skipped,
		"failed":    summary.Failed,
	})

	if summary.Failed > 0 {
		os.Exit(1)
	}
}
