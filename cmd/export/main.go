// Command export applies a CAD vendor field map to a feature layer and
// writes the mapped rows as JSON, to stdout or a file.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/stwalsh4118/ng911/internal/config"
	"github.com/stwalsh4118/ng911/internal/logger"
	"github.com/stwalsh4118/ng911/internal/schema"
	"github.com/stwalsh4118/ng911/internal/store"
	"github.com/stwalsh4118/ng911/internal/vendor"
)

func main() {
	configFile := flag.String("config", "", "path to config.json (default: ./config.json, env overrides)")
	vendorFile := flag.String("vendor", "", "path to the vendor field-map JSON")
	featureType := flag.String("type", schema.TypeAddressPoints, "feature type to export")
	outFile := flag.String("out", "", "output path (default: stdout)")
	flag.Parse()

	if *vendorFile == "" {
		fmt.Fprintln(os.Stderr, "the -vendor flag is required")
		os.Exit(1)
	}

	cfg, err := config.LoadFrom(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Server.Env)

	vendorCfg, err := vendor.Load(*vendorFile)
	if err != nil {
		log.Fatal("Failed to load vendor field map", err, map[string]interface{}{
			"path": *vendorFile,
		})
	}

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
	desc, err := registry.Load(*featureType)
	if err != nil {
		log.Fatal("Failed to load feature schema", err, map[string]interface{}{
			"feature_type": *featureType,
		})
	}

	rows, err := vendor.NewMapper(vendorCfg, log).Export(ctx, st, desc.Layer, desc.FeatureType)
	if err != nil {
		log.Fatal("Vendor export failed", err, map[string]interface{}{
			"vendor": vendorCfg.Vendor,
			"layer":  desc.Layer,
		})
	}

	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		log.Fatal("Failed to encode export rows", err, nil)
	}

	out := os.Stdout
	if *outFile != "" {
		f, err := os.Create(*outFile)
		if err != nil {
			log.Fatal("Failed to create output file", err, map[string]interface{}{
				"path": *outFile,
			})
		}
		defer f.Close()
		out = f
	}

	if _, err := out.Write(append(data, '\n')); err != nil {
		log.Fatal("Failed to write export rows", err, nil)
	}
}
