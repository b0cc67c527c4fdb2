package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"billboard/internal/config"
	"billboard/internal/database"
	"billboard/internal/models"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	var (
		configPath = flag.String("config", "configs/config.yaml", "config of the target database")
		fromPath   = flag.String("from", "./data/billboard.db", "path to the source sqlite db")
		exportPath = flag.String("export-catalog", "", "write the source catalog as a seed yaml instead of copying")
		timeout    = flag.Duration("timeout", 5*time.Minute, "overall timeout")
		force      = flag.Bool("force", false, "copy even when the source has no locations")
	)
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	src, err := database.OpenExisting(*fromPath, &logger)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer src.Close()

	if *exportPath != "" {
		return exportCatalog(ctx, src, *exportPath, &logger)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Database.Driver == config.DriverSQLite && cfg.Database.Path == *fromPath {
		return fmt.Errorf("source and target are the same database")
	}

	dst, err := database.Open(ctx, cfg.Database, &logger)
	if err != nil {
		return fmt.Errorf("open target: %w", err)
	}
	defer dst.Close()

	res, err := database.CopyTables(ctx, src, dst, database.CopyOptions{AllowEmpty: *force})
	if errors.Is(err, database.ErrEmptySource) {
		return fmt.Errorf("%w; pass -force to clear the target anyway", err)
	}
	if err != nil {
		return err
	}
	for table, n := range res {
		logger.Info().Str("table", table).Int("rows", n).Msg("copied")
	}
	logger.Info().Str("driver", cfg.Database.Driver).Msg("migration complete")
	return nil
}

// exportCatalog dumps fixed locations and mobile templates in the format the
// API reads from catalog.path. Spawned mobile units are left out.
func exportCatalog(ctx context.Context, db *database.DB, path string, logger *zerolog.Logger) error {
	locations, err := db.ListLocations(ctx)
	if err != nil {
		return fmt.Errorf("list locations: %w", err)
	}

	catalog := struct {
		Locations []models.Location `yaml:"locations"`
	}{}
	for _, l := range locations {
		if l.IsMobileChild() {
			continue
		}
		catalog.Locations = append(catalog.Locations, l)
	}

	data, err := yaml.Marshal(&catalog)
	if err != nil {
		return fmt.Errorf("encode catalog: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write catalog: %w", err)
	}
	logger.Info().Str("path", path).Int("locations", len(catalog.Locations)).Msg("catalog exported")
	return nil
}
