package cmd

import (
	"fmt"

	"github.com/Rana718/pharmaseed/internal/config"
	"github.com/Rana718/pharmaseed/internal/database"
	"github.com/Rana718/pharmaseed/internal/generator"
	"github.com/Rana718/pharmaseed/internal/logger"
	"github.com/Rana718/pharmaseed/internal/sampler"
	"github.com/Rana718/pharmaseed/internal/seeder"
	"github.com/Rana718/pharmaseed/internal/sequence"
	"github.com/Rana718/pharmaseed/internal/spec"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func runPopulate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return err
	}
	defer log.Sync()

	dbPath, err := cfg.LocateDatabase()
	if err != nil {
		return err
	}

	registry := generator.DefaultRegistry()
	tree, err := spec.Load(cfg.Spec.Baseline, cfg.Spec.Override, registry)
	if err != nil {
		return fmt.Errorf("failed to load populate spec: %w", err)
	}

	ctx := cmd.Context()
	store, err := database.Open(ctx, cfg.Database.Driver, dbPath)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", dbPath, err)
	}
	defer store.Close()

	log.Info("populating store", zap.String("path", dbPath), zap.Int("nodes", len(tree.Data)))
	color.Cyan("🗄️  Using %s", dbPath)

	counters := sequence.NewPrimaryKeyTable(store)
	env := generator.NewEnv(sampler.New(store), counters, cfg.Vocabulary, cfg.Dynamic)
	s := seeder.NewSeeder(store, registry, env, counters, seeder.SeedConfig{Batch: cfg.Batch}, log)

	report, err := s.Populate(ctx, tree)
	if err != nil {
		return err
	}

	for table, n := range report.Inserted {
		log.Info("rows inserted", zap.String("table", table), zap.Int("rows", n))
	}
	for table, n := range report.Updated {
		log.Info("rows updated", zap.String("table", table), zap.Int("rows", n))
	}
	if err := report.Err(); err != nil {
		color.Yellow("⚠️  Some nodes were aborted:\n%v", err)
	}

	color.Green("Done!")
	return nil
}
