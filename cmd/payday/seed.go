package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/okian/payday/internal/config"
	"github.com/okian/payday/pkg/logger"
)

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load the seed file, payouts included, into the configured store",
		Long: "Load the seed file into the configured store. Run it once: seeding again\n" +
			"resets payouts to their scheduled state.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.SeedFile == "" {
				return errNoSeedFile
			}
			if cfg.Store == config.StoreMemory {
				return fmt.Errorf("the memory store is seeded on every start; seed needs store=%s", config.StorePostgres)
			}
			ctx := cmd.Context()
			store, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := seedStore(ctx, cfg.SeedFile, store); err != nil {
				return err
			}
			logger.Get().Info(ctx, "store seeded", logger.String("file", cfg.SeedFile))
			return nil
		},
	}
}
