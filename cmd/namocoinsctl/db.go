package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"namocoins/internal/config"
	"namocoins/internal/database"
	"namocoins/internal/service"
)

// openStore connects with the database settings only, so catalog commands
// work without SMTP or RCON configured.
func openStore(ctx context.Context) (*sql.DB, *database.Store, error) {
	cfg, err := config.Parse()
	if err != nil {
		return nil, nil, err
	}

	db, err := database.NewDB(ctx, cfg.DatabaseURI)
	if err != nil {
		return nil, nil, err
	}
	if err := database.InitSchema(ctx, db); err != nil {
		database.CloseDB(db)
		return nil, nil, err
	}
	return db, database.NewStore(db), nil
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, _, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer database.CloseDB(db)

			fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return nil
		},
	}
}

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed [catalog.yaml]",
		Short: "Upsert the coin pack catalog by SKU",
		Long: `Upsert coin packs keyed by SKU.

Without an argument the built-in NAMO-* catalog is used. Coins are taken
from the file as-is; pass --reprice to compute them from the stored rate.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var data []byte
			if len(args) == 1 {
				b, err := os.ReadFile(args[0])
				if err != nil {
					return fmt.Errorf("read catalog: %w", err)
				}
				data = b
			}

			db, store, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer database.CloseDB(db)

			n, err := store.Seed(cmd.Context(), data)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d packs\n", n)

			if reprice, _ := cmd.Flags().GetBool("reprice"); reprice {
				rates := service.NewRateService(store, service.DefaultPricing)
				rate, err := rates.CoinRate(cmd.Context())
				if err != nil {
					return err
				}
				return applyRate(cmd, rates, rate, true)
			}
			return nil
		},
	}
	cmd.Flags().Bool("reprice", false, "recompute coins of active packs with the stored rate")
	return cmd
}
