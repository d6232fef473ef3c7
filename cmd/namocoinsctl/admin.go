package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"namocoins/internal/app"
	"namocoins/internal/config"
	"namocoins/internal/database"
	"namocoins/internal/model"
	"namocoins/internal/service"
)

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <orderID> <STATUS>",
		Short: "Set an order status (PAID credits, grants and mails once)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			a, err := app.New(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.Status.Transition(cmd.Context(), model.AdminCaller(), args[0], args[1])
			if err != nil {
				return err
			}
			return printJSON(cmd, report)
		},
	}
}

func rateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rate <coins-per-rupee>",
		Short: "Set the coin conversion rate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rate, err := service.ParseRate(args[0])
			if err != nil {
				return err
			}
			recalc, _ := cmd.Flags().GetBool("recalc")

			db, store, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer database.CloseDB(db)

			return applyRate(cmd, service.NewRateService(store, service.DefaultPricing), rate, recalc)
		},
	}
	cmd.Flags().Bool("recalc", false, "recompute coins of every active pack")
	return cmd
}

func applyRate(cmd *cobra.Command, rates *service.RateService, rate int, recalc bool) error {
	update, err := rates.UpdateRate(cmd.Context(), model.AdminCaller(), rate, recalc)
	if err != nil {
		return err
	}
	return printJSON(cmd, update)
}

func recalcCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recalc <productID>",
		Short: "Recompute one pack's coins with the stored rate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, store, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer database.CloseDB(db)

			rates := service.NewRateService(store, service.DefaultPricing)
			p, err := rates.RecalcProduct(cmd.Context(), model.AdminCaller(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, p)
		},
	}
}

func hashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password <password>",
		Short: "Print an argon2id hash for ADMIN_PASSWORD_HASH",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := service.HashAdminPassword(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
