package ecosystem

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	ecosystemservice "github.com/orderline-app/orderline/domains/ecosystem/be/service"
	storesprov "github.com/orderline-app/orderline/domains/stores/be/provisioning"
	storesrepo "github.com/orderline-app/orderline/domains/stores/be/repo"
	"github.com/orderline-app/orderline/platform/go/persistence"
)

// Command groups ecosystem audit helpers.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ecosystem",
		Short: "Ecosystem audits (validate/repair store schema placement)",
	}

	cmd.AddCommand(validateCommand())
	cmd.AddCommand(repairCommand())
	return cmd
}

func wire(ctx context.Context, databaseURL string) (ecosystemservice.Service, func(), error) {
	logger := zap.NewNop()

	pool, err := persistence.NewPool(ctx, persistence.PoolConfig{ConnString: databaseURL}, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("init pool: %w", err)
	}

	exec := persistence.NewExecutor(pool, logger)
	master := persistence.NewMasterStore(persistence.NewStoreDB(exec, persistence.MasterSchema))
	repo := storesrepo.NewMasterRepository(master)
	prov := storesprov.NewDBProvisioner(pool)

	svc := ecosystemservice.New(pool, repo, prov, nil, databaseURL, logger)
	return svc, func() { persistence.ClosePool(pool) }, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func validateCommand() *cobra.Command {
	var (
		databaseURL string
		storeID     int64
	)

	c := &cobra.Command{
		Use:   "validate",
		Short: "Audit one store, or every active store when --store-id is omitted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			svc, cleanup, err := wire(ctx, databaseURL)
			if err != nil {
				return err
			}
			defer cleanup()

			if storeID > 0 {
				report, err := svc.Validate(ctx, storeID)
				if err != nil {
					return fmt.Errorf("validate store: %w", err)
				}
				return printJSON(cmd, report)
			}

			reports, err := svc.ValidateAll(ctx)
			if err != nil {
				return fmt.Errorf("validate stores: %w", err)
			}
			return printJSON(cmd, reports)
		},
	}

	c.Flags().StringVar(&databaseURL, "database-url", "", "PostgreSQL connection string")
	c.Flags().Int64Var(&storeID, "store-id", 0, "Store id (omit to audit all active stores)")

	_ = c.MarkFlagRequired("database-url")

	return c
}

func repairCommand() *cobra.Command {
	var (
		databaseURL string
		storeID     int64
	)

	c := &cobra.Command{
		Use:   "repair",
		Short: "Repair a store's ecosystem (provision schema, seed defaults, migrate orphaned rows)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			svc, cleanup, err := wire(ctx, databaseURL)
			if err != nil {
				return err
			}
			defer cleanup()

			result, err := svc.Repair(ctx, storeID)
			if err != nil {
				return fmt.Errorf("repair store: %w", err)
			}
			return printJSON(cmd, result)
		},
	}

	c.Flags().StringVar(&databaseURL, "database-url", "", "PostgreSQL connection string")
	c.Flags().Int64Var(&storeID, "store-id", 0, "Store id")

	_ = c.MarkFlagRequired("database-url")
	_ = c.MarkFlagRequired("store-id")

	return c
}
