package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	storesprov "github.com/orderline-app/orderline/domains/stores/be/provisioning"
	storesrepo "github.com/orderline-app/orderline/domains/stores/be/repo"
	storesservice "github.com/orderline-app/orderline/domains/stores/be/service"
	"github.com/orderline-app/orderline/platform/go/persistence"
)

// Command groups store registry helpers.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Store utilities (create/list/provision/deactivate)",
	}

	cmd.AddCommand(createCommand())
	cmd.AddCommand(listCommand())
	cmd.AddCommand(provisionCommand())
	cmd.AddCommand(deactivateCommand())
	return cmd
}

// wire builds the stores service over a fresh master pool. The returned
// cleanup closes the pool.
func wire(ctx context.Context, databaseURL string) (storesservice.Service, func(), error) {
	logger := zap.NewNop()

	pool, err := persistence.NewPool(ctx, persistence.PoolConfig{ConnString: databaseURL}, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("init pool: %w", err)
	}

	exec := persistence.NewExecutor(pool, logger)
	master := persistence.NewMasterStore(persistence.NewStoreDB(exec, persistence.MasterSchema))
	repo := storesrepo.NewMasterRepository(master)
	prov := storesprov.NewDBProvisioner(pool)

	svc := storesservice.New(repo, prov, nil, databaseURL, logger)
	return svc, func() { persistence.ClosePool(pool) }, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func createCommand() *cobra.Command {
	var (
		databaseURL    string
		name           string
		slug           string
		whatsappNumber string
	)

	c := &cobra.Command{
		Use:   "create",
		Short: "Register a store and provision its schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			svc, cleanup, err := wire(ctx, databaseURL)
			if err != nil {
				return err
			}
			defer cleanup()

			input := storesservice.CreateInput{Name: name, Slug: slug}
			if n := strings.TrimSpace(whatsappNumber); n != "" {
				input.WhatsAppNumber = &n
			}

			store, err := svc.Create(ctx, input)
			if err != nil {
				return fmt.Errorf("create store: %w", err)
			}
			return printJSON(cmd, store)
		},
	}

	c.Flags().StringVar(&databaseURL, "database-url", "", "PostgreSQL connection string")
	c.Flags().StringVar(&name, "name", "", "Store display name")
	c.Flags().StringVar(&slug, "slug", "", "Store slug (defaults from name)")
	c.Flags().StringVar(&whatsappNumber, "whatsapp-number", "", "WhatsApp business number")

	_ = c.MarkFlagRequired("database-url")
	_ = c.MarkFlagRequired("name")

	return c
}

func listCommand() *cobra.Command {
	var (
		databaseURL     string
		includeInactive bool
	)

	c := &cobra.Command{
		Use:   "list",
		Short: "List registered stores",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			svc, cleanup, err := wire(ctx, databaseURL)
			if err != nil {
				return err
			}
			defer cleanup()

			stores, err := svc.List(ctx, includeInactive)
			if err != nil {
				return fmt.Errorf("list stores: %w", err)
			}
			return printJSON(cmd, stores)
		},
	}

	c.Flags().StringVar(&databaseURL, "database-url", "", "PostgreSQL connection string")
	c.Flags().BoolVar(&includeInactive, "include-inactive", false, "Include deactivated stores")

	_ = c.MarkFlagRequired("database-url")

	return c
}

func provisionCommand() *cobra.Command {
	var (
		databaseURL string
		storeID     int64
	)

	c := &cobra.Command{
		Use:   "provision",
		Short: "Provision (or re-provision) a store's schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			svc, cleanup, err := wire(ctx, databaseURL)
			if err != nil {
				return err
			}
			defer cleanup()

			store, err := svc.Provision(ctx, storeID)
			if err != nil {
				return fmt.Errorf("provision store: %w", err)
			}
			return printJSON(cmd, store)
		},
	}

	c.Flags().StringVar(&databaseURL, "database-url", "", "PostgreSQL connection string")
	c.Flags().Int64Var(&storeID, "store-id", 0, "Store id")

	_ = c.MarkFlagRequired("database-url")
	_ = c.MarkFlagRequired("store-id")

	return c
}

func deactivateCommand() *cobra.Command {
	var (
		databaseURL string
		storeID     int64
	)

	c := &cobra.Command{
		Use:   "deactivate",
		Short: "Deactivate a store (soft delete)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			svc, cleanup, err := wire(ctx, databaseURL)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := svc.Deactivate(ctx, storeID); err != nil {
				return fmt.Errorf("deactivate store: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Store %d deactivated.\n", storeID)
			return nil
		},
	}

	c.Flags().StringVar(&databaseURL, "database-url", "", "PostgreSQL connection string")
	c.Flags().Int64Var(&storeID, "store-id", 0, "Store id")

	_ = c.MarkFlagRequired("database-url")
	_ = c.MarkFlagRequired("store-id")

	return c
}
