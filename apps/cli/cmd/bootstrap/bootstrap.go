package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	accountsservice "github.com/orderline-app/orderline/domains/accounts/be/service"
	platformauth "github.com/orderline-app/orderline/platform/go/auth"
	"github.com/orderline-app/orderline/platform/go/persistence"
)

// Notes/constraints:
// - Bootstrap applies the master DDL (stores registry, platform users, shared
//   tables, default seeds) and is idempotent; rerunning it is safe.
// - The admin account is check-or-create: an existing account with the same
//   email is left untouched.

// Command groups bootstrap helpers (platform init, future seed steps).
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Bootstrap platform resources (master schema, admin account)",
		Long:  "Bootstrap platform resources such as the master schema, default seed tables and the initial global admin account.",
	}

	cmd.AddCommand(platformCommand())
	return cmd
}

func platformCommand() *cobra.Command {
	var (
		databaseURL   string
		adminEmail    string
		adminPassword string
		adminName     string
		sessionSecret string
	)

	c := &cobra.Command{
		Use:   "platform",
		Short: "Apply master schema DDL and create the initial global admin",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			logger := zap.NewNop()

			pool, err := persistence.NewPool(ctx, persistence.PoolConfig{ConnString: databaseURL}, logger)
			if err != nil {
				return fmt.Errorf("init pool: %w", err)
			}
			defer persistence.ClosePool(pool)

			if err := persistence.BootstrapMasterSchema(ctx, pool); err != nil {
				return fmt.Errorf("bootstrap master schema: %w", err)
			}

			exec := persistence.NewExecutor(pool, logger)
			master := persistence.NewMasterStore(persistence.NewStoreDB(exec, persistence.MasterSchema))

			issuer, err := platformauth.NewTokenIssuer(sessionSecret, "orderline")
			if err != nil {
				return fmt.Errorf("init token issuer: %w", err)
			}
			accounts := accountsservice.New(master, issuer, 24*time.Hour)

			user, created, err := ensureAdminAccount(ctx, master, accounts, adminEmail, adminPassword, adminName)
			if err != nil {
				return err
			}

			state := "already existed"
			if created {
				state = "created"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Bootstrap complete. Admin account %s (%s, id=%d)\n", user.Email, state, user.ID)
			return nil
		},
	}

	c.Flags().StringVar(&databaseURL, "database-url", "", "PostgreSQL connection string")
	c.Flags().StringVar(&adminEmail, "admin-email", "", "Initial global admin email")
	c.Flags().StringVar(&adminPassword, "admin-password", "", "Initial global admin password")
	c.Flags().StringVar(&adminName, "admin-full-name", "", "Initial global admin full name")
	c.Flags().StringVar(&sessionSecret, "session-secret", "orderline-bootstrap-secret", "Session secret (only used to satisfy account wiring)")

	_ = c.MarkFlagRequired("database-url")
	_ = c.MarkFlagRequired("admin-email")
	_ = c.MarkFlagRequired("admin-password")

	return c
}

// ensureAdminAccount performs a check-or-create for the global admin user.
func ensureAdminAccount(ctx context.Context, master *persistence.MasterStore, accounts accountsservice.Service, email, password, fullName string) (persistence.PlatformUser, bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return persistence.PlatformUser{}, false, fmt.Errorf("admin email and password are required")
	}

	existing, err := master.GetPlatformUserByEmail(ctx, email)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, persistence.ErrNotFound) {
		return persistence.PlatformUser{}, false, fmt.Errorf("lookup admin account: %w", err)
	}

	input := accountsservice.RegisterInput{
		Email:       email,
		Password:    password,
		AccessLevel: platformauth.AccessGlobal,
	}
	if name := strings.TrimSpace(fullName); name != "" {
		input.FullName = &name
	}

	user, err := accounts.Register(ctx, input)
	if err != nil {
		return persistence.PlatformUser{}, false, fmt.Errorf("create admin account: %w", err)
	}
	return user, true, nil
}
