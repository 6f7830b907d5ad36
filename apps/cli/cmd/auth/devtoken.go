package auth

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	platformauth "github.com/orderline-app/orderline/platform/go/auth"
)

// Command groups auth helpers.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Auth utilities (dev tokens)",
	}

	cmd.AddCommand(devTokenCommand())
	return cmd
}

func devTokenCommand() *cobra.Command {
	var (
		secret      string
		userID      int64
		email       string
		accessLevel string
		storeID     int64
		expiresIn   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "devtoken",
		Short: "Generate a signed session token for dev/local use",
		RunE: func(cmd *cobra.Command, args []string) error {
			issuer, err := platformauth.NewTokenIssuer(secret, "orderline")
			if err != nil {
				return err
			}

			creds := platformauth.Credentials{
				UserID:      userID,
				Email:       email,
				AccessLevel: accessLevel,
			}
			if accessLevel == platformauth.AccessStore {
				if storeID <= 0 {
					return fmt.Errorf("store access tokens require --store-id")
				}
				creds.StoreID = &storeID
			}

			token, err := issuer.Issue(creds, expiresIn)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&secret, "session-secret", "", "Signing secret (must match the API server's SESSION_SECRET)")
	cmd.Flags().Int64Var(&userID, "user-id", 1, "User id claim")
	cmd.Flags().StringVar(&email, "email", "", "Email claim")
	cmd.Flags().StringVar(&accessLevel, "access-level", platformauth.AccessGlobal, "Access level (global or store)")
	cmd.Flags().Int64Var(&storeID, "store-id", 0, "Bound store id (required for store access)")
	cmd.Flags().DurationVar(&expiresIn, "expires-in", time.Hour, "Token lifetime (e.g. 30m, 2h)")

	_ = cmd.MarkFlagRequired("session-secret")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}
