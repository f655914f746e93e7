package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pkordes/rideplanner/internal/identity"
)

func newTokenCmd(a *app) *cobra.Command {
	var userID, email string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for local development",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			secret := a.v.GetString(keyJWTSecret)
			if secret == "" {
				return fmt.Errorf("jwt secret not set: use --jwt-secret or %s_JWT_SECRET", envPrefix)
			}
			if userID == "" {
				return fmt.Errorf("--user is required")
			}
			tok, err := identity.NewJWT(secret, ttl).Issue(identity.User{ID: userID, Email: email})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id to put in the token")
	cmd.Flags().StringVar(&email, "email", "", "optional email claim")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	cmd.Flags().String("jwt-secret", "", "HS256 signing secret")
	_ = a.v.BindPFlag(keyJWTSecret, cmd.Flags().Lookup("jwt-secret"))
	return cmd
}
