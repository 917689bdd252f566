//go:build !js && !wasm

package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Its-donkey/storefront/internal/config"
	"github.com/Its-donkey/storefront/internal/identity"
	"github.com/Its-donkey/storefront/internal/ui/model"
)

var tokenFlags struct {
	email string
	name  string
	ttl   time.Duration
}

var tokenCmd = &cobra.Command{
	Use:   "token <uid>",
	Short: "Mint a development ID token",
	Long:  `Signs an ID token with STOREFRONT_ID_SIGNING_KEY for local sign-in.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runToken,
}

func init() {
	f := tokenCmd.Flags()
	f.StringVar(&tokenFlags.email, "email", "", "email claim")
	f.StringVar(&tokenFlags.name, "name", "", "display name claim")
	f.DurationVar(&tokenFlags.ttl, "ttl", time.Hour, "token lifetime")
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadHeadless()
	if err != nil {
		return err
	}
	if cfg.Identity.SigningKey == "" {
		return errors.New("STOREFRONT_ID_SIGNING_KEY is not set")
	}
	token, err := identity.Mint([]byte(cfg.Identity.SigningKey), model.Identity{
		UID:         args[0],
		Email:       tokenFlags.email,
		DisplayName: tokenFlags.name,
	}, identity.MintOptions{
		Issuer:   cfg.Identity.Issuer,
		Audience: cfg.Identity.Audience,
		TTL:      tokenFlags.ttl,
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
