//go:build !js && !wasm

package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Its-donkey/storefront/internal/ui/model"
	"github.com/Its-donkey/storefront/internal/ui/router"
)

var resolveFlags struct {
	hash     string
	role     string
	userID   string
	lastRole string
	lastView string
}

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Show which view a page load would open",
	Long: `Runs the initial-route rules against a location hash and a stored session and
prints the chosen role, view and the rule that matched.`,
	Args: cobra.NoArgs,
	RunE: runResolve,
}

func init() {
	f := resolveCmd.Flags()
	f.StringVar(&resolveFlags.hash, "hash", "", "location hash, e.g. #/consumer/orders")
	f.StringVar(&resolveFlags.role, "role", "", "stored role")
	f.StringVar(&resolveFlags.userID, "user", "", "stored user id")
	f.StringVar(&resolveFlags.lastRole, "last-role", "", "stored last active role")
	f.StringVar(&resolveFlags.lastView, "last-view", "", "stored last active view")
}

func runResolve(cmd *cobra.Command, args []string) error {
	cfg, err := loadViews()
	if err != nil {
		return err
	}
	res := router.Resolve(router.Inputs{
		Hash: resolveFlags.hash,
		Session: model.SessionState{
			Role:           model.Role(resolveFlags.role),
			UserID:         resolveFlags.userID,
			LastActiveRole: model.Role(resolveFlags.lastRole),
			LastActiveView: model.ViewID(resolveFlags.lastView),
		},
	}, cfg)

	out := struct {
		Role   model.Role        `json:"role"`
		View   model.ViewID      `json:"view"`
		Params map[string]string `json:"params,omitempty"`
		Rule   router.Rule       `json:"rule"`
		Hash   string            `json:"hash"`
	}{res.Role, res.View, res.Params, res.Rule, router.FormatHash(res.Role, res.View, res.Params)}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	return nil
}
