//go:build !js && !wasm

package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Its-donkey/storefront/internal/ui/model"
)

var viewsCmd = &cobra.Command{
	Use:   "views",
	Short: "List the views in the manifest",
	Args:  cobra.NoArgs,
	RunE:  runViews,
}

func runViews(cmd *cobra.Command, args []string) error {
	cfg, err := loadViews()
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ROLE\tVIEW\tCONTAINER\tMODULE\tDEFAULT\tMAIN TAB")
	for _, desc := range cfg.Descriptors() {
		defaultView, _ := cfg.DefaultView(desc.Role)
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			desc.Role, desc.View, desc.ContainerID, orDash(desc.Module),
			yesNo(desc.View == defaultView), yesNo(desc.IsMainTab))
	}
	return w.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// containerIDs lists every container the manifest references.
func containerIDs(descs []model.ViewDescriptor) []string {
	seen := make(map[string]struct{}, len(descs))
	ids := make([]string, 0, len(descs))
	for _, desc := range descs {
		if _, ok := seen[desc.ContainerID]; ok {
			continue
		}
		seen[desc.ContainerID] = struct{}{}
		ids = append(ids, desc.ContainerID)
	}
	return ids
}
