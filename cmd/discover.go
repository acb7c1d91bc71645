package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/crunchbase-miner/internal/metrics"
	"github.com/JakeFAU/crunchbase-miner/internal/server"
)

func newDiscoverCmd() *cobra.Command {
	var companyID string
	cmd := &cobra.Command{
		Use:   "discover NAME",
		Short: "Resolves a company name to its profile URL",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := resolveRuntime(cmd.Context())
			if err != nil {
				return err
			}
			metrics.Init()
			discoverer, err := server.NewDiscoverer(rt.cfg, rt.logger)
			if err != nil {
				return err
			}
			resp, err := discoverer.DiscoverOne(cmd.Context(), companyID, strings.Join(args, " "))
			if err != nil {
				return fmt.Errorf("discover: %w", err)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		},
	}
	cmd.Flags().StringVar(&companyID, "company-id", "", "key of the company in the output (defaults to the name)")
	return cmd
}
