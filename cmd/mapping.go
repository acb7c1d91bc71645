package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/JakeFAU/crunchbase-miner/internal/normalization"
)

func newMappingCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "mapping",
		Short: "Prints the normalization map",
		RunE: func(cmd *cobra.Command, _ []string) error {
			mapping, err := normalization.Load()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			switch format {
			case "json":
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(mapping)
			case "yaml":
				enc := yaml.NewEncoder(out)
				enc.SetIndent(2)
				if err := enc.Encode(mapping); err != nil {
					return fmt.Errorf("encode mapping: %w", err)
				}
				return enc.Close()
			default:
				return fmt.Errorf("unknown format %q (json or yaml)", format)
			}
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "json", "output format: json or yaml")
	return cmd
}
