package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/crunchbase-miner/internal/crunchbase"
	"github.com/JakeFAU/crunchbase-miner/internal/extract"
)

func newExtractCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "extract FILE",
		Short: "Normalizes a downloaded dataset (JSON object or array, - for stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := resolveRuntime(cmd.Context())
			if err != nil {
				return err
			}
			data, err := readInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			records, err := decodeDataset(data)
			if err != nil {
				return err
			}

			extractor := extract.New(rt.logger.Named("extract"))
			companies := make([]crunchbase.Company, 0, len(records))
			for i, raw := range records {
				company, err := extractor.Extract(raw)
				if err != nil {
					rt.logger.Warn("record partially extracted", zap.Int("index", i), zap.Error(err))
				}
				companies = append(companies, company)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(companies)
		},
	}
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	return data, nil
}

// decodeDataset accepts a single record or an array of records.
func decodeDataset(data []byte) ([]crunchbase.RawRecord, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var records []crunchbase.RawRecord
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, fmt.Errorf("decode dataset: %w", err)
		}
		return records, nil
	}
	var record crunchbase.RawRecord
	if err := json.Unmarshal(trimmed, &record); err != nil {
		return nil, fmt.Errorf("decode dataset: %w", err)
	}
	return []crunchbase.RawRecord{record}, nil
}
