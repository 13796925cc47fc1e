package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/erazemk/findit/internal/catalog"
	"github.com/erazemk/findit/internal/export"
	"github.com/erazemk/findit/internal/model"
	"github.com/erazemk/findit/internal/store"
)

func newExportCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "export <file.jsonl|file.parquet>",
		Short: "Write every post to a JSONL or Parquet file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, closeLog, err := g.load(cmd)
			if err != nil {
				return err
			}
			defer closeLog()

			kv, err := openStore(cmd.Context(), cfg.Storage)
			if err != nil {
				return err
			}
			defer kv.Close()

			cat, err := catalog.Open(cmd.Context(), store.NewCollection(kv))
			if err != nil {
				return err
			}

			records := cat.List()
			if err := export.WriteFile(args[0], records); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d posts to %s\n", len(records), args[0])
			return nil
		},
	}
}

func newImportCmd(g *globalFlags) *cobra.Command {
	var replace bool

	cmd := &cobra.Command{
		Use:   "import <file.jsonl|file.parquet>",
		Short: "Load posts from a JSONL or Parquet export",
		Long: `Load posts from a file written by "findit export".

By default imported posts are added in front of the existing ones and posts
whose id already exists are skipped. With --replace the catalog is replaced.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, closeLog, err := g.load(cmd)
			if err != nil {
				return err
			}
			defer closeLog()

			records, err := export.ReadFile(args[0])
			if err != nil {
				return err
			}

			kv, err := openStore(cmd.Context(), cfg.Storage)
			if err != nil {
				return err
			}
			defer kv.Close()

			cat, err := catalog.Open(cmd.Context(), store.NewCollection(kv))
			if err != nil {
				return err
			}

			merged, skipped := records, 0
			if !replace {
				merged, skipped = mergeRecords(records, cat.List())
			}
			if err := cat.Replace(cmd.Context(), merged); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d posts (%d skipped), catalog now holds %d\n",
				len(records)-skipped, skipped, cat.Len())
			return nil
		},
	}

	cmd.Flags().BoolVar(&replace, "replace", false, "replace the catalog instead of merging")
	return cmd
}

// mergeRecords puts incoming records ahead of existing ones, skipping incoming
// ids that already exist.
func mergeRecords(incoming, existing []model.Record) ([]model.Record, int) {
	have := make(map[string]bool, len(existing))
	for _, r := range existing {
		have[r.ID] = true
	}

	merged := make([]model.Record, 0, len(incoming)+len(existing))
	skipped := 0
	for _, r := range incoming {
		if have[r.ID] {
			skipped++
			continue
		}
		merged = append(merged, r)
	}
	return append(merged, existing...), skipped
}
