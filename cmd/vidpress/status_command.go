package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"vidpress/internal/catalog"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "List catalog assets and pipeline health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := catalog.OpenReadOnly(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			assets, err := store.ListAssets(cmd.Context())
			if err != nil {
				return err
			}
			summary, err := store.Health(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(assets) == 0 {
				fmt.Fprintln(out, "No assets in the catalog.")
				return nil
			}

			rows := make([][]string, 0, len(assets))
			for _, asset := range assets {
				rows = append(rows, []string{
					asset.ID.String(),
					asset.Title,
					string(asset.Status),
					asset.ProgressStep,
					strconv.FormatFloat(asset.ProgressPercent, 'f', 0, 64) + "%",
					formatSize(asset.SizeBytes),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "Title", "Status", "Step", "Progress", "Size"},
				rows, 5, 6))
			fmt.Fprintf(out, "\n%d assets: %d live, %d processing, %d draft, %d failed\n",
				summary.Total, summary.Live, summary.Processing, summary.Draft, summary.Failed)
			return nil
		},
	}
}

func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	value := float64(bytes)
	suffixes := []string{"KiB", "MiB", "GiB", "TiB"}
	for _, suffix := range suffixes {
		value /= unit
		if value < unit || suffix == suffixes[len(suffixes)-1] {
			return fmt.Sprintf("%.1f %s", value, suffix)
		}
	}
	return fmt.Sprintf("%d B", bytes)
}
