package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"vidpress/internal/catalog"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <asset-id>",
		Short: "Show one asset's full record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid asset id %q: %w", args[0], err)
			}

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := catalog.OpenReadOnly(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			asset, err := store.GetAsset(cmd.Context(), id)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			rows := [][]string{
				{"Title", asset.Title},
				{"Status", string(asset.Status)},
				{"File", asset.FileName},
				{"Content type", asset.ContentType},
				{"Size", formatSize(asset.SizeBytes)},
				{"Storage key", asset.StorageKey},
				{"Public URL", asset.PublicURL},
				{"Stream asset", asset.StreamAssetID},
				{"Thumbnail", asset.ThumbnailURL},
				{"Step", asset.ProgressStep},
				{"Progress", fmt.Sprintf("%.0f%%", asset.ProgressPercent)},
				{"Created", asset.CreatedAt.Format("2006-01-02 15:04:05")},
				{"Updated", asset.UpdatedAt.Format("2006-01-02 15:04:05")},
			}
			if asset.TranscriptionState != catalog.TranscriptionNone {
				rows = append(rows, []string{"Transcription", string(asset.TranscriptionState)})
			}
			if asset.SpeakerCount > 0 {
				rows = append(rows, []string{"Speakers", fmt.Sprintf("%d", asset.SpeakerCount)})
			}
			if asset.CaptionURL != "" {
				rows = append(rows, []string{"Captions", asset.CaptionURL})
			}
			if asset.ErrorMessage != "" {
				rows = append(rows, []string{"Error", asset.ErrorMessage})
			}
			fmt.Fprintln(out, renderTable([]string{"Field", "Value"}, rows))
			return nil
		},
	}
}
