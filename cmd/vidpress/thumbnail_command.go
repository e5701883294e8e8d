package main

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"vidpress/internal/catalog"
	"vidpress/internal/transcode"
)

// newThumbnailCommand changes the thumbnail of an already published asset.
// During publish the same choice is made through the --thumbnail flags.
func newThumbnailCommand(ctx *commandContext) *cobra.Command {
	var (
		timestamp float64
		image     string
	)

	cmd := &cobra.Command{
		Use:   "thumbnail <asset-id>",
		Short: "Set the thumbnail for a published asset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid asset id %q: %w", args[0], err)
			}

			hasTimestamp := cmd.Flags().Changed("timestamp")
			hasImage := cmd.Flags().Changed("image")
			if hasTimestamp == hasImage {
				return errors.New("provide exactly one of --timestamp or --image")
			}
			if hasTimestamp && timestamp < 0 {
				return errors.New("--timestamp must not be negative")
			}
			if hasImage && image == "" {
				return errors.New("--image requires a URL")
			}

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			client, err := transcode.NewFromConfig(cfg)
			if err != nil {
				if errors.Is(err, transcode.ErrNotConfigured) {
					return errors.New("no transcoder configured; set transcoder.base_url first")
				}
				return err
			}

			store, err := catalog.Open(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			asset, err := store.GetAsset(cmd.Context(), id)
			if err != nil {
				return err
			}
			if asset.StreamAssetID == "" {
				return fmt.Errorf("asset %s has no stream yet; thumbnails require a transcoded asset", id)
			}

			if hasTimestamp {
				if err := client.SetThumbnailTimestamp(cmd.Context(), asset.StreamAssetID, timestamp); err != nil {
					return err
				}
				asset.ThumbnailURL = client.DefaultThumbnailURL(asset.StreamAssetID)
			} else {
				if err := client.SetThumbnailImage(cmd.Context(), asset.StreamAssetID, image); err != nil {
					return err
				}
				asset.ThumbnailURL = image
			}

			if err := store.UpdateAsset(cmd.Context(), asset); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Thumbnail updated:\n%s\n", asset.ThumbnailURL)
			return nil
		},
	}

	cmd.Flags().Float64Var(&timestamp, "timestamp", 0, "Offset in seconds to cut the thumbnail frame from")
	cmd.Flags().StringVar(&image, "image", "", "Image URL to use as the thumbnail")

	return cmd
}
