package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"vidpress/internal/catalog"
)

func newResolveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <asset-id>",
		Short: "Resolve a working playback URL for an asset",
		Long: "Walks the delivery source cascade (managed CDN, object storage, " +
			"API lookup) and reports the first playable URL.",
		Args: cobra.ExactArgs(1),
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

			pipe, err := buildPipeline(ctx, store)
			if err != nil {
				return err
			}

			resolution, resolveErr := pipe.resolver.Resolve(cmd.Context(), asset)

			out := cmd.OutOrStdout()
			if resolution != nil {
				rows := make([][]string, 0, len(resolution.Attempts))
				for _, attempt := range resolution.Attempts {
					outcome := attempt.Reason
					if attempt.OK {
						outcome = "ok"
					} else if attempt.TimedOut {
						outcome = "timeout: " + outcome
					}
					rows = append(rows, []string{
						string(attempt.Kind),
						outcome,
						attempt.Duration.Round(time.Millisecond).String(),
					})
				}
				fmt.Fprintln(out, renderTable([]string{"Source", "Outcome", "Duration"}, rows, 3))
			}
			if resolveErr != nil {
				return resolveErr
			}

			fmt.Fprintf(out, "\nPlayback via %s:\n%s\n", resolution.Kind, resolution.URL)
			return nil
		},
	}
}
