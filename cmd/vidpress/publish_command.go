package main

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"vidpress/internal/catalog"
	"vidpress/internal/config"
	"vidpress/internal/publish"
	"vidpress/internal/thumbgate"
)

func newPublishCommand(ctx *commandContext) *cobra.Command {
	var (
		title          string
		description    string
		contentType    string
		storageKey     string
		thumbMethod    string
		thumbTimestamp float64
		thumbImage     string
	)

	cmd := &cobra.Command{
		Use:   "publish [file]",
		Short: "Publish a video through the full pipeline",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			req := publish.Request{
				Title:       title,
				Description: description,
				StorageKey:  strings.TrimSpace(storageKey),
			}

			if len(args) == 1 {
				path, err := config.ExpandPath(args[0])
				if err != nil {
					return err
				}
				file, err := os.Open(path)
				if err != nil {
					return fmt.Errorf("open source file: %w", err)
				}
				defer file.Close()
				info, err := file.Stat()
				if err != nil {
					return fmt.Errorf("inspect source file: %w", err)
				}
				req.FileName = filepath.Base(path)
				req.SizeBytes = info.Size()
				req.Source = file
				req.ContentType = contentType
				if req.ContentType == "" {
					req.ContentType = mime.TypeByExtension(filepath.Ext(path))
				}
			} else if req.StorageKey == "" {
				return fmt.Errorf("either a file argument or --storage-key is required")
			}

			gate, err := gateFromFlags(thumbMethod, thumbTimestamp, thumbImage)
			if err != nil {
				return err
			}
			req.Thumbnail = gate

			out := cmd.OutOrStdout()
			colorize := writerSupportsColor(out)
			req.Observers = []publish.Observer{newStepPrinter(out, colorize)}

			store, err := catalog.Open(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			pipe, err := buildPipeline(ctx, store)
			if err != nil {
				return err
			}

			receipt, err := pipe.orchestrator.Run(cmd.Context(), req)
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "\nPublished %s\n", receipt.AssetID)
			if receipt.PlaybackURL != "" {
				fmt.Fprintf(out, "Playback:  %s\n", receipt.PlaybackURL)
			}
			if receipt.ThumbnailURL != "" {
				fmt.Fprintf(out, "Thumbnail: %s\n", receipt.ThumbnailURL)
			}
			if receipt.Transcription != "" {
				fmt.Fprintf(out, "Transcription: %s\n", receipt.Transcription)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&title, "title", "t", "", "Asset title (required)")
	cmd.Flags().StringVarP(&description, "description", "d", "", "Asset description")
	cmd.Flags().StringVar(&contentType, "content-type", "", "Override the detected content type")
	cmd.Flags().StringVar(&storageKey, "storage-key", "", "Reuse an already stored object instead of uploading")
	cmd.Flags().StringVar(&thumbMethod, "thumbnail", "auto", "Thumbnail strategy: auto, timestamp, or custom")
	cmd.Flags().Float64Var(&thumbTimestamp, "thumbnail-timestamp", 0, "Offset in seconds for the timestamp strategy")
	cmd.Flags().StringVar(&thumbImage, "thumbnail-image", "", "Image URL for the custom strategy")

	return cmd
}

// gateFromFlags resolves the thumbnail decision up front so headless runs
// never block on the gate.
func gateFromFlags(method string, timestamp float64, image string) (*thumbgate.Gate, error) {
	choice := thumbgate.Choice{Method: thumbgate.Method(strings.ToLower(strings.TrimSpace(method)))}
	if choice.Method == "" {
		choice.Method = thumbgate.MethodAuto
	}
	choice.TimestampSeconds = timestamp
	choice.CustomImageRef = strings.TrimSpace(image)

	gate := thumbgate.New()
	if err := gate.Resolve(choice); err != nil {
		return nil, err
	}
	return gate, nil
}
