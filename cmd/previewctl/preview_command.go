package main

import (
	"fmt"

	"asset-preview/internal/assets"
	"asset-preview/internal/scheduler"

	"github.com/spf13/cobra"
)

const (
	sourceCapture = "capture"
	sourceGeneric = "generic"
)

type previewResult struct {
	Asset  string `json:"asset"`
	Source string `json:"source,omitempty"`
	Image  string `json:"image,omitempty"`
	Error  string `json:"error,omitempty"`

	ref    assets.AssetRef
	queued bool
}

func newPreviewCommand(ctx *commandContext) *cobra.Command {
	var size int
	var force bool

	cmd := &cobra.Command{
		Use:   "preview <asset>...",
		Short: "Capture previews, falling back to the generic icon",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngine(cmd.Context(), func(s *engineSession) error {
				if size == 0 {
					size = s.defaultSize()
				}
				if size < 1 || size > s.eng.MasterSize() {
					return fmt.Errorf("size must be between 1 and %d", s.eng.MasterSize())
				}

				results := make([]previewResult, len(args))
				pending := 0
				for i, arg := range args {
					results[i].Asset = arg
					ref, err := assetRef(arg)
					if err != nil {
						results[i].Error = err.Error()
						continue
					}
					results[i].ref = ref
					results[i].Asset = ref.Path
					err = s.eng.RequestPreview(cmd.Context(), ref, size, force, func(_ scheduler.Request, res scheduler.Result) {
						pending--
						results[i].Image = res.Path
						if res.Err != nil {
							results[i].Error = res.Err.Error()
						}
					})
					if err != nil {
						results[i].Error = err.Error()
						continue
					}
					results[i].queued = true
					pending++
				}

				if err := s.await(cmd.Context(), func() bool { return pending == 0 }); err != nil {
					return err
				}

				failed := 0
				for i := range results {
					r := &results[i]
					switch {
					case r.Image != "":
						r.Source = sourceCapture
					case r.queued:
						icon, err := s.eng.GenericIcon(r.ref.Type, size)
						if err != nil {
							r.Error = fmt.Sprintf("generic icon: %v", err)
							failed++
							continue
						}
						r.Image = icon
						r.Source = sourceGeneric
					default:
						failed++
					}
				}

				if err := writeOutput(cmd, ctx, results, func() string {
					rows := make([][]string, len(results))
					for i, r := range results {
						rows[i] = []string{r.Asset, r.Source, r.Image, r.Error}
					}
					return renderTable(cmd.OutOrStdout(), []string{"Asset", "Source", "Image", "Error"}, rows, nil)
				}); err != nil {
					return err
				}
				if failed > 0 {
					return fmt.Errorf("%d of %d assets could not be previewed", failed, len(results))
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&size, "size", "s", 0, "Preview edge length in pixels (default: largest configured size)")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Recapture even when a cached preview is current")
	return cmd
}
