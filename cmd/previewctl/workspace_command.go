package main

import (
	"errors"

	"asset-preview/internal/cleanup"
	"asset-preview/internal/metadata"
	"asset-preview/internal/scheduler"

	"github.com/spf13/cobra"
)

type workspaceResult struct {
	Asset    string           `json:"asset"`
	Source   string           `json:"source"`
	Image    string           `json:"image"`
	Error    string           `json:"error,omitempty"`
	Metadata *metadata.Record `json:"metadata,omitempty"`
	Cleanup  *cleanup.Report  `json:"cleanup,omitempty"`
}

func newWorkspaceCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "workspace <asset>",
		Short: "Bring an asset into the workspace: full metadata and a forced capture",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := assetRef(args[0])
			if err != nil {
				return err
			}
			return ctx.withEngine(cmd.Context(), func(s *engineSession) error {
				var (
					res  scheduler.Result
					done bool
				)
				err := s.eng.OnAssetBroughtIntoWorkspace(cmd.Context(), ref, func(_ scheduler.Request, r scheduler.Result) {
					res, done = r, true
				})
				if err != nil {
					return err
				}
				if err := s.await(cmd.Context(), func() bool { return done }); err != nil {
					return err
				}

				out := workspaceResult{Asset: ref.Path, Source: sourceCapture, Image: res.Path}
				if res.Err != nil {
					out.Error = res.Err.Error()
				}
				if out.Image == "" {
					out.Source = sourceGeneric
					if out.Image, err = s.eng.GenericIcon(ref.Type, s.eng.MasterSize()); err != nil {
						return err
					}
				}
				if rec, err := s.db.GetMetadata(cmd.Context(), ref.Path); err == nil {
					out.Metadata = rec
				} else if !errors.Is(err, metadata.ErrNotFound) {
					return err
				}
				if report, ok, err := s.eng.CleanupReport(cmd.Context(), ref); err != nil {
					return err
				} else if ok {
					out.Cleanup = report
				}

				return writeOutput(cmd, ctx, out, func() string {
					fields := [][2]string{
						{"Source", out.Source},
						{"Image", out.Image},
					}
					if out.Error != "" {
						fields = append(fields, [2]string{"Error", out.Error})
					}
					if out.Metadata != nil {
						fields = append(fields, recordFields(out.Metadata)...)
					}
					if out.Cleanup != nil {
						fields = append(fields, [2]string{"Cleanup", out.Cleanup.Summary()})
					}
					return renderFields(cmd.OutOrStdout(), fields)
				})
			})
		},
	}
}
