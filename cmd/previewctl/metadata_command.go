package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"asset-preview/internal/metadata"

	"github.com/spf13/cobra"
)

func newMetadataCommand(ctx *commandContext) *cobra.Command {
	var tierFlag string

	cmd := &cobra.Command{
		Use:   "metadata <asset>",
		Short: "Extract and store asset metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tier, ok := metadata.ParseTier(tierFlag)
			if !ok {
				return fmt.Errorf("unknown tier %q, want %q or %q", tierFlag, metadata.TierBasic, metadata.TierFull)
			}
			ref, err := assetRef(args[0])
			if err != nil {
				return err
			}
			return ctx.withEngine(cmd.Context(), func(s *engineSession) error {
				rec, err := s.eng.RequestMetadata(cmd.Context(), ref, tier)
				if err != nil {
					return err
				}
				return writeOutput(cmd, ctx, rec, func() string {
					return renderFields(cmd.OutOrStdout(), recordFields(rec))
				})
			})
		},
	}

	cmd.Flags().StringVarP(&tierFlag, "tier", "t", string(metadata.TierBasic), "Extraction depth: basic or full")
	return cmd
}

func recordFields(rec *metadata.Record) [][2]string {
	fields := [][2]string{
		{"Asset", rec.AssetPath},
		{"Tier", string(rec.Tier)},
		{"Type", string(rec.Basic.Type)},
		{"Size", strconv.FormatInt(rec.Basic.Size, 10)},
		{"Modified", rec.Basic.ModTime.Format(time.RFC3339)},
		{"Fingerprint", rec.Fingerprint},
		{"Extracted", rec.ExtractedAt.Format(time.RFC3339)},
	}
	full := rec.Full
	if full == nil {
		return fields
	}

	fields = append(fields,
		[2]string{"Nodes", strconv.Itoa(full.Nodes)},
		[2]string{"Meshes", strconv.Itoa(full.Meshes)},
		[2]string{"Vertices", strconv.Itoa(full.Vertices)},
		[2]string{"Faces", strconv.Itoa(full.Faces)},
		[2]string{"Triangles", strconv.Itoa(full.Triangles)},
		[2]string{"Materials", strconv.Itoa(full.Materials)},
		[2]string{"Textures", fmt.Sprintf("%d %s", full.TextureRefs, strings.Join(full.Textures, ", "))},
	)
	if full.Animated {
		fields = append(fields, [2]string{"Animation", fmt.Sprintf("%d curves, frames %g-%g", full.AnimationCurves, full.FirstFrame, full.LastFrame)})
	}
	for _, c := range full.Cameras {
		kind := fmt.Sprintf("%gmm", c.FocalLength)
		if c.Orthographic {
			kind = "orthographic"
		}
		fields = append(fields, [2]string{"Camera", fmt.Sprintf("%s (%s)", c.Name, kind)})
	}
	for _, l := range full.Lights {
		fields = append(fields, [2]string{"Light", fmt.Sprintf("%s (%s, %g)", l.Name, l.Type, l.Intensity)})
	}
	return fields
}
