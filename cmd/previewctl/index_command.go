package main

import (
	"strconv"
	"time"

	"asset-preview/internal/database"
	"asset-preview/internal/indexer"

	"github.com/spf13/cobra"
)

type indexResult struct {
	Library  string        `json:"library"`
	Indexed  int64         `json:"indexed"`
	Removed  int64         `json:"removed"`
	Folders  int64         `json:"folders"`
	Duration time.Duration `json:"duration"`
}

func newIndexCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "index",
		Short: "Walk the library once, recording basic metadata and dropping vanished assets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngine(cmd.Context(), func(s *engineSession) error {
				idx := indexer.New(s.eng, s.db, s.cfg.LibraryDir, 0)
				start := time.Now()
				if err := idx.Index(cmd.Context()); err != nil {
					return err
				}
				health := idx.GetHealthStatus()
				out := indexResult{
					Library:  s.cfg.LibraryDir,
					Indexed:  health.AssetsIndexed,
					Removed:  health.AssetsRemoved,
					Folders:  health.FoldersIndexed,
					Duration: time.Since(start),
				}
				return writeOutput(cmd, ctx, out, func() string {
					return renderFields(cmd.OutOrStdout(), [][2]string{
						{"Library", out.Library},
						{"Assets indexed", strconv.FormatInt(out.Indexed, 10)},
						{"Assets removed", strconv.FormatInt(out.Removed, 10)},
						{"Folders", strconv.FormatInt(out.Folders, 10)},
						{"Duration", out.Duration.Round(time.Millisecond).String()},
					})
				})
			})
		},
	}
}

type statusResult struct {
	Library      string     `json:"library"`
	Database     string     `json:"database"`
	BasicRecords int        `json:"basicRecords"`
	FullRecords  int        `json:"fullRecords"`
	Reports      int        `json:"cleanupReports"`
	LastIndexRun *time.Time `json:"lastIndexRun,omitempty"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show catalog counts and the last index run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withDatabase(cmd.Context(), func(db *database.Database) error {
				counts, err := db.Counts(cmd.Context())
				if err != nil {
					return err
				}
				last, err := db.GetLastIndexRun(cmd.Context())
				if err != nil {
					return err
				}

				out := statusResult{
					Library:      ctx.config.LibraryDir,
					Database:     db.Path(),
					BasicRecords: counts.Basic,
					FullRecords:  counts.Full,
					Reports:      counts.Reports,
				}
				lastRun := "never"
				if !last.IsZero() {
					out.LastIndexRun = &last
					lastRun = last.Local().Format(time.RFC3339)
				}

				return writeOutput(cmd, ctx, out, func() string {
					return renderFields(cmd.OutOrStdout(), [][2]string{
						{"Library", out.Library},
						{"Database", out.Database},
						{"Basic records", strconv.Itoa(out.BasicRecords)},
						{"Full records", strconv.Itoa(out.FullRecords)},
						{"Cleanup reports", strconv.Itoa(out.Reports)},
						{"Last index run", lastRun},
					})
				})
			})
		},
	}
}
