package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"asset-preview/internal/cleanup"
	"asset-preview/internal/database"

	"github.com/spf13/cobra"
)

func newReportCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "report <asset>",
		Short: "Show stored cleanup reports for an asset, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 1 {
				return fmt.Errorf("limit must be positive, got %d", limit)
			}
			// Reports outlive the file, so the asset need not exist.
			path, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			return ctx.withDatabase(cmd.Context(), func(db *database.Database) error {
				reports, err := db.ListReports(cmd.Context(), path, limit)
				if err != nil {
					return err
				}
				if reports == nil {
					reports = []*cleanup.Report{}
				}
				return writeOutput(cmd, ctx, reports, func() string {
					if len(reports) == 0 {
						return "No cleanup reports for " + path
					}
					return renderTable(cmd.OutOrStdout(),
						[]string{"Started", "Namespace", "State", "Escalated", "Deleted", "Phases"},
						reportRows(reports),
						[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft})
				})
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Maximum number of reports")
	return cmd
}

func reportRows(reports []*cleanup.Report) [][]string {
	rows := make([][]string, len(reports))
	for i, r := range reports {
		phases := make([]string, len(r.Phases))
		for j, p := range r.Phases {
			phases[j] = string(p.Phase)
			if p.Err != "" {
				phases[j] += "!"
			}
		}
		rows[i] = []string{
			r.StartedAt.Format(time.RFC3339),
			r.Namespace,
			string(r.State),
			strconv.FormatBool(r.Escalated),
			strconv.Itoa(r.Deleted),
			strings.Join(phases, " "),
		}
	}
	return rows
}
