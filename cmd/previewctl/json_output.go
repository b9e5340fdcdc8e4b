package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeOutput prints v as JSON when requested, else the rendered table.
func writeOutput(cmd *cobra.Command, ctx *commandContext, v any, render func() string) error {
	if ctx.jsonOutput() {
		return writeJSON(cmd, v)
	}
	_, err := fmt.Fprintln(cmd.OutOrStdout(), render())
	return err
}
