package main

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/dshills/folio/internal/plugin"
)

func newInitCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init [plugin-name...]",
		Short: "Initialize plugins and report the results",
		Long: `Initialize the named plugins, or every enabled plugin when none are
named, and print a table of results. The command fails when any plugin
fails to initialize.`,
		Example: `  # Initialize all plugins
  folio init

  # Initialize two plugins
  folio init comments search`,
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := opts.newApp(cmd)
			if err != nil {
				return err
			}
			defer application.Close()

			results, initErr := application.InitializePlugins(cmd.Context(), args...)
			if len(results) == 0 && initErr == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "No plugins found.")
				return nil
			}
			writeResults(cmd.OutOrStdout(), results)
			fmt.Fprintln(cmd.OutOrStdout(), application.Manager().Summary())
			return initErr
		},
	}
	return cmd
}

func writeResults(w io.Writer, results []*plugin.Result) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Plugin", "State", "Duration", "Error"})
	for _, r := range results {
		msg := ""
		if r.Err != nil {
			msg = r.Err.Error()
		}
		t.AppendRow(table.Row{r.Name, r.State, r.Duration.Round(time.Millisecond), msg})
	}
	style := table.StyleLight
	style.Options.DrawBorder = false
	t.SetStyle(style)
	t.Render()
}
