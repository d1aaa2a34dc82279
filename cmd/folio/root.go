package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/folio/internal/app"
)

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath string
	root       string
	logLevel   string
	logFormat  string
}

func newRootCommand(version, commit, date string) *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "folio",
		Short: "Folio site host and plugin manager",
		Long: `Folio hosts a web-publishing site and manages its plugins.

Plugins live in the configured plugin paths as directories holding a
package.json manifest. Each plugin is prepared, loaded and initialized
with its merged configuration; its public directory is served under the
plugin static prefix.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "Path to site configuration file")
	flags.StringVar(&opts.root, "root", ".", "Site root directory")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level (trace, debug, info, warn, error, disabled)")
	flags.StringVar(&opts.logFormat, "log-format", "", "Log format (auto, json, console)")

	cmd.AddCommand(
		newServeCommand(opts),
		newInitCommand(opts),
		newInspectCommand(opts),
		newNewCommand(opts),
	)
	return cmd
}

// newApp builds the application from the persistent flags. Logs go to the
// command's error stream.
func (o *rootOptions) newApp(cmd *cobra.Command) (*app.Application, error) {
	return app.New(app.Options{
		ConfigPath: o.configPath,
		Root:       o.root,
		LogOutput:  cmd.ErrOrStderr(),
		LogLevel:   o.logLevel,
		LogFormat:  o.logFormat,
	})
}
