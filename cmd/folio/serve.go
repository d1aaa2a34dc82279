package main

import (
	"github.com/spf13/cobra"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Initialize plugins and serve the site",
		Long: `Initialize every enabled plugin and serve plugin public directories
and the status endpoint until interrupted. Plugins that fail to
initialize are logged and skipped.`,
		Example: `  # Serve the site in the current directory
  folio serve

  # Serve another site on a different address
  folio serve --root ./site --listen 127.0.0.1:9000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			application, err := opts.newApp(cmd)
			if err != nil {
				return err
			}
			defer application.Close()

			if listen != "" {
				application.Config().Site.Listen = listen
			}
			return application.Serve(cmd.Context())
		},
	}

	cmd.Flags().StringVarP(&listen, "listen", "l", "", "Listen address (overrides site.listen)")
	return cmd
}
