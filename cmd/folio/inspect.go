package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"

	"github.com/dshills/folio/internal/app"
	"github.com/dshills/folio/internal/plugin"
)

func newInspectCommand(opts *rootOptions) *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "inspect <plugin-name>",
		Short: "Show a plugin's manifest and merged configuration",
		Long: `Locate a plugin, prepare it without loading its entry module and print
the result as JSON: the manifest, the resolved entry path, the local
config file and the merged configuration.`,
		Example: `  # Inspect the comments plugin
  folio inspect comments

  # Compact output for scripts
  folio inspect comments --raw`,
		Aliases: []string{"info"},
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := opts.newApp(cmd)
			if err != nil {
				return err
			}
			defer application.Close()

			out, err := inspectPlugin(cmd, application, args[0])
			if err != nil {
				return err
			}
			if !raw {
				out = pretty.Pretty(out)
				if app.IsTerminal(cmd.OutOrStdout()) {
					out = pretty.Color(out, nil)
				}
			} else {
				out = append(pretty.Ugly(out), '\n')
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}

	cmd.Flags().BoolVar(&raw, "raw", false, "Print compact JSON")
	return cmd
}

func inspectPlugin(cmd *cobra.Command, application *app.Application, name string) ([]byte, error) {
	dir, err := application.Locator().Find(name)
	if err != nil {
		return nil, err
	}

	h, err := plugin.New(name, dir, application,
		plugin.WithNamespace(application.Config().Plugins.Namespace),
		plugin.WithStaticPrefix(application.Config().Plugins.StaticPrefix),
	)
	if err != nil {
		return nil, err
	}
	prepared, err := h.Prepare(cmd.Context())
	if err != nil {
		return nil, fmt.Errorf("inspecting %s: %w", name, err)
	}

	m := prepared.Package
	doc := []byte(`{}`)
	fields := []struct {
		path  string
		value any
	}{
		{"name", h.Name()},
		{"dir", h.Dir()},
		{"manifest", h.ManifestPath()},
		{"package.name", m.Name},
		{"package.version", m.Version},
		{"package.description", m.Description},
		{"main", prepared.Main},
		{"localConfig", prepared.LocalConfig},
		{"mountPath", h.StaticMountPath()},
		{"config", prepared.Config},
		{"templates", m.Section.Templates},
		{"assets.styles", m.Section.Assets.Styles},
		{"assets.scripts", m.Section.Assets.Scripts},
	}
	for _, f := range fields {
		if isZero(f.value) {
			continue
		}
		if doc, err = sjson.SetBytes(doc, f.path, f.value); err != nil {
			return nil, fmt.Errorf("encoding %s: %w", f.path, err)
		}
	}
	return doc, nil
}

func isZero(v any) bool {
	switch v := v.(type) {
	case string:
		return v == ""
	case []string:
		return len(v) == 0
	case nil:
		return true
	}
	return false
}
