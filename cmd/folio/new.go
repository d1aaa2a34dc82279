package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"

	"github.com/dshills/folio/internal/config"
	"github.com/dshills/folio/internal/plugin"
)

const initLua = `-- %s plugin entry.
return function(config, host, done)
  host:log("initializing %s")
  done()
end
`

func newNewCommand(opts *rootOptions) *cobra.Command {
	var (
		dir           string
		pluginVersion string
		force         bool
	)

	cmd := &cobra.Command{
		Use:   "new <plugin-name>",
		Short: "Scaffold a new Lua plugin",
		Long: `Create a plugin directory holding a package.json manifest, an init.lua
entry module and an empty public directory. The directory is created in
the first configured plugin path unless --dir is given.`,
		Example: `  # Create plugins/comments
  folio new comments

  # Create the plugin somewhere else
  folio new comments --dir ./vendor/plugins`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if name == "" || strings.ContainsAny(name, `/\"`) || name == "." || name == ".." {
				return fmt.Errorf("invalid plugin name %q", name)
			}

			base := dir
			if base == "" {
				cfg, err := config.Load(opts.configPath, config.WithRoot(opts.root))
				if err != nil {
					return err
				}
				paths := cfg.PluginSearchPaths(opts.root)
				if len(paths) == 0 {
					return errors.New("no plugin paths configured; use --dir")
				}
				base = paths[0]
			}

			target := filepath.Join(base, name)
			if err := scaffold(target, name, pluginVersion, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created plugin %s in %s\n", name, target)
			return nil
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", "", "Directory to create the plugin in")
	cmd.Flags().StringVar(&pluginVersion, "plugin-version", "0.1.0", "Initial plugin version")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing manifest")
	return cmd
}

// scaffold writes the manifest, entry module and public directory of a
// new plugin into target.
func scaffold(target, name, version string, force bool) error {
	manifestPath := filepath.Join(target, plugin.ManifestFile)
	if _, err := os.Stat(manifestPath); err == nil && !force {
		return fmt.Errorf("%s already exists", manifestPath)
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	manifest, err := newManifest(name, version)
	if err != nil {
		return err
	}
	if _, err := plugin.ParseManifest(manifest, plugin.DefaultNamespace); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Join(target, plugin.PublicDir), 0755); err != nil {
		return err
	}
	if err := os.WriteFile(manifestPath, manifest, 0644); err != nil {
		return err
	}
	entry := filepath.Join(target, "init.lua")
	if _, err := os.Stat(entry); errors.Is(err, fs.ErrNotExist) || force {
		if err := os.WriteFile(entry, []byte(fmt.Sprintf(initLua, name, name)), 0644); err != nil {
			return err
		}
	}
	return nil
}

func newManifest(name, version string) ([]byte, error) {
	doc := []byte(`{}`)
	var err error
	set := func(path string, value any) {
		if err == nil {
			doc, err = sjson.SetBytes(doc, path, value)
		}
	}
	set("name", name)
	set("version", version)
	set("main", "init.lua")
	set(plugin.DefaultNamespace+".config", map[string]any{})
	set(plugin.DefaultNamespace+".assets.styles", []string{})
	if err != nil {
		return nil, err
	}
	return pretty.Pretty(doc), nil
}
