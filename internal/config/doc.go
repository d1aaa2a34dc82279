// Package config provides the site configuration for Folio.
//
// Configuration is organized in layers with higher layers overriding lower:
//
//	┌─────────────────────────────┐
//	│  3. Environment Variables   │  ← FOLIO_*, highest priority
//	├─────────────────────────────┤
//	│  2. Site File               │  ← folio.toml / folio.yaml
//	├─────────────────────────────┤
//	│  1. Built-in Defaults       │  ← Lowest priority
//	└─────────────────────────────┘
//
// The merged map is decoded into a typed Config and validated.
//
// # Sub-packages
//
//   - layer: deep merge and layered precedence of configuration maps
//   - loader: configuration file loading (TOML, YAML, environment variables)
//
// # Plugin configuration
//
// Per-plugin fragments live under the pluginConfigs table:
//
//	[pluginConfigs.comments]
//	perPage = 5
//
// The host hands a deep copy of a plugin's fragment to the plugin lifecycle,
// where it takes precedence over the plugin's own defaults.
package config
