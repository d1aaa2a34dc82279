package app

import (
	"github.com/dshills/folio/internal/event"
	"github.com/dshills/folio/internal/plugin"
)

// PluginConfig returns the site's configuration fragment for a plugin.
func (app *Application) PluginConfig(name string) map[string]any {
	app.mu.RLock()
	defer app.mu.RUnlock()
	return app.config.PluginConfig(name)
}

// SetPluginConfig replaces a plugin's fragment. Handles created afterwards
// see the new value.
func (app *Application) SetPluginConfig(name string, fragment map[string]any) {
	app.mu.Lock()
	defer app.mu.Unlock()
	app.config.SetPluginConfig(name, fragment)
}

// Log writes a plugin lifecycle message.
func (app *Application) Log(level plugin.LogLevel, msg string) {
	app.log.WithComponent("plugins").Plugin(level, msg)
}

// Emit publishes an event on the bus.
func (app *Application) Emit(name string, args ...any) {
	app.bus.Publish(name, args...)
}

// Subscribe registers fn for events matching pattern.
func (app *Application) Subscribe(pattern string, fn func(name string, args ...any)) func() {
	sub, err := app.bus.SubscribeFunc(pattern, func(e event.Event) {
		fn(e.Name, e.Args...)
	})
	if err != nil {
		app.log.Error().Err(err).Str("pattern", pattern).Msg("subscribe failed")
		return func() {}
	}
	return func() {
		_ = app.bus.Unsubscribe(sub)
	}
}

// AddStaticPath mounts a plugin's public directory on the server.
func (app *Application) AddStaticPath(mountPath, localDir string) {
	app.metrics.RecordMount()
	app.server.AddStaticPath(mountPath, localDir)
}

// HandleBundleConfig records a plugin's manifest section.
func (app *Application) HandleBundleConfig(section plugin.Section, pluginPath string) {
	app.mu.Lock()
	app.bundles[pluginPath] = section
	app.mu.Unlock()

	app.log.Debug().
		Str("plugin", pluginPath).
		Int("templates", len(section.Templates)).
		Msg("bundle config registered")
}

// Bundle returns the section registered for the plugin at pluginPath.
func (app *Application) Bundle(pluginPath string) (plugin.Section, bool) {
	app.mu.RLock()
	defer app.mu.RUnlock()
	s, ok := app.bundles[pluginPath]
	return s, ok
}

// AddAssets registers a plugin's declared assets.
func (app *Application) AddAssets(name string, assets plugin.Assets) {
	app.mu.Lock()
	defer app.mu.Unlock()
	app.assets[name] = assets
}

// Assets returns the assets registered by each plugin.
func (app *Application) Assets() map[string]plugin.Assets {
	app.mu.RLock()
	defer app.mu.RUnlock()
	out := make(map[string]plugin.Assets, len(app.assets))
	for k, v := range app.assets {
		out[k] = v
	}
	return out
}
