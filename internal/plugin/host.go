package plugin

// LogLevel is a host log level.
type LogLevel string

// Log levels used by the lifecycle. LevelLog marks success messages.
const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelLog   LogLevel = "log"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// Host is the application that owns plugins. Implementations must accept
// concurrent calls from handles initializing in parallel.
type Host interface {
	// PluginConfig returns the host's configuration fragment for a plugin.
	// A nil map means none is configured.
	PluginConfig(name string) map[string]any

	// Log writes a message at the given level.
	Log(level LogLevel, msg string)

	// Emit publishes an event with arguments.
	Emit(event string, args ...any)
}

// StaticMounter is implemented by hosts that serve per-plugin static files.
type StaticMounter interface {
	AddStaticPath(mountPath, localDir string)
}

// BundleConfigHandler is implemented by hosts that consume the manifest's
// namespaced section at prepare time.
type BundleConfigHandler interface {
	HandleBundleConfig(section Section, pluginPath string)
}

// AssetRegistrar is implemented by hosts with an asset pipeline.
type AssetRegistrar interface {
	AddAssets(plugin string, assets Assets)
}

// EventSubscriber is implemented by hosts whose event bus accepts
// wildcard subscriptions.
type EventSubscriber interface {
	Subscribe(pattern string, fn func(event string, args ...any)) (unsubscribe func())
}

// LoadedEventPrefix prefixes the event emitted when a plugin finishes
// initializing.
const LoadedEventPrefix = "plugin-loaded:"

// LoadedEvent returns the event name emitted for the named plugin.
func LoadedEvent(name string) string {
	return LoadedEventPrefix + name
}
