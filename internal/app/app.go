// Package app wires the Folio host together: site configuration, the
// logger, the event bus, the static file server and the plugin manager.
// Application implements plugin.Host and its optional extensions.
package app

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dshills/folio/internal/config"
	"github.com/dshills/folio/internal/event"
	"github.com/dshills/folio/internal/plugin"
	"github.com/dshills/folio/internal/server"
)

var (
	_ plugin.Host                = (*Application)(nil)
	_ plugin.StaticMounter       = (*Application)(nil)
	_ plugin.BundleConfigHandler = (*Application)(nil)
	_ plugin.AssetRegistrar      = (*Application)(nil)
	_ plugin.EventSubscriber     = (*Application)(nil)
)

// Application is the plugin host.
type Application struct {
	mu sync.RWMutex

	// Core infrastructure
	config  *config.Config
	root    string
	log     *Logger
	bus     *event.Bus
	metrics *Metrics

	// Site components
	server  *server.Server
	locator *plugin.Locator
	manager *plugin.Manager

	// Registered by plugins during prepare
	bundles map[string]plugin.Section
	assets  map[string]plugin.Assets

	running atomic.Bool
}

// Options configures the application.
type Options struct {
	// ConfigPath is the site config file. Empty searches Root.
	ConfigPath string

	// Config is used as is instead of loading ConfigPath.
	Config *config.Config

	// Root is the site root directory. Defaults to ".".
	Root string

	// LogOutput is where logs are written. Defaults to os.Stderr.
	LogOutput io.Writer

	// LogLevel and LogFormat override the configured values when set.
	LogLevel  string
	LogFormat string

	// Loader overrides the plugin module loader.
	Loader plugin.ModuleLoader
}

// New creates an application from opts.
func New(opts Options) (*Application, error) {
	if opts.Root == "" {
		opts.Root = "."
	}

	cfg := opts.Config
	if cfg == nil {
		var err error
		cfg, err = config.Load(opts.ConfigPath, config.WithRoot(opts.Root))
		if err != nil {
			return nil, &InitError{Component: "config", Err: err}
		}
	}

	level, format := cfg.Log.Level, cfg.Log.Format
	if opts.LogLevel != "" {
		level = opts.LogLevel
	}
	if opts.LogFormat != "" {
		format = opts.LogFormat
	}
	logger, err := NewLogger(LoggerConfig{Level: level, Format: format, Output: opts.LogOutput})
	if err != nil {
		return nil, &InitError{Component: "logger", Err: err}
	}

	app := &Application{
		config:  cfg,
		root:    opts.Root,
		log:     logger,
		metrics: NewMetrics(),
		bundles: make(map[string]plugin.Section),
		assets:  make(map[string]plugin.Assets),
	}

	busLog := logger.WithComponent("event")
	app.bus = event.NewBus(event.WithPanicHandler(func(err *event.PanicError) {
		busLog.Error().Str("topic", err.Topic).Interface("panic", err.Value).Msg("event handler panicked")
	}))
	if _, err := app.bus.SubscribeFunc("*", func(event.Event) {
		app.metrics.RecordEvent()
	}, event.WithPriority(event.PriorityHigh)); err != nil {
		return nil, &InitError{Component: "event bus", Err: err}
	}

	app.server = server.New(
		server.WithLogger(logger.WithComponent("server").Logger),
		server.WithStatus(func() any { return app.Status() }),
	)

	handleOpts := []plugin.Option{
		plugin.WithNamespace(cfg.Plugins.Namespace),
		plugin.WithStaticPrefix(cfg.Plugins.StaticPrefix),
		plugin.WithInitTimeout(cfg.Plugins.InitTimeout),
	}
	if opts.Loader != nil {
		handleOpts = append(handleOpts, plugin.WithLoader(opts.Loader))
	}

	app.locator = plugin.NewLocator(cfg.PluginSearchPaths(opts.Root)...)
	app.manager = plugin.NewManager(app, app.locator, plugin.ManagerConfig{
		MaxParallel: cfg.Plugins.MaxParallel,
		Options:     handleOpts,
	})

	return app, nil
}

// Config returns the site configuration.
func (app *Application) Config() *config.Config {
	return app.config
}

// Root returns the site root directory.
func (app *Application) Root() string {
	return app.root
}

// Logger returns the host logger.
func (app *Application) Logger() *Logger {
	return app.log
}

// Bus returns the event bus.
func (app *Application) Bus() *event.Bus {
	return app.bus
}

// Server returns the static file server.
func (app *Application) Server() *server.Server {
	return app.server
}

// Locator returns the plugin locator.
func (app *Application) Locator() *plugin.Locator {
	return app.locator
}

// Manager returns the plugin manager.
func (app *Application) Manager() *plugin.Manager {
	return app.manager
}

// Metrics returns the application's metrics.
func (app *Application) Metrics() *Metrics {
	return app.metrics
}

// PluginNames returns the plugins to initialize: the configured enabled
// list, or every discovered plugin when the list is empty.
func (app *Application) PluginNames() ([]string, error) {
	if len(app.config.Plugins.Enabled) > 0 {
		return append([]string(nil), app.config.Plugins.Enabled...), nil
	}
	found, err := app.locator.Discover()
	if err != nil {
		return nil, fmt.Errorf("discovering plugins: %w", err)
	}
	names := make([]string, len(found))
	for i, info := range found {
		names[i] = info.Name
	}
	return names, nil
}

// InitializePlugins initializes the named plugins, or PluginNames when
// none are given. Per-plugin failures are logged and joined in the error.
func (app *Application) InitializePlugins(ctx context.Context, names ...string) ([]*plugin.Result, error) {
	if len(names) == 0 {
		var err error
		if names, err = app.PluginNames(); err != nil {
			return nil, err
		}
	}

	log := app.log.WithComponent("plugins")
	log.Debug().Strs("plugins", names).Msg("initializing plugins")

	results, err := app.manager.InitializeAll(ctx, names...)
	for _, r := range results {
		app.metrics.RecordInit(r.Duration, !r.OK())
	}

	s := app.manager.Summary()
	log.Info().Int("ready", s.Ready).Int("failed", s.Failed).Msg(s.String())
	return results, err
}

// Serve initializes plugins and serves the site until ctx is done.
// Plugin failures do not prevent serving.
func (app *Application) Serve(ctx context.Context) error {
	if !app.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer app.running.Store(false)

	if _, err := app.InitializePlugins(ctx); err != nil {
		app.log.Warn().Err(err).Msg("some plugins failed to initialize")
	}
	return app.server.ListenAndServe(ctx, app.config.Site.Listen)
}

// Close releases plugin resources and closes the event bus.
func (app *Application) Close() error {
	err := app.manager.Close()
	app.bus.Close()
	return err
}

// PluginStatus describes one plugin in Status.
type PluginStatus struct {
	Name     string        `json:"name"`
	Dir      string        `json:"dir"`
	State    string        `json:"state"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Status is the payload of the status endpoint.
type Status struct {
	Site    string          `json:"site"`
	Plugins []PluginStatus  `json:"plugins"`
	Assets  []string        `json:"assets,omitempty"`
	Metrics MetricsSnapshot `json:"metrics"`
}

// Status reports plugin states and metrics.
func (app *Application) Status() Status {
	s := Status{
		Site:    app.config.Site.Name,
		Plugins: []PluginStatus{},
		Metrics: app.metrics.Snapshot(),
	}
	for _, r := range app.manager.Results() {
		ps := PluginStatus{Name: r.Name, Dir: r.Dir, State: r.State.String(), Duration: r.Duration}
		if r.Err != nil {
			ps.Error = r.Err.Error()
		}
		s.Plugins = append(s.Plugins, ps)
	}

	app.mu.RLock()
	for _, a := range app.assets {
		s.Assets = append(s.Assets, a.Styles...)
		s.Assets = append(s.Assets, a.Scripts...)
	}
	app.mu.RUnlock()
	sort.Strings(s.Assets)
	return s
}
