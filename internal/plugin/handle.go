package plugin

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/folio/internal/config/layer"
	"github.com/dshills/folio/internal/config/loader"
)

// DefaultStaticPrefix is the URL prefix under which plugin public
// directories are mounted.
const DefaultStaticPrefix = "/!/folio/plugin"

// PublicDir is the plugin subdirectory served as static files.
const PublicDir = "public"

// LocalConfigFiles are the plugin-local config files looked up during
// Prepare, in order.
var LocalConfigFiles = []string{"folio.toml", "folio.yaml", "folio.yml"}

// Handle manages one plugin's lifecycle: prepare, load, initialize.
type Handle struct {
	// Identity, immutable after New
	name         string
	dir          string
	manifestPath string
	host         Host
	initial      map[string]any
	initialSet   bool

	// Options
	loader       ModuleLoader
	namespace    string
	staticPrefix string
	initTimeout  time.Duration

	mu sync.RWMutex

	config    map[string]any
	manifest  *Manifest
	mainPath  string
	localPath string
	prepared  bool
	module    Module
	state     State
	err       error
}

// Prepared is the result of a successful Prepare.
type Prepared struct {
	Config  map[string]any `json:"config"`
	Package *Manifest      `json:"package"`
	Main    string         `json:"main"`
	// LocalConfig is the plugin-local config file merged, if any.
	LocalConfig string `json:"localConfig,omitempty"`
}

// Option configures a Handle.
type Option func(*Handle)

// WithLoader sets the module loader.
func WithLoader(l ModuleLoader) Option {
	return func(h *Handle) {
		h.loader = l
	}
}

// WithNamespace sets the manifest key holding Folio metadata.
func WithNamespace(ns string) Option {
	return func(h *Handle) {
		h.namespace = ns
	}
}

// WithInitTimeout bounds the init hook. Zero disables the timeout.
func WithInitTimeout(d time.Duration) Option {
	return func(h *Handle) {
		h.initTimeout = d
	}
}

// WithConfig supplies the initial config fragment explicitly instead of
// asking the host for it.
func WithConfig(config map[string]any) Option {
	return func(h *Handle) {
		h.initial = layer.Clone(config)
		h.initialSet = true
	}
}

// WithStaticPrefix sets the URL prefix for the plugin's public directory.
func WithStaticPrefix(prefix string) Option {
	return func(h *Handle) {
		h.staticPrefix = prefix
	}
}

// New creates a handle for the plugin name at dir. It performs no I/O.
func New(name, dir string, host Host, opts ...Option) (*Handle, error) {
	switch {
	case name == "":
		return nil, &Error{Kind: ErrConstruction, Plugin: name, Err: errors.New("name is required")}
	case dir == "":
		return nil, &Error{Kind: ErrConstruction, Plugin: name, Err: errors.New("directory path is required")}
	case host == nil:
		return nil, &Error{Kind: ErrConstruction, Plugin: name, Err: errors.New("host is required")}
	}

	h := &Handle{
		name:         name,
		dir:          dir,
		manifestPath: filepath.Join(dir, ManifestFile),
		host:         host,
		namespace:    DefaultNamespace,
		staticPrefix: DefaultStaticPrefix,
		state:        StateCreated,
	}

	for _, opt := range opts {
		opt(h)
	}

	if h.loader == nil {
		h.loader = NewMultiLoader()
	}
	if h.namespace == "" {
		h.namespace = DefaultNamespace
	}

	if !h.initialSet {
		h.initial = layer.Clone(host.PluginConfig(name))
	}
	h.config = layer.Clone(h.initial)

	return h, nil
}

// Name returns the plugin name.
func (h *Handle) Name() string {
	return h.name
}

// Dir returns the plugin directory.
func (h *Handle) Dir() string {
	return h.dir
}

// ManifestPath returns the path of package.json. Always available.
func (h *Handle) ManifestPath() string {
	return h.manifestPath
}

// Config returns a copy of the current configuration. Before Prepare it
// is the host-supplied fragment.
func (h *Handle) Config() map[string]any {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return layer.Clone(h.config)
}

// PackageDescriptor returns the parsed manifest. ok is false until
// Prepare has succeeded.
func (h *Handle) PackageDescriptor() (m *Manifest, ok bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.manifest, h.prepared
}

// MainEntryPath returns the resolved entry path. ok is false until
// Prepare has succeeded; the path is empty for configuration-only plugins.
func (h *Handle) MainEntryPath() (p string, ok bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.mainPath, h.prepared
}

// Module returns the loaded module, or nil.
func (h *Handle) Module() Module {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.module
}

// State returns the lifecycle state.
func (h *Handle) State() State {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state
}

// Err returns the last lifecycle error.
func (h *Handle) Err() error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.err
}

// StaticMountPath returns the URL path the plugin's public directory is
// mounted at.
func (h *Handle) StaticMountPath() string {
	return path.Join(h.staticPrefix, h.name)
}

// Prepare reads the manifest and the plugin-local config file and merges
// configuration: manifest defaults, then the local file, then the host
// fragment. Repeated calls recompute from the same inputs.
func (h *Handle) Prepare(ctx context.Context) (*Prepared, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		manifest  *Manifest
		local     map[string]any
		localPath string
	)

	var g errgroup.Group
	g.Go(func() error {
		m, err := ReadManifest(h.manifestPath, h.namespace)
		if err != nil {
			return h.manifestError(err)
		}
		manifest = m
		return nil
	})
	g.Go(func() error {
		candidates := make([]string, len(LocalConfigFiles))
		for i, name := range LocalConfigFiles {
			candidates[i] = filepath.Join(h.dir, name)
		}
		p := loader.FindFirst(loader.DefaultFS(), candidates...)
		if p == "" {
			return nil
		}
		data, err := h.readLocalConfig(p)
		if err != nil {
			return err
		}
		local, localPath = data, p
		return nil
	})
	if err := g.Wait(); err != nil {
		h.fail(err)
		return nil, err
	}

	if cf := manifest.Section.ConfigFile; cf != "" {
		p := filepath.Join(h.dir, filepath.FromSlash(cf))
		data, err := h.readLocalConfig(p)
		if err != nil {
			h.fail(err)
			return nil, err
		}
		local, localPath = data, ""
		if data != nil {
			localPath = p
		}
	}

	merged := layer.Merge(manifest.Section.Config, local, h.initial)
	mainPath := ResolveMain(h.dir, manifest.Main)

	h.mu.Lock()
	h.config = merged
	h.manifest = manifest
	h.mainPath = mainPath
	h.localPath = localPath
	h.prepared = true
	if h.state == StateCreated || h.state == StateFailed {
		h.state = StatePrepared
		h.err = nil
	}
	h.mu.Unlock()

	if bh, ok := h.host.(BundleConfigHandler); ok {
		bh.HandleBundleConfig(manifest.Section, h.dir)
	}
	if ar, ok := h.host.(AssetRegistrar); ok && !manifest.Section.Assets.Empty() {
		ar.AddAssets(h.name, manifest.Section.Assets)
	}

	return &Prepared{
		Config:      layer.Clone(merged),
		Package:     manifest,
		Main:        mainPath,
		LocalConfig: localPath,
	}, nil
}

func (h *Handle) manifestError(err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		h.host.Log(LevelError, fmt.Sprintf(
			"The package.json file was not found in '%s'. Please check if the '%s' plugin is installed.",
			h.manifestPath, h.name))
		return &Error{Kind: ErrManifestNotFound, Plugin: h.name, Path: h.manifestPath, Err: err}
	}
	return &Error{Kind: ErrManifestRead, Plugin: h.name, Path: h.manifestPath, Err: err}
}

func (h *Handle) readLocalConfig(p string) (map[string]any, error) {
	data, err := loader.LoadFile(p)
	if err != nil {
		return nil, &Error{Kind: ErrManifestRead, Plugin: h.name, Path: p, Err: err}
	}
	return data, nil
}

// Load loads the entry module. It requires a prior Prepare and returns
// nil, nil for configuration-only plugins. A module already loaded is
// returned as is.
func (h *Handle) Load(ctx context.Context) (Module, error) {
	h.mu.RLock()
	prepared, mainPath, loaded := h.prepared, h.mainPath, h.module
	h.mu.RUnlock()

	if !prepared {
		return nil, &Error{Kind: ErrNotPrepared, Plugin: h.name, Path: h.manifestPath}
	}
	if mainPath == "" {
		return nil, nil
	}
	if loaded != nil {
		return loaded, nil
	}

	type result struct {
		module Module
		err    error
	}
	ch := make(chan result, 1)

	// The load runs on its own goroutine so a panicking loader surfaces as
	// an error on the channel, never on the caller's stack.
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- result{err: pkgerrors.Errorf("panic: %v", r)}
			}
		}()
		m, err := h.loader.Load(ctx, LoadRequest{
			Plugin: h.name,
			Dir:    h.dir,
			Main:   mainPath,
			Host:   h.host,
		})
		ch <- result{module: m, err: err}
	}()

	var r result
	select {
	case r = <-ch:
	case <-ctx.Done():
		r.err = ctx.Err()
	}

	if r.err != nil {
		err := &Error{Kind: ErrModuleLoad, Plugin: h.name, Path: mainPath, Err: causeError(r.err)}
		h.fail(err)
		return nil, err
	}

	h.mu.Lock()
	h.module = r.module
	h.state = StateLoaded
	h.mu.Unlock()

	return r.module, nil
}

// Initialize mounts the plugin's public directory, loads the entry module
// and runs its init hook until it completes.
//
// The hook receives a copy of the merged configuration; changes it makes
// are not visible through Config. When ctx is done or the init timeout
// elapses first, the context handed to the hook is cancelled, which aborts
// a running Lua hook.
func (h *Handle) Initialize(ctx context.Context) error {
	if sm, ok := h.host.(StaticMounter); ok {
		sm.AddStaticPath(h.StaticMountPath(), filepath.Join(h.dir, PublicDir))
	}

	module, err := h.Load(ctx)
	if err != nil {
		return err
	}

	entry := ResolveEntry(module)
	if entry.Kind == EntryNone {
		h.ready()
		return nil
	}

	// The hook may keep running after it settles, so its context ends only
	// when Initialize gives up on it.
	var cause error
	hctx, abort := context.WithCancel(context.WithoutCancel(ctx))
	defer func() {
		if cause != nil {
			abort()
		}
	}()

	c := NewCompletion()
	go h.invoke(hctx, entry.Func, c)

	var timeout <-chan time.Time
	if h.initTimeout > 0 {
		timer := time.NewTimer(h.initTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case <-c.Done():
		cause = c.Err()
	case <-ctx.Done():
		cause = pkgerrors.WithStack(ctx.Err())
	case <-timeout:
		cause = pkgerrors.WithStack(fmt.Errorf("%w after %s", ErrInitTimeout, h.initTimeout))
	}

	if cause != nil {
		err := &Error{Kind: ErrInitialization, Plugin: h.name, Err: cause}
		h.fail(err)
		return err
	}

	h.ready()
	return nil
}

// invoke calls the init function and wires every completion channel to c.
func (h *Handle) invoke(ctx context.Context, fn EntryFunc, c *Completion) {
	defer func() {
		if r := recover(); r != nil {
			c.Settle(pkgerrors.Errorf("panic: %v", r))
		}
	}()

	result, err := fn.Call(ctx, h.Config(), h.host, func(v any) {
		c.Settle(causeError(v))
	})
	if err != nil {
		c.Settle(causeError(err))
		return
	}

	if t, ok := result.(Thenable); ok && t != nil {
		t.Then(
			func(any) { c.Settle(nil) },
			func(reason any) { c.Settle(rejectionError(reason)) },
		)
		return
	}

	if n, known := fn.Arity(); known && n < 3 {
		c.Settle(nil)
	}
}

// InitializeWithLifecycleLogging runs Prepare and Initialize, logging each
// step through the host and emitting plugin-loaded:<name> exactly once.
// Failures are absorbed into the log, the event and Err.
func (h *Handle) InitializeWithLifecycleLogging(ctx context.Context) {
	h.host.Log(LevelInfo, "Preparing to initialize plugin: "+h.name)
	if _, err := h.Prepare(ctx); err != nil {
		h.finish(err)
		return
	}

	h.host.Log(LevelInfo, "Initializing plugin: "+h.name)
	if err := h.Initialize(ctx); err != nil {
		h.finish(err)
		return
	}

	h.finish(nil)
}

func (h *Handle) finish(err error) {
	var module any
	if m := h.Module(); m != nil {
		module = m
	}

	if err != nil {
		h.host.Log(LevelError, "Failed to initialize plugin: "+h.name)
		h.host.Log(LevelError, fmt.Sprintf("%+v", err))
		h.host.Emit(LoadedEvent(h.name), h, module, err)
		return
	}

	h.host.Log(LevelLog, "Successfully initialized plugin: "+h.name)
	h.host.Emit(LoadedEvent(h.name), h, module, nil)
}

func (h *Handle) fail(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.state = StateFailed
	h.err = err
}

func (h *Handle) ready() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.state = StateReady
	h.err = nil
}
