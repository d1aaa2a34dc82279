package plugin

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultMaxParallel is the default number of plugins initialized at once.
const DefaultMaxParallel = 4

// Manager builds handles for the configured plugins and initializes them.
type Manager struct {
	mu sync.RWMutex

	host    Host
	locator *Locator
	config  ManagerConfig

	// Handles by name
	handles map[string]*Handle

	// Initialization order (for deterministic iteration)
	order []string

	results map[string]*Result
}

// ManagerConfig configures the plugin manager.
type ManagerConfig struct {
	// MaxParallel is the maximum number of plugins initialized concurrently.
	MaxParallel int

	// Options are applied to every handle.
	Options []Option
}

// DefaultManagerConfig returns sensible default configuration.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{MaxParallel: DefaultMaxParallel}
}

// Result is the outcome of initializing one plugin.
type Result struct {
	Name     string        `json:"name"`
	Dir      string        `json:"dir"`
	State    State         `json:"-"`
	Err      error         `json:"-"`
	Duration time.Duration `json:"duration"`
	// Events counts plugin-loaded events observed for the plugin. Zero
	// when the host does not support subscriptions.
	Events int `json:"events"`
}

// OK reports whether the plugin is ready.
func (r *Result) OK() bool {
	return r.Err == nil && r.State == StateReady
}

// Summary totals a set of results.
type Summary struct {
	Total  int
	Ready  int
	Failed int
}

func (s Summary) String() string {
	return fmt.Sprintf("%d plugins: %d ready, %d failed", s.Total, s.Ready, s.Failed)
}

// NewManager creates a plugin manager.
func NewManager(host Host, locator *Locator, config ManagerConfig) *Manager {
	if config.MaxParallel < 1 {
		config.MaxParallel = DefaultMaxParallel
	}
	if locator == nil {
		locator = NewLocator()
	}
	return &Manager{
		host:    host,
		locator: locator,
		config:  config,
		handles: make(map[string]*Handle),
		results: make(map[string]*Result),
	}
}

// InitializeAll creates a handle per name and runs
// InitializeWithLifecycleLogging on each, at most MaxParallel at a time.
// A failing plugin does not stop the others. The returned error joins
// every per-plugin failure.
func (m *Manager) InitializeAll(ctx context.Context, names ...string) ([]*Result, error) {
	var (
		eventsMu sync.Mutex
		events   = make(map[string]int)
	)
	if sub, ok := m.host.(EventSubscriber); ok {
		unsubscribe := sub.Subscribe(LoadedEventPrefix+"*", func(event string, _ ...any) {
			eventsMu.Lock()
			events[strings.TrimPrefix(event, LoadedEventPrefix)]++
			eventsMu.Unlock()
		})
		defer unsubscribe()
	}

	results := make([]*Result, len(names))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.config.MaxParallel)

	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			results[i] = m.initialize(gctx, name)
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for _, r := range results {
		eventsMu.Lock()
		r.Events = events[r.Name]
		eventsMu.Unlock()

		if r.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Name, r.Err))
		}
	}

	if len(errs) > 0 {
		return results, fmt.Errorf("failed to initialize %d plugins: %w", len(errs), errors.Join(errs...))
	}
	return results, nil
}

func (m *Manager) initialize(ctx context.Context, name string) *Result {
	start := time.Now()
	r := &Result{Name: name, State: StateFailed}

	defer func() {
		r.Duration = time.Since(start)
		m.mu.Lock()
		m.results[name] = r
		m.mu.Unlock()
	}()

	dir, err := m.locator.Find(name)
	if err != nil {
		r.Err = err
		return r
	}
	r.Dir = dir

	h, err := New(name, dir, m.host, m.config.Options...)
	if err != nil {
		r.Err = err
		return r
	}

	m.mu.Lock()
	if _, exists := m.handles[name]; !exists {
		m.order = append(m.order, name)
	}
	m.handles[name] = h
	m.mu.Unlock()

	h.InitializeWithLifecycleLogging(ctx)

	r.State = h.State()
	r.Err = h.Err()
	return r
}

// Handle returns the handle for name.
func (m *Manager) Handle(name string) (*Handle, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	h, exists := m.handles[name]
	return h, exists
}

// Handles returns all handles in the order they were created.
func (m *Manager) Handles() []*Handle {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*Handle, 0, len(m.order))
	for _, name := range m.order {
		result = append(result, m.handles[name])
	}
	return result
}

// Results returns the latest result per plugin, sorted by name.
func (m *Manager) Results() []*Result {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*Result, 0, len(m.results))
	for _, r := range m.results {
		result = append(result, r)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result
}

// Summary totals the latest results.
func (m *Manager) Summary() Summary {
	var s Summary
	for _, r := range m.Results() {
		s.Total++
		if r.OK() {
			s.Ready++
		} else {
			s.Failed++
		}
	}
	return s
}

// Close releases resources held by loaded modules, such as Lua states.
func (m *Manager) Close() error {
	var errs []error
	for _, h := range m.Handles() {
		if c, ok := h.Module().(interface{ Close() error }); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", h.Name(), err))
			}
		}
	}
	return errors.Join(errs...)
}
