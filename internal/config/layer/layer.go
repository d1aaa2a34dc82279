// Package layer provides configuration layering for Folio.
//
// A Stack holds configuration layers from several sources. Layers are merged
// in priority order; higher priority layers override lower ones key by key,
// while nested maps are merged so that keys present on only one side survive.
package layer

import "sort"

// Source indicates where a configuration layer came from.
type Source uint8

const (
	// SourceBuiltin represents built-in default configuration.
	SourceBuiltin Source = iota
	// SourceManifest represents defaults declared in a plugin's package.json.
	SourceManifest
	// SourceFile represents a configuration file (site file or plugin-local file).
	SourceFile
	// SourceHost represents configuration supplied by the host for a plugin.
	SourceHost
	// SourceEnv represents environment variables.
	SourceEnv
	// SourceArgs represents command-line arguments.
	SourceArgs
)

// String returns a human-readable name for the source.
func (s Source) String() string {
	switch s {
	case SourceBuiltin:
		return "builtin"
	case SourceManifest:
		return "manifest"
	case SourceFile:
		return "file"
	case SourceHost:
		return "host"
	case SourceEnv:
		return "environment"
	case SourceArgs:
		return "arguments"
	default:
		return "unknown"
	}
}

// Standard priority levels. Higher values override lower values.
const (
	PriorityBuiltin  = 0
	PriorityManifest = 100
	PriorityFile     = 200
	PriorityHost     = 300
	PriorityEnv      = 500
	PriorityArgs     = 600
)

// DefaultPriority returns the default priority for a given source.
func DefaultPriority(source Source) int {
	switch source {
	case SourceManifest:
		return PriorityManifest
	case SourceFile:
		return PriorityFile
	case SourceHost:
		return PriorityHost
	case SourceEnv:
		return PriorityEnv
	case SourceArgs:
		return PriorityArgs
	default:
		return PriorityBuiltin
	}
}

// Layer represents a single configuration layer.
type Layer struct {
	// Name identifies the layer (e.g., "defaults", "folio.toml").
	Name string

	// Priority determines merge order (higher overrides lower).
	Priority int

	// Source indicates where this layer was loaded from.
	Source Source

	// Path is the file path (if loaded from file).
	Path string

	// Data holds the configuration values as a nested map.
	Data map[string]any
}

// NewLayer creates a layer with the default priority for its source.
func NewLayer(name string, source Source, data map[string]any) *Layer {
	return &Layer{
		Name:     name,
		Source:   source,
		Priority: DefaultPriority(source),
		Data:     data,
	}
}

// Stack is an ordered set of layers.
// A Stack is not safe for concurrent mutation.
type Stack struct {
	layers []*Layer
}

// NewStack creates a stack from the given layers.
func NewStack(layers ...*Layer) *Stack {
	s := &Stack{}
	for _, l := range layers {
		s.Add(l)
	}
	return s
}

// Add inserts a layer. Nil layers and layers without data are ignored.
func (s *Stack) Add(l *Layer) {
	if l == nil || l.Data == nil {
		return
	}
	s.layers = append(s.layers, l)
	// Stable so that equal priorities keep insertion order.
	sort.SliceStable(s.layers, func(i, j int) bool {
		return s.layers[i].Priority < s.layers[j].Priority
	})
}

// Layers returns the layers in merge order.
func (s *Stack) Layers() []*Layer {
	return append([]*Layer(nil), s.layers...)
}

// Merge returns a fresh map holding all layers merged in priority order.
func (s *Stack) Merge() map[string]any {
	result := make(map[string]any)
	for _, l := range s.layers {
		DeepMerge(result, l.Data)
	}
	return result
}

// WhichLayer returns the name of the highest-priority layer that defines path.
func (s *Stack) WhichLayer(path string) string {
	for i := len(s.layers) - 1; i >= 0; i-- {
		if _, ok := GetByPath(s.layers[i].Data, path); ok {
			return s.layers[i].Name
		}
	}
	return ""
}
