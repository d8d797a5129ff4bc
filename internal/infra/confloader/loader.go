package confloader

import (
	"fmt"
	"maps"
	"strings"
	"sync"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultEnvPrefix prefixes every environment variable the loader reads.
const DefaultEnvPrefix = "SYNCMESH_"

// Loader layers defaults, a YAML file, environment variables and overrides,
// later layers winning. Every Load rebuilds the layers from scratch.
type Loader struct {
	envPrefix string
	path      string
	defaults  map[string]any

	mu        sync.RWMutex
	overrides map[string]any
	current   *koanf.Koanf
}

// Option configures a Loader.
type Option func(*Loader)

// WithEnvPrefix replaces DefaultEnvPrefix.
func WithEnvPrefix(prefix string) Option {
	return func(l *Loader) { l.envPrefix = prefix }
}

// WithConfigFile sets the YAML file to read.
func WithConfigFile(path string) Option {
	return func(l *Loader) { l.path = path }
}

// WithDefaults sets dotted-key values that sit below every other layer.
func WithDefaults(defaults map[string]any) Option {
	return func(l *Loader) { l.defaults = maps.Clone(defaults) }
}

func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		envPrefix: DefaultEnvPrefix,
		overrides: make(map[string]any),
		current:   koanf.New("."),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// FilePath is the configured YAML file, or "" when there is none.
func (l *Loader) FilePath() string {
	return l.path
}

// Override pins a dotted key above every other layer for all later loads.
func (l *Loader) Override(key string, value any) {
	l.mu.Lock()
	l.overrides[key] = value
	l.mu.Unlock()
}

// Load reads every layer and unmarshals the merged result into target, whose
// fields carry koanf tags. On error the previously loaded state is kept.
func (l *Loader) Load(target any) error {
	k := koanf.New(".")

	if len(l.defaults) > 0 {
		if err := k.Load(mapProvider(l.defaults), nil); err != nil {
			return fmt.Errorf("load defaults: %w", err)
		}
	}
	if l.path != "" {
		if err := k.Load(file.Provider(l.path), yaml.Parser()); err != nil {
			return fmt.Errorf("load config file %s: %w", l.path, err)
		}
	}
	if err := k.Load(env.Provider(l.envPrefix, ".", l.envKey), nil); err != nil {
		return fmt.Errorf("load env: %w", err)
	}

	l.mu.RLock()
	overrides := maps.Clone(l.overrides)
	l.mu.RUnlock()
	if err := k.Load(mapProvider(overrides), nil); err != nil {
		return fmt.Errorf("load overrides: %w", err)
	}

	if err := k.Unmarshal("", target); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}

	l.mu.Lock()
	l.current = k
	l.mu.Unlock()
	return nil
}

// Value returns a key from the last successful Load.
func (l *Loader) Value(key string) any {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current.Get(key)
}

// envKey turns SYNCMESH_REPLICATION__QUEUE_CAPACITY into
// replication.queue_capacity. A double underscore separates sections so
// single underscores can stay inside key names.
func (l *Loader) envKey(name string) string {
	name = strings.ToLower(strings.TrimPrefix(name, l.envPrefix))
	return strings.ReplaceAll(name, "__", ".")
}

// ParseOverride splits a key=value command-line argument.
func ParseOverride(arg string) (string, string, error) {
	key, value, ok := strings.Cut(arg, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return "", "", fmt.Errorf("override %q: want key=value", arg)
	}
	return key, value, nil
}
