package game

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed games.yaml
var builtinYAML []byte

// registryFile is the YAML schema of games.yaml and GAMES_FILE.
type registryFile struct {
	Games map[string]Game `yaml:"games"`
}

// Registry is a thread-safe, read-mostly table of known game types.
type Registry struct {
	mu    sync.RWMutex
	games map[string]Game
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{games: make(map[string]Game)}
}

// Builtin returns a registry loaded from the embedded games.yaml.
func Builtin() *Registry {
	r := NewRegistry()
	if err := r.LoadYAML(builtinYAML); err != nil {
		panic(fmt.Sprintf("game: embedded registry is invalid: %v", err))
	}
	return r
}

// LoadFile merges the entries of a YAML file into the registry. Entries with
// the same key replace existing ones.
func (r *Registry) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read games file: %w", err)
	}
	if err := r.LoadYAML(data); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// LoadYAML merges entries from YAML bytes. Nothing is merged if any entry is
// invalid.
func (r *Registry) LoadYAML(data []byte) error {
	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse games yaml: %w", err)
	}

	parsed := make(map[string]Game, len(file.Games))
	for key, g := range file.Games {
		g.Key = key
		if g.Name == "" {
			return fmt.Errorf("game %q: name is required", key)
		}
		if !g.Protocol.Valid() {
			return fmt.Errorf("game %q: unknown protocol %q", key, g.Protocol)
		}
		if g.DefaultPort <= 0 || g.DefaultPort > 65535 {
			return fmt.Errorf("game %q: default_port out of range", key)
		}
		if g.ColorHex != "" {
			c, err := ParseColor(g.ColorHex)
			if err != nil {
				return fmt.Errorf("game %q: %w", key, err)
			}
			g.color = c
		}
		parsed[key] = g
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for key, g := range parsed {
		r.games[key] = g
	}
	return nil
}

// Register adds or replaces a single entry. Used by tests and embedders.
func (r *Registry) Register(g Game) error {
	if g.ColorHex != "" {
		c, err := ParseColor(g.ColorHex)
		if err != nil {
			return err
		}
		g.color = c
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.games[g.Key] = g
	return nil
}

// Lookup returns the entry for a game type.
func (r *Registry) Lookup(key string) (Game, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.games[key]
	return g, ok
}

// Known reports whether key is a registered game type.
func (r *Registry) Known(key string) bool {
	_, ok := r.Lookup(key)
	return ok
}

// Keys returns the registered game types in sorted order.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.games))
	for k := range r.games {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
