package tts

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	// ErrEngineNotFound is returned when an engine is not registered.
	ErrEngineNotFound = errors.New("TTS engine not found")
	// ErrEngineExists is returned when trying to register a duplicate engine.
	ErrEngineExists = errors.New("TTS engine already registered")
)

// Registry holds the configured engines and is itself an Engine: each
// request goes to the engine routed for its voice language, or to the
// default engine. The first registered engine is the default until
// SetDefault says otherwise.
type Registry struct {
	mu      sync.RWMutex
	engines map[string]Engine
	routes  map[string]string
	def     string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		engines: make(map[string]Engine),
		routes:  make(map[string]string),
	}
}

// Register adds an engine under its Name.
func (r *Registry) Register(engine Engine) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := engine.Name()
	if _, exists := r.engines[name]; exists {
		return fmt.Errorf("%w: %s", ErrEngineExists, name)
	}
	r.engines[name] = engine
	if r.def == "" {
		r.def = name
	}
	return nil
}

// SetDefault selects the engine used for unrouted languages.
func (r *Registry) SetDefault(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.engines[name]; !exists {
		return fmt.Errorf("%w: %s", ErrEngineNotFound, name)
	}
	r.def = name
	return nil
}

// Route sends requests whose voice language matches language (a tag such as
// "ja-JP" or a base language such as "ja") to the named engine.
func (r *Registry) Route(language, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.engines[name]; !exists {
		return fmt.Errorf("%w: %s", ErrEngineNotFound, name)
	}
	key := normalizeLanguage(language)
	if key == "" {
		return errors.New("route needs a language")
	}
	r.routes[key] = name
	return nil
}

// Get retrieves an engine by name.
func (r *Registry) Get(name string) (Engine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	engine, exists := r.engines[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrEngineNotFound, name)
	}
	return engine, nil
}

// EngineFor returns the engine a request in language would use.
func (r *Registry) EngineFor(language string) (Engine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	key := normalizeLanguage(language)
	name, ok := r.routes[key]
	if !ok {
		if base, _, found := strings.Cut(key, "-"); found {
			name, ok = r.routes[base]
		}
	}
	if !ok {
		name = r.def
	}
	engine, exists := r.engines[name]
	if !exists {
		return nil, ErrEngineNotFound
	}
	return engine, nil
}

// List returns all registered engine names in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.engines))
	for name := range r.engines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Name implements Engine.
func (r *Registry) Name() string {
	return "registry"
}

// Synthesize implements Engine by delegating to the routed engine.
func (r *Registry) Synthesize(ctx context.Context, req SynthesizeRequest) (*AudioResult, error) {
	engine, err := r.EngineFor(req.Voice.LanguageCode)
	if err != nil {
		return nil, err
	}
	return engine.Synthesize(ctx, req)
}
