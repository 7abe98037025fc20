package factory

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/go-viper/mapstructure/v2"
)

var (
	// ErrUnknownType is returned by Create for a type nobody registered.
	ErrUnknownType = errors.New("unknown sink type")
	// ErrDuplicateType is returned by Register when the name is taken.
	ErrDuplicateType = errors.New("sink type already registered")
)

// Selector names a registered implementation and carries its settings as
// they came out of the config file or environment.
type Selector struct {
	Type string         `json:"type"`
	Conf map[string]any `json:"conf"`
}

// Builder turns raw settings into a T.
type Builder[T any] func(conf map[string]any) (T, error)

// Registry maps type names to builders. It is safe for concurrent use;
// sinks normally register from init.
type Registry[T any] struct {
	mu       sync.RWMutex
	builders map[string]Builder[T]
}

func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{builders: make(map[string]Builder[T])}
}

// Register binds name to b.
func (r *Registry[T]) Register(name string, b Builder[T]) error {
	switch {
	case name == "":
		return errors.New("sink type name is empty")
	case b == nil:
		return fmt.Errorf("nil builder for sink type %q", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.builders[name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateType, name)
	}
	r.builders[name] = b
	return nil
}

// Create builds the implementation sel names. Builder errors are prefixed
// with the type so a bad entry in a sink list is easy to find.
func (r *Registry[T]) Create(sel Selector) (T, error) {
	r.mu.RLock()
	b, ok := r.builders[sel.Type]
	r.mu.RUnlock()
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w %q (known: %v)", ErrUnknownType, sel.Type, r.Types())
	}
	v, err := b(sel.Conf)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("sink %s: %w", sel.Type, err)
	}
	return v, nil
}

// Types returns the registered names, sorted.
func (r *Registry[T]) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.builders))
	for n := range r.builders {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Decode copies raw sink settings into out using its json tags. Strings
// convert to numbers and durations, since env overrides always arrive as
// strings.
func Decode(conf map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           out,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return err
	}
	return dec.Decode(conf)
}
