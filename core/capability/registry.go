package capability

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/leofalp/agentflow/core/workflow"
)

// ErrUnknownCapability is returned by Resolve for unregistered type tags.
var ErrUnknownCapability = workflow.ErrUnknownCapability

// Registration is the resolved view of a registered capability.
type Registration struct {
	Type     string
	Handler  Handler
	Template Template

	// Timeout bounds one invocation of the handler. Zero means the
	// scheduler default applies.
	Timeout time.Duration
}

// RegisterOption customizes a registration.
type RegisterOption func(*Registration)

// WithTemplate attaches the catalog entry shown to the editor. Capabilities
// registered without a template are executable but not listed.
func WithTemplate(template Template) RegisterOption {
	return func(registration *Registration) {
		template.Type = registration.Type
		registration.Template = template
	}
}

// WithTimeout sets the per-invocation timeout for the capability.
func WithTimeout(timeout time.Duration) RegisterOption {
	return func(registration *Registration) {
		registration.Timeout = timeout
	}
}

// Registry maps type tags to handlers. Aliases let task names such as
// "analyze_market" resolve to the same registration as a node type.
type Registry struct {
	mu            sync.RWMutex
	registrations map[string]*Registration
	aliases       map[string]string
	order         []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		registrations: make(map[string]*Registration),
		aliases:       make(map[string]string),
	}
}

// Register adds a handler for typeTag. It fails on an empty tag, a nil
// handler, or a tag that is already registered as a type or alias.
func (registry *Registry) Register(typeTag string, handler Handler, options ...RegisterOption) error {
	if typeTag == "" {
		return errors.New("capability type cannot be empty")
	}
	if handler == nil {
		return fmt.Errorf("capability %q: handler cannot be nil", typeTag)
	}

	registration := &Registration{Type: typeTag, Handler: handler}
	for _, option := range options {
		option(registration)
	}

	registry.mu.Lock()
	defer registry.mu.Unlock()

	if registry.taken(typeTag) {
		return fmt.Errorf("capability %q is already registered", typeTag)
	}

	registry.registrations[typeTag] = registration
	registry.order = append(registry.order, typeTag)
	return nil
}

// MustRegister is like Register but panics on error. Intended for startup wiring.
func (registry *Registry) MustRegister(typeTag string, handler Handler, options ...RegisterOption) {
	if err := registry.Register(typeTag, handler, options...); err != nil {
		panic(err)
	}
}

// RegisterAlias makes alias resolve to the registration of typeTag.
func (registry *Registry) RegisterAlias(alias, typeTag string) error {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	if _, exists := registry.registrations[typeTag]; !exists {
		return fmt.Errorf("alias %q targets unregistered capability %q", alias, typeTag)
	}
	if alias == "" || registry.taken(alias) {
		return fmt.Errorf("alias %q is empty or already registered", alias)
	}

	registry.aliases[alias] = typeTag
	return nil
}

func (registry *Registry) taken(name string) bool {
	if _, exists := registry.registrations[name]; exists {
		return true
	}
	_, exists := registry.aliases[name]
	return exists
}

// Resolve returns the registration for typeTag or an error matching
// ErrUnknownCapability.
func (registry *Registry) Resolve(typeTag string) (*Registration, error) {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	if target, isAlias := registry.aliases[typeTag]; isAlias {
		typeTag = target
	}
	registration, exists := registry.registrations[typeTag]
	if !exists {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCapability, typeTag)
	}
	return registration, nil
}

// Has reports whether typeTag resolves to a registration.
func (registry *Registry) Has(typeTag string) bool {
	_, err := registry.Resolve(typeTag)
	return err == nil
}

// Types returns the registered type tags in registration order, without aliases.
func (registry *Registry) Types() []string {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	types := make([]string, len(registry.order))
	copy(types, registry.order)
	return types
}

// Templates returns the catalog of capabilities that carry a template, in
// registration order.
func (registry *Registry) Templates() []Template {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	templates := make([]Template, 0, len(registry.order))
	for _, typeTag := range registry.order {
		template := registry.registrations[typeTag].Template
		if template.Type == "" {
			continue
		}
		templates = append(templates, template)
	}
	return templates
}
