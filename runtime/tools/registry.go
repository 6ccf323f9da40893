package tools

import (
	"context"
	"fmt"
	"sync"

	"github.com/AltairaLabs/roboshen/runtime/live"
)

// Registry holds capabilities by name, in registration order.
type Registry struct {
	mu        sync.RWMutex
	caps      map[string]Capability
	order     []string
	validator *SchemaValidator
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		caps:      make(map[string]Capability),
		validator: NewSchemaValidator(),
	}
}

// Register adds a capability after validating its descriptor.
func (r *Registry) Register(c Capability) error {
	d := c.Descriptor()
	if err := r.validateDescriptor(d); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.caps[d.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, d.Name)
	}
	r.caps[d.Name] = c
	r.order = append(r.order, d.Name)
	return nil
}

// Get retrieves a capability by name.
func (r *Registry) Get(name string) (Capability, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.caps[name]
	return c, ok
}

// List returns tool names in registration order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Descriptors returns every descriptor in registration order.
func (r *Registry) Descriptors() []*Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Descriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.caps[name].Descriptor())
	}
	return out
}

// Declarations exports the registry for the live session setup.
func (r *Registry) Declarations() []live.FunctionDeclaration {
	descs := r.Descriptors()
	out := make([]live.FunctionDeclaration, len(descs))
	for i, d := range descs {
		out[i] = d.Declaration()
	}
	return out
}

// Subset returns a registry with only the named tools, in the given order.
// An empty list returns r itself.
func (r *Registry) Subset(names []string) (*Registry, error) {
	if len(names) == 0 {
		return r, nil
	}
	sub := &Registry{caps: make(map[string]Capability), validator: r.validator}
	for _, name := range names {
		c, ok := r.Get(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
		}
		if err := sub.Register(c); err != nil {
			return nil, err
		}
	}
	return sub, nil
}

// Execute looks up inv.Name, validates the arguments and runs the
// capability.
func (r *Registry) Execute(ctx context.Context, inv Invocation) (*Outcome, error) {
	c, ok := r.Get(inv.Name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, inv.Name)
	}
	if err := r.validator.ValidateArgs(c.Descriptor(), inv.Args); err != nil {
		return nil, err
	}
	out, err := c.Execute(ctx, inv.Args)
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, ErrEmptyOutcome
	}
	return out, nil
}

// validateDescriptor validates a tool descriptor
func (r *Registry) validateDescriptor(descriptor *Descriptor) error {
	if descriptor == nil || descriptor.Name == "" {
		return ErrToolNameRequired
	}
	if descriptor.Description == "" {
		return fmt.Errorf("%w: %s", ErrToolDescriptionRequired, descriptor.Name)
	}
	if len(descriptor.InputSchema) == 0 {
		return fmt.Errorf("%w: %s", ErrInputSchemaRequired, descriptor.Name)
	}
	if err := r.validator.Compile(string(descriptor.InputSchema)); err != nil {
		return &ValidationError{
			Type:   "descriptor_invalid",
			Tool:   descriptor.Name,
			Detail: fmt.Sprintf("invalid input schema: %v", err),
		}
	}
	return nil
}
