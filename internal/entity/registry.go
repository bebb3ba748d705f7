package entity

import (
	"fmt"
	"sync"
)

// Write is a hub-originated command against one entity. Only the field
// matching the entity's Kind is meaningful.
type Write struct {
	EntityID    string
	BoolValue   bool
	NumberValue float64
	StringValue string
}

// Handler applies a Write to the entity's current value and returns the
// updated Entity. Handlers never touch shared state directly (spec.md
// §4.6): config-affecting handlers report the change through the
// registry's OnConfigChange hook instead, which the caller wires to
// enqueue a config-mutation event on the activation machine and to
// rewrite preferences.
type Handler func(current Entity, w Write) (Entity, error)

type entry struct {
	entity  Entity
	handler Handler
}

// Registry is the static table of tagged entities keyed by entity-id,
// replacing the dynamic entity dispatch in original_source/entity.py
// per spec.md §9.
type Registry struct {
	mu   sync.Mutex
	byID map[string]*entry

	// OnConfigChange is invoked after a Write successfully mutates an
	// entity whose id is config-affecting (per spec.md §4.6). It never
	// runs while mu is held.
	OnConfigChange func(entityID string, e Entity)
}

func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]*entry)}
}

// Register adds e to the registry with handler h. h may be nil for
// read-only sensors.
func (r *Registry) Register(e Entity, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[e.ID] = &entry{entity: e, handler: h}
}

// Get returns the current value of entity id.
func (r *Registry) Get(id string) (Entity, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	en, ok := r.byID[id]
	if !ok {
		return Entity{}, false
	}
	return en.entity, true
}

// All returns every registered entity, for hub ListEntities-style
// registration on session start.
func (r *Registry) All() []Entity {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entity, 0, len(r.byID))
	for _, en := range r.byID {
		out = append(out, en.entity)
	}
	return out
}

// SetSensor updates a sensor's value directly (sensors have no
// Handler; the core publishes readings, the hub never writes them).
func (r *Registry) SetSensor(id string, value any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	en, ok := r.byID[id]
	if !ok {
		return fmt.Errorf("entity: unknown sensor %q", id)
	}
	if en.entity.Kind != KindSensor {
		return fmt.Errorf("entity: %q is not a sensor", id)
	}
	en.entity.SensorValue = value
	return nil
}

// Apply dispatches a hub Write to the registered handler for w.EntityID
// and stores the resulting Entity.
func (r *Registry) Apply(w Write) (Entity, error) {
	r.mu.Lock()
	en, ok := r.byID[w.EntityID]
	if !ok {
		r.mu.Unlock()
		return Entity{}, fmt.Errorf("entity: unknown id %q", w.EntityID)
	}
	if en.handler == nil {
		r.mu.Unlock()
		return Entity{}, fmt.Errorf("entity: %q is read-only", w.EntityID)
	}

	updated, err := en.handler(en.entity, w)
	if err != nil {
		r.mu.Unlock()
		return Entity{}, err
	}
	en.entity = updated
	hook := r.OnConfigChange
	r.mu.Unlock()

	if hook != nil {
		hook(w.EntityID, updated)
	}
	return updated, nil
}
