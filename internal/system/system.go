// Package system implements the simulation's game systems: tick consumers
// that run after the world each step and act on it only through the
// Query. The set is closed; every GameSystem lives in this package.
package system

import (
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	coresys "github.com/heritagebuilder/heritage/internal/core/system"
	"github.com/heritagebuilder/heritage/internal/world"
)

// DefaultCapacity bounds how many systems a simulation can register.
const DefaultCapacity = 8

var ErrRegistryFull = coresys.ErrRegistryFull

// ID is a generational game-system handle.
type ID = coresys.ID

// GameSystem is one built-in tick consumer.
type GameSystem interface {
	Name() string
	Update(q *world.Query)
	// Reset drops all runtime state, as for a new map.
	Reset()
	PostLoad(ctx world.PostLoadContext) error
	RegisterCallbacks(cb *world.Callbacks) error
	MarshalState() (json.RawMessage, error)
	UnmarshalState(raw json.RawMessage) error

	gameSystem()
}

// Saved is one system's persisted state.
type Saved struct {
	Name  string          `json:"name"`
	State json.RawMessage `json:"state"`
}

type Registry struct {
	reg *coresys.Registry[GameSystem]
	log *zap.Logger
}

func NewRegistry(capacity int, log *zap.Logger) *Registry {
	return &Registry{reg: coresys.NewRegistry[GameSystem](capacity), log: log}
}

// NewDefault registers the standard systems: settlers, workforce and
// ambient effects, in that order.
func NewDefault(log *zap.Logger) (*Registry, error) {
	r := NewRegistry(DefaultCapacity, log)
	for _, s := range []GameSystem{NewSettlersSpawner(), NewWorkforce(), NewAmbientEffects()} {
		if _, err := r.Register(s); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) Register(s GameSystem) (ID, error) {
	id, err := r.reg.Register(s)
	if err != nil {
		return id, fmt.Errorf("register %s: %w", s.Name(), err)
	}
	r.log.Debug("game system registered", zap.String("system", s.Name()), zap.Stringer("id", id))
	return id, nil
}

func (r *Registry) Len() int { return r.reg.Len() }

// Each visits systems in registration order.
func (r *Registry) Each(fn func(ID, GameSystem)) { r.reg.Each(fn) }

func (r *Registry) Update(q *world.Query) {
	r.reg.Each(func(_ ID, s GameSystem) { s.Update(q) })
}

func (r *Registry) Reset() {
	r.reg.Each(func(_ ID, s GameSystem) { s.Reset() })
}

func (r *Registry) RegisterCallbacks(cb *world.Callbacks) error {
	var errs []error
	r.reg.Each(func(_ ID, s GameSystem) {
		if err := s.RegisterCallbacks(cb); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	})
	return errors.Join(errs...)
}

func (r *Registry) PostLoad(ctx world.PostLoadContext) error {
	var errs []error
	r.reg.Each(func(_ ID, s GameSystem) {
		if err := s.PostLoad(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	})
	return errors.Join(errs...)
}

// Save captures every system's state in registration order.
func (r *Registry) Save() ([]Saved, error) {
	out := make([]Saved, 0, r.reg.Len())
	var err error
	r.reg.Each(func(_ ID, s GameSystem) {
		if err != nil {
			return
		}
		var raw json.RawMessage
		raw, err = s.MarshalState()
		if err != nil {
			err = fmt.Errorf("save %s: %w", s.Name(), err)
			return
		}
		out = append(out, Saved{Name: s.Name(), State: raw})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Load restores systems by name. Systems missing from saved are reset;
// saved entries for unknown systems are logged and ignored.
func (r *Registry) Load(saved []Saved) error {
	byName := make(map[string]json.RawMessage, len(saved))
	for _, s := range saved {
		byName[s.Name] = s.State
	}
	var errs []error
	r.reg.Each(func(_ ID, s GameSystem) {
		raw, ok := byName[s.Name()]
		if !ok {
			s.Reset()
			return
		}
		delete(byName, s.Name())
		if err := s.UnmarshalState(raw); err != nil {
			errs = append(errs, fmt.Errorf("load %s: %w", s.Name(), err))
		}
	})
	for name := range byName {
		r.log.Warn("saved state for unknown game system ignored", zap.String("system", name))
	}
	return errors.Join(errs...)
}

// Find resolves id to the concrete system type T.
func Find[T GameSystem](r *Registry, id ID) (T, bool) {
	return coresys.Find[T](r.reg, id)
}

// FindByType returns the first registered system of type T.
func FindByType[T GameSystem](r *Registry) (T, bool) {
	var out T
	found := false
	r.reg.Each(func(_ ID, s GameSystem) {
		if found {
			return
		}
		out, found = s.(T)
	})
	return out, found
}

func marshalState(v any) (json.RawMessage, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(b), nil
}
