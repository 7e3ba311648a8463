// Package provider owns the model catalog and the process-wide selected model.
package provider

import (
	"fmt"
	"sync"

	"github.com/opalchat/opal/internal/logging"
)

// ErrUnknownModel is returned when selecting a model outside the catalog.
type ErrUnknownModel struct {
	ID string
}

func (e ErrUnknownModel) Error() string {
	return fmt.Sprintf("model %q not found", e.ID)
}

// State is the single owner of the currently selected model. Every component
// that needs the active model holds a reference to this coordinator instead
// of reading ambient globals. Writes are atomic assignments under a mutex;
// readers get whatever value is current at the moment they ask.
type State struct {
	catalog map[string]string // model id -> display name

	mu      sync.RWMutex
	current string
}

// NewState creates the model coordinator with the given catalog and
// initially selected model.
func NewState(catalog map[string]string, defaultModel string) *State {
	return &State{
		catalog: catalog,
		current: defaultModel,
	}
}

// Current returns the currently selected model id.
func (s *State) Current() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Select switches the process-wide model. Ids outside the catalog are rejected.
func (s *State) Select(id string) error {
	name, ok := s.catalog[id]
	if !ok {
		return ErrUnknownModel{ID: id}
	}

	s.mu.Lock()
	s.current = id
	s.mu.Unlock()

	logging.Infof("Model selected: %s (%s)", name, id)
	return nil
}

// Catalog returns the id -> display name catalog.
func (s *State) Catalog() map[string]string {
	return s.catalog
}

// DisplayName returns the human name for a model id, falling back to the id.
func (s *State) DisplayName(id string) string {
	if name, ok := s.catalog[id]; ok {
		return name
	}
	return id
}
