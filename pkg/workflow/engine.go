// Copyright 2025 UkweliDB Authors
//
// Engine is a stateless validator over a loaded workflow catalog, shaped
// after the teacher's plugin registry (pkg/strategy/registry.go): a
// mutex-guarded map of named definitions with a "not found" error for an
// unknown id, here repurposed from chain execution strategies to
// workflow state machines. Loading an id that is already present
// replaces it rather than failing.
package workflow

import (
	"fmt"
	"sync"

	"github.com/ukwelidb/ukwelidb/pkg/metrics"
)

// Engine holds a catalog of loaded workflows, keyed by workflow id.
type Engine struct {
	mu      sync.RWMutex
	catalog map[string]*Workflow
}

// NewEngine creates an empty workflow catalog.
func NewEngine() *Engine {
	return &Engine{catalog: make(map[string]*Workflow)}
}

// LoadWorkflow validates a Definition and stores it into the catalog.
// Later loads under the same id overwrite the previous definition.
//
// Validates: (a) states is non-empty, (b) initial_state references a
// defined state id, (c) every transition's from_state/to_state reference
// defined state ids (the source omits (c); this spec enforces it).
func (e *Engine) LoadWorkflow(def Definition) error {
	if len(def.States) == 0 {
		return newDefinitionError("workflow has no states")
	}

	statesByID := make(map[string]State, len(def.States))
	for _, s := range def.States {
		statesByID[s.ID] = s
	}

	if _, ok := statesByID[def.InitialState]; !ok {
		return newDefinitionError(fmt.Sprintf("initial_state %q is not a defined state", def.InitialState))
	}

	for _, t := range def.Transitions {
		if _, ok := statesByID[t.From]; !ok {
			return newDefinitionError(fmt.Sprintf("transition %q: from_state %q is not a defined state", t.Name, t.From))
		}
		if _, ok := statesByID[t.To]; !ok {
			return newDefinitionError(fmt.Sprintf("transition %q: to_state %q is not a defined state", t.Name, t.To))
		}
	}

	w := &Workflow{
		ID:           def.ID,
		Name:         def.Name,
		Description:  def.Description,
		States:       def.States,
		Transitions:  def.Transitions,
		InitialState: def.InitialState,
		statesByID:   statesByID,
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.catalog[def.ID] = w
	return nil
}

// Workflow returns the loaded workflow for id, if any.
func (e *Engine) Workflow(workflowID string) (*Workflow, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	w, ok := e.catalog[workflowID]
	return w, ok
}

// GetValidTransitions returns every transition whose from_state equals
// currentState.
func (e *Engine) GetValidTransitions(workflowID, currentState string) ([]Transition, error) {
	w, ok := e.Workflow(workflowID)
	if !ok {
		return nil, newValidationError(fmt.Sprintf("unknown workflow %q", workflowID))
	}

	var out []Transition
	for _, t := range w.Transitions {
		if t.From == currentState {
			out = append(out, t)
		}
	}
	return out, nil
}

// RoleHolder is the minimal signer shape the engine needs: something that
// can report the roles it holds. pkg/ledger.User satisfies this.
type RoleHolder interface {
	RoleList() []string
}

// ValidateTransition locates the unique (from, to) transition in
// workflowID and checks that the union of roles across signers covers
// every role the transition requires. payload is accepted but not
// inspected in v1 (see HasField in types.go).
func (e *Engine) ValidateTransition(workflowID, from, to string, signers []RoleHolder, payload string) error {
	w, ok := e.Workflow(workflowID)
	if !ok {
		return newValidationError(fmt.Sprintf("unknown workflow %q", workflowID))
	}

	var transition *Transition
	for i := range w.Transitions {
		t := &w.Transitions[i]
		if t.From == from && t.To == to {
			transition = t
			break
		}
	}
	if transition == nil {
		return newValidationError(fmt.Sprintf("no transition from %q to %q in workflow %q", from, to, workflowID))
	}

	roleUnion := make(map[string]struct{})
	for _, s := range signers {
		for _, r := range s.RoleList() {
			roleUnion[r] = struct{}{}
		}
	}

	validators := make([]Validator, 0, len(transition.RequiredRoles))
	for _, role := range transition.RequiredRoles {
		validators = append(validators, HasRole{Required: role})
	}
	if len(validators) == 0 {
		validators = append(validators, AlwaysTrue{})
	}

	var missing []string
	for _, v := range validators {
		if err := v.Validate(payload, roleUnion); err != nil {
			if hr, ok := v.(HasRole); ok {
				missing = append(missing, hr.Required)
			}
		}
	}
	if len(missing) > 0 {
		metrics.TransitionsValidated.WithLabelValues("rejected").Inc()
		return newMissingRolesError(missing)
	}

	metrics.TransitionsValidated.WithLabelValues("accepted").Inc()
	return nil
}
