// Copyright 2025 UkweliDB Authors
//
// Package entity tracks the current workflow state of domain entities as
// records are appended to a ledger. It adapts original_source's
// entity/state.rs and entity/tracker.rs, fixing the source's
// last_record_index field (documented there as a string, which the
// SPEC_FULL expansion corrects to a uint64 matching the ledger's record
// indices).
package entity

// State is the current workflow position of one entity: the workflow it
// is governed by, its current state id, and the index of the ledger
// record that last moved it there.
type State struct {
	EntityID        string
	WorkflowID      string
	CurrentState    string
	LastRecordIndex uint64
}

// NewState creates the initial tracked state for an entity.
func NewState(entityID, workflowID, currentState string, lastRecordIndex uint64) State {
	return State{
		EntityID:        entityID,
		WorkflowID:      workflowID,
		CurrentState:    currentState,
		LastRecordIndex: lastRecordIndex,
	}
}
