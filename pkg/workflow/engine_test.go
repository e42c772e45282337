package workflow

import (
	"errors"
	"testing"
)

type roleSet []string

func (r roleSet) RoleList() []string { return r }

func sampleDefinition() Definition {
	return Definition{
		ID:   "doc-approval",
		Name: "Document Approval",
		States: []State{
			{ID: "draft", Label: "Draft"},
			{ID: "review", Label: "In Review"},
			{ID: "published", Label: "Published"},
		},
		Transitions: []Transition{
			{From: "draft", To: "review", Name: "submit", RequiredRoles: []string{"editor"}},
			{From: "review", To: "published", Name: "publish", RequiredRoles: []string{"admin", "editor"}},
		},
		InitialState: "draft",
	}
}

func TestLoadWorkflowValidation(t *testing.T) {
	e := NewEngine()
	if err := e.LoadWorkflow(sampleDefinition()); err != nil {
		t.Fatalf("load workflow: %v", err)
	}

	bad := sampleDefinition()
	bad.InitialState = "missing"
	if err := e.LoadWorkflow(bad); err == nil {
		t.Fatal("expected error for undefined initial_state")
	}

	bad2 := sampleDefinition()
	bad2.Transitions = append(bad2.Transitions, Transition{From: "review", To: "archived", Name: "archive"})
	if err := e.LoadWorkflow(bad2); err == nil {
		t.Fatal("expected error for transition referencing undefined state")
	}
}

func TestValidateTransitionScenario(t *testing.T) {
	e := NewEngine()
	if err := e.LoadWorkflow(sampleDefinition()); err != nil {
		t.Fatalf("load workflow: %v", err)
	}

	editor := roleSet{"editor"}
	if err := e.ValidateTransition("doc-approval", "draft", "review", []RoleHolder{editor}, ""); err != nil {
		t.Fatalf("expected draft->review to succeed: %v", err)
	}

	admin := roleSet{"admin"}
	err := e.ValidateTransition("doc-approval", "review", "published", []RoleHolder{admin}, "")
	var werr *Error
	if !errors.As(err, &werr) || len(werr.MissingRoles) != 1 || werr.MissingRoles[0] != "editor" {
		t.Fatalf("expected MissingRoles([editor]), got %v", err)
	}

	if err := e.ValidateTransition("doc-approval", "review", "published", []RoleHolder{admin, editor}, ""); err != nil {
		t.Fatalf("expected review->published to succeed with combined roles: %v", err)
	}
}

func TestGetValidTransitionsUnknownWorkflow(t *testing.T) {
	e := NewEngine()
	if _, err := e.GetValidTransitions("nope", "draft"); err == nil {
		t.Fatal("expected error for unknown workflow")
	}
}

func TestGetValidTransitions(t *testing.T) {
	e := NewEngine()
	if err := e.LoadWorkflow(sampleDefinition()); err != nil {
		t.Fatalf("load workflow: %v", err)
	}
	ts, err := e.GetValidTransitions("doc-approval", "draft")
	if err != nil {
		t.Fatalf("get valid transitions: %v", err)
	}
	if len(ts) != 1 || ts[0].Name != "submit" {
		t.Fatalf("unexpected transitions: %+v", ts)
	}
}
