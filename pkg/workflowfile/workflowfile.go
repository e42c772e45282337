// Copyright 2025 UkweliDB Authors
//
// Package workflowfile loads workflow.Definition values from YAML (or
// JSON, a valid subset of YAML) files on disk, so a workflow can be
// authored once outside a program's source and loaded by ukwelictl or
// an embedding application at startup.
package workflowfile

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ukwelidb/ukwelidb/pkg/workflow"
)

// fileState mirrors workflow.State for YAML tags (workflow.State has no
// struct tags of its own, since pkg/workflow is deliberately
// format-agnostic).
type fileState struct {
	ID    string `yaml:"id"`
	Label string `yaml:"label"`
}

type fileTransition struct {
	From          string   `yaml:"from"`
	To            string   `yaml:"to"`
	Name          string   `yaml:"name"`
	RequiredRoles []string `yaml:"required_roles"`
}

type fileDefinition struct {
	ID           string           `yaml:"id"`
	Name         string           `yaml:"name"`
	Description  string           `yaml:"description"`
	States       []fileState      `yaml:"states"`
	Transitions  []fileTransition `yaml:"transitions"`
	InitialState string           `yaml:"initial_state"`
}

// Load reads a workflow definition from path and converts it into a
// workflow.Definition. It does not validate the definition — callers
// pass the result to workflow.Engine.LoadWorkflow, which performs the
// validation (states non-empty, initial_state defined, every transition
// endpoint defined).
func Load(path string) (workflow.Definition, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return workflow.Definition{}, fmt.Errorf("workflowfile: read %s: %w", path, err)
	}

	var fd fileDefinition
	if err := yaml.Unmarshal(raw, &fd); err != nil {
		return workflow.Definition{}, workflow.NewParsingError(fmt.Sprintf("parse %s: %v", path, err))
	}

	states := make([]workflow.State, len(fd.States))
	for i, s := range fd.States {
		states[i] = workflow.State{ID: s.ID, Label: s.Label}
	}

	transitions := make([]workflow.Transition, len(fd.Transitions))
	for i, t := range fd.Transitions {
		transitions[i] = workflow.Transition{
			From:          t.From,
			To:            t.To,
			Name:          t.Name,
			RequiredRoles: t.RequiredRoles,
		}
	}

	return workflow.Definition{
		ID:           fd.ID,
		Name:         fd.Name,
		Description:  fd.Description,
		States:       states,
		Transitions:  transitions,
		InitialState: fd.InitialState,
	}, nil
}
