package workflowfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ukwelidb/ukwelidb/pkg/workflow"
)

const sampleYAML = `
id: doc-approval
name: Document Approval
description: Draft -> review -> published
states:
  - id: draft
    label: Draft
  - id: review
    label: In Review
  - id: published
    label: Published
transitions:
  - from: draft
    to: review
    name: submit
    required_roles: [editor]
  - from: review
    to: published
    name: publish
    required_roles: [admin, editor]
initial_state: draft
`

func TestLoadParsesAndValidates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc-approval.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	def, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if def.ID != "doc-approval" || len(def.States) != 3 || len(def.Transitions) != 2 {
		t.Fatalf("unexpected definition: %+v", def)
	}

	e := workflow.NewEngine()
	if err := e.LoadWorkflow(def); err != nil {
		t.Fatalf("loaded definition fails engine validation: %v", err)
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("id: [unterminated"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error for malformed YAML")
	}
}
