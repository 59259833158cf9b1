package cli

import (
	"os"
	"strings"
	"testing"

	"gopkg.in/yaml.v2"

	"github.com/tnissen375/dstack/pkg/providers"
	"github.com/tnissen375/dstack/pkg/types"
	"github.com/tnissen375/dstack/pkg/workflows"
)

func TestInitWorkflows(t *testing.T) {
	root := t.TempDir()
	if err := InitWorkflows(root, false); err != nil {
		t.Fatal(err)
	}

	// second init without force refuses to overwrite
	if err := InitWorkflows(root, false); err == nil {
		t.Error("expected error on existing workflows file")
	}
	if err := InitWorkflows(root, true); err != nil {
		t.Errorf("force init failed: %v", err)
	}

	file, err := workflows.ParseFile(workflows.DefaultPath(root))
	if err != nil {
		t.Fatal(err)
	}
	if err := workflows.Validate(file, providers.Has); err != nil {
		t.Errorf("scaffolded file does not validate: %v", err)
	}
	if len(file.Workflows) != 1 || file.Workflows[0].Name != "train" {
		t.Errorf("workflows = %+v", file.Workflows)
	}
}

func TestInitWorkflowsRejectsBadPath(t *testing.T) {
	root := t.TempDir()
	target := workflows.DefaultPath(root)
	if err := os.MkdirAll(target, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := InitWorkflows(root, false); err == nil {
		t.Error("expected error when target is a directory")
	}
}

func TestWorkflowDocOrder(t *testing.T) {
	wf := &types.Workflow{
		Name:     "train",
		Provider: "task",
		Python:   "3.10",
		Environment: map[string]string{
			"EPOCHS": "10",
		},
		Commands: []string{"python train.py"},
		Artifacts: []types.Artifact{
			{Path: "output"},
		},
		Resources: &types.Resources{
			Memory: "16GB",
			GPU:    &types.GPU{Name: "V100", Count: 4},
		},
	}
	out, err := yaml.Marshal(workflowDoc(wf))
	if err != nil {
		t.Fatal(err)
	}
	doc := string(out)

	// name comes first, provider second, regardless of struct layout
	lines := strings.Split(strings.TrimSpace(doc), "\n")
	if !strings.HasPrefix(lines[0], "name:") || !strings.HasPrefix(lines[1], "provider:") {
		t.Errorf("unexpected key order:\n%s", doc)
	}
	for _, want := range []string{"python: \"3.10\"", "memory: 16GB", "name: V100", "count: 4"} {
		if !strings.Contains(doc, want) {
			t.Errorf("missing %q in:\n%s", want, doc)
		}
	}
}
