package providers

import (
	"strings"
	"testing"

	"github.com/tnissen375/dstack/pkg/errors"
	"github.com/tnissen375/dstack/pkg/types"
)

func TestRegistry(t *testing.T) {
	for _, name := range []string{"task", "code", "notebook", "service"} {
		if !Has(name) {
			t.Errorf("provider %s not registered", name)
		}
		p, err := Get(name)
		if err != nil {
			t.Fatalf("Get(%s): %v", name, err)
		}
		if p.Name() != name {
			t.Errorf("Name() = %s, want %s", p.Name(), name)
		}
	}
	if _, err := Get("spark"); !errors.IsErrCode(err, errors.ErrCodeProviderUnknown) {
		t.Errorf("Get(spark) error = %v, want PROVIDER_UNKNOWN", err)
	}
}

func TestTaskProvider(t *testing.T) {
	wf := &types.Workflow{
		Name:         "train",
		Provider:     "task",
		Commands:     []string{"python train.py"},
		Environment:  map[string]string{"EPOCHS": "10"},
		Requirements: "requirements.txt",
		BeforeRun:    []string{"apt-get install -y git"},
		Artifacts:    []types.Artifact{{Path: "checkpoints", Mount: true}},
		Resources:    &types.Resources{GPU: &types.GPU{Count: 4}},
	}
	p := &TaskProvider{}
	if err := p.Load(wf, "train-1"); err != nil {
		t.Fatal(err)
	}
	specs, err := p.JobSpecs()
	if err != nil {
		t.Fatal(err)
	}
	if len(specs) != 1 {
		t.Fatalf("expected one job spec, got %d", len(specs))
	}
	spec := specs[0]
	if !strings.Contains(spec.Image, "-cuda-") {
		t.Errorf("gpu workflow should use a cuda image, got %s", spec.Image)
	}
	wantOrder := []string{
		`export EPOCHS="10"`,
		"pip install -r requirements.txt",
		"apt-get install -y git",
		"python train.py",
	}
	if len(spec.Commands) != len(wantOrder) {
		t.Fatalf("commands = %v", spec.Commands)
	}
	for i, want := range wantOrder {
		if spec.Commands[i] != want {
			t.Errorf("commands[%d] = %q, want %q", i, spec.Commands[i], want)
		}
	}
	if spec.Requirements.GPUCount != 4 {
		t.Errorf("requirements = %+v", spec.Requirements)
	}
	if len(spec.Artifacts) != 1 || spec.Artifacts[0].Path != "checkpoints" {
		t.Errorf("artifacts = %+v", spec.Artifacts)
	}
}

func TestTaskProviderNoCommands(t *testing.T) {
	p := &TaskProvider{}
	err := p.Load(&types.Workflow{Name: "noop", Provider: "task"}, "noop-1")
	if !errors.IsErrCode(err, errors.ErrCodeWorkflowInvalid) {
		t.Fatalf("error = %v, want WORKFLOW_INVALID", err)
	}
}

func TestNotebookProvider(t *testing.T) {
	wf := &types.Workflow{Name: "nb", Provider: "notebook", Python: "3.11"}
	p := &NotebookProvider{}
	if err := p.Load(wf, "nb-1"); err != nil {
		t.Fatal(err)
	}
	specs, err := p.JobSpecs()
	if err != nil {
		t.Fatal(err)
	}
	spec := specs[0]
	if spec.PortCount != 1 {
		t.Errorf("port count = %d, want 1", spec.PortCount)
	}
	if !strings.Contains(spec.Image, "py3.11") || strings.Contains(spec.Image, "-cuda-") {
		t.Errorf("image = %s", spec.Image)
	}
	token := spec.Env["TOKEN"]
	if token == "" {
		t.Fatal("no token in env")
	}
	if len(spec.Apps) != 1 || spec.Apps[0].URLQueryParams["token"] != token {
		t.Errorf("apps = %+v", spec.Apps)
	}
	if spec.Commands[len(spec.Commands)-1] != "jupyter notebook" {
		t.Errorf("last command = %s", spec.Commands[len(spec.Commands)-1])
	}
	// the workflow's own environment must stay untouched
	if len(wf.Environment) != 0 {
		t.Errorf("workflow environment mutated: %v", wf.Environment)
	}
}

func TestServiceProvider(t *testing.T) {
	p := &ServiceProvider{}
	err := p.Load(&types.Workflow{Name: "api", Provider: "service", Commands: []string{"uvicorn app:api"}}, "api-1")
	if !errors.IsErrCode(err, errors.ErrCodeWorkflowInvalid) {
		t.Fatalf("service without port: error = %v, want WORKFLOW_INVALID", err)
	}

	if err := p.Load(&types.Workflow{
		Name: "api", Provider: "service",
		Commands: []string{"uvicorn app:api"},
		Port:     8000,
	}, "api-1"); err != nil {
		t.Fatal(err)
	}
	specs, err := p.JobSpecs()
	if err != nil {
		t.Fatal(err)
	}
	if len(specs[0].Apps) != 1 || specs[0].Apps[0].Name != "service" {
		t.Errorf("apps = %+v", specs[0].Apps)
	}
}

func TestCodeProviderToken(t *testing.T) {
	p := &CodeProvider{}
	if err := p.Load(&types.Workflow{Name: "ide", Provider: "code"}, "ide-1"); err != nil {
		t.Fatal(err)
	}
	specs, err := p.JobSpecs()
	if err != nil {
		t.Fatal(err)
	}
	if specs[0].Env["TOKEN"] == "" {
		t.Error("code provider did not generate a token")
	}
}
