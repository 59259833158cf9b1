package build

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func allInputs() Inputs {
	return Inputs{
		ImageVersion: "0.4.2",
		BuildDocker:  true,
		BuildAWS:     true,
		BuildAzure:   true,
		BuildGCP:     true,
		BuildNebius:  true,
	}
}

func TestNewPlanRequiresVersion(t *testing.T) {
	if _, err := NewPlan(Inputs{}); err == nil {
		t.Fatal("expected error for missing image version")
	}
}

func TestExecuteAll(t *testing.T) {
	plan, err := NewPlan(allInputs())
	if err != nil {
		t.Fatal(err)
	}
	var mu sync.Mutex
	ran := map[string]bool{}
	results := Execute(context.Background(), plan, func(ctx context.Context, step Step) error {
		mu.Lock()
		ran[step.Name] = true
		mu.Unlock()
		return nil
	})
	for _, name := range []string{StepBuild, StepPublishAWS, StepPublishAzure, StepPublishGCP, StepPublishNebius} {
		if !ran[name] {
			t.Errorf("step %s did not run", name)
		}
		if results[name] != ResultSuccess {
			t.Errorf("step %s result = %s, want success", name, results[name])
		}
	}
}

func TestExecutePublishRunsWhenBuildSkipped(t *testing.T) {
	in := allInputs()
	in.BuildDocker = false
	plan, err := NewPlan(in)
	if err != nil {
		t.Fatal(err)
	}
	results := Execute(context.Background(), plan, func(ctx context.Context, step Step) error {
		if step.Name == StepBuild {
			t.Error("build step ran while disabled")
		}
		return nil
	})
	if results[StepBuild] != ResultSkipped {
		t.Errorf("build result = %s, want skipped", results[StepBuild])
	}
	if results[StepPublishAWS] != ResultSuccess {
		t.Errorf("publish-aws result = %s, want success", results[StepPublishAWS])
	}
}

func TestExecuteBuildFailureSkipsPublish(t *testing.T) {
	plan, err := NewPlan(allInputs())
	if err != nil {
		t.Fatal(err)
	}
	results := Execute(context.Background(), plan, func(ctx context.Context, step Step) error {
		if step.Name == StepBuild {
			return errors.New("buildx failed")
		}
		t.Errorf("step %s ran after build failure", step.Name)
		return nil
	})
	if results[StepBuild] != ResultFailed {
		t.Errorf("build result = %s, want failed", results[StepBuild])
	}
	for _, name := range []string{StepPublishAWS, StepPublishAzure, StepPublishGCP, StepPublishNebius} {
		if results[name] != ResultSkipped {
			t.Errorf("%s result = %s, want skipped", name, results[name])
		}
	}
}

func TestExecuteDisabledPublishSkipped(t *testing.T) {
	in := allInputs()
	in.BuildAzure = false
	plan, err := NewPlan(in)
	if err != nil {
		t.Fatal(err)
	}
	results := Execute(context.Background(), plan, func(ctx context.Context, step Step) error { return nil })
	if results[StepPublishAzure] != ResultSkipped {
		t.Errorf("publish-azure result = %s, want skipped", results[StepPublishAzure])
	}
}
