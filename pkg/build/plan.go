package build

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Step names of an image release: one docker build fanning out to
// per-target publish steps.
const (
	StepBuild         = "build"
	StepPublishAWS    = "publish-aws"
	StepPublishAzure  = "publish-azure"
	StepPublishGCP    = "publish-gcp"
	StepPublishNebius = "publish-nebius"
)

type Result string

const (
	ResultSuccess Result = "success"
	ResultFailed  Result = "failed"
	ResultSkipped Result = "skipped"
)

// Inputs mirror the release toggles: which targets to publish to and
// whether the docker build itself runs.
type Inputs struct {
	ImageVersion string
	Staging      bool
	BuildDocker  bool
	BuildAWS     bool
	BuildAzure   bool
	BuildGCP     bool
	BuildNebius  bool
}

type Step struct {
	Name    string
	Enabled bool
	Needs   []string
}

type Plan struct {
	ImageVersion string
	Staging      bool
	Build        Step
	Publish      []Step
}

func NewPlan(in Inputs) (Plan, error) {
	if in.ImageVersion == "" {
		return Plan{}, fmt.Errorf("image version not set")
	}
	plan := Plan{
		ImageVersion: in.ImageVersion,
		Staging:      in.Staging,
		Build:        Step{Name: StepBuild, Enabled: in.BuildDocker},
	}
	publish := []struct {
		name    string
		enabled bool
	}{
		{StepPublishAWS, in.BuildAWS},
		{StepPublishAzure, in.BuildAzure},
		{StepPublishGCP, in.BuildGCP},
		{StepPublishNebius, in.BuildNebius},
	}
	for _, p := range publish {
		plan.Publish = append(plan.Publish, Step{
			Name:    p.name,
			Enabled: p.enabled,
			Needs:   []string{StepBuild},
		})
	}
	return plan, nil
}

// Runner executes a single step.
type Runner func(ctx context.Context, step Step) error

// Execute runs the build step and then the enabled publish steps
// concurrently. A publish step runs only when the build step succeeded
// or was skipped; a failed build skips every dependent step.
func Execute(ctx context.Context, plan Plan, run Runner) map[string]Result {
	results := map[string]Result{}

	buildResult := ResultSkipped
	if plan.Build.Enabled {
		if err := run(ctx, plan.Build); err != nil {
			buildResult = ResultFailed
		} else {
			buildResult = ResultSuccess
		}
	}
	results[plan.Build.Name] = buildResult

	gateOpen := buildResult == ResultSuccess || buildResult == ResultSkipped

	var mu sync.Mutex
	eg, ctx := errgroup.WithContext(ctx)
	for _, step := range plan.Publish {
		step := step
		if !step.Enabled || !gateOpen {
			results[step.Name] = ResultSkipped
			continue
		}
		eg.Go(func() error {
			result := ResultSuccess
			if err := run(ctx, step); err != nil {
				result = ResultFailed
			}
			mu.Lock()
			results[step.Name] = result
			mu.Unlock()
			return nil
		})
	}
	_ = eg.Wait()
	return results
}
