package providers

import (
	"github.com/tnissen375/dstack/pkg/errors"
	"github.com/tnissen375/dstack/pkg/types"
)

// TaskProvider runs the workflow's commands to completion.
type TaskProvider struct {
	base
}

func (p *TaskProvider) Name() string { return "task" }

func (p *TaskProvider) Load(workflow *types.Workflow, runName string) error {
	if err := p.load(workflow, runName); err != nil {
		return err
	}
	if len(workflow.Commands) == 0 {
		return errors.NewWorkflowInvalidError("task workflow has no commands")
	}
	return nil
}

func (p *TaskProvider) JobSpecs() ([]types.JobSpec, error) {
	spec := p.jobSpec()
	spec.Commands = append(p.setupCommands(), p.workflow.Commands...)
	spec.PortCount = p.workflow.Ports
	return []types.JobSpec{spec}, nil
}
