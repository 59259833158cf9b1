package providers

import (
	"github.com/tnissen375/dstack/pkg/errors"
	"github.com/tnissen375/dstack/pkg/types"
)

// ServiceProvider runs the workflow's commands as a long-lived service
// with one app exposed on the declared port.
type ServiceProvider struct {
	base
	port int
}

func (p *ServiceProvider) Name() string { return "service" }

func (p *ServiceProvider) Load(workflow *types.Workflow, runName string) error {
	if err := p.load(workflow, runName); err != nil {
		return err
	}
	if len(workflow.Commands) == 0 {
		return errors.NewWorkflowInvalidError("service workflow has no commands")
	}
	if workflow.Port == 0 {
		return errors.NewWorkflowInvalidError("service workflow has no port")
	}
	p.port = workflow.Port
	return nil
}

func (p *ServiceProvider) JobSpecs() ([]types.JobSpec, error) {
	spec := p.jobSpec()
	spec.Commands = append(p.setupCommands(), p.workflow.Commands...)
	spec.PortCount = 1
	spec.Apps = []types.AppSpec{{
		PortIndex: 0,
		Name:      "service",
	}}
	return []types.JobSpec{spec}, nil
}
