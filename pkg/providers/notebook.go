package providers

import (
	"github.com/tnissen375/dstack/pkg/types"
)

// NotebookProvider launches a jupyter notebook bound to the first job
// port, protected by a generated token.
type NotebookProvider struct {
	base
	version string
}

func (p *NotebookProvider) Name() string { return "notebook" }

func (p *NotebookProvider) Load(workflow *types.Workflow, runName string) error {
	if err := p.load(workflow, runName); err != nil {
		return err
	}
	p.version = workflow.Version
	return nil
}

func (p *NotebookProvider) JobSpecs() ([]types.JobSpec, error) {
	token := appToken()

	jupyter := "pip install jupyter"
	if p.version != "" {
		jupyter += "==" + p.version
	}
	commands := []string{
		jupyter,
		"mkdir -p /root/.jupyter",
		`echo "c.NotebookApp.allow_root = True" > /root/.jupyter/jupyter_notebook_config.py`,
		`echo "c.NotebookApp.allow_origin = '*'" >> /root/.jupyter/jupyter_notebook_config.py`,
		`echo "c.NotebookApp.open_browser = False" >> /root/.jupyter/jupyter_notebook_config.py`,
		`echo "c.NotebookApp.port = $PORT_0" >> /root/.jupyter/jupyter_notebook_config.py`,
		`echo "c.NotebookApp.token = '$TOKEN'" >> /root/.jupyter/jupyter_notebook_config.py`,
		`echo "c.NotebookApp.ip = '0.0.0.0'" >> /root/.jupyter/jupyter_notebook_config.py`,
	}
	commands = append(commands, p.setupCommands()...)
	commands = append(commands, "jupyter notebook")

	spec := p.jobSpec()
	spec.Commands = commands
	spec.PortCount = 1
	if spec.Env == nil {
		spec.Env = map[string]string{}
	}
	spec.Env["TOKEN"] = token
	spec.Apps = []types.AppSpec{{
		PortIndex:      0,
		Name:           "notebook",
		URLQueryParams: map[string]string{"token": token},
	}}
	return []types.JobSpec{spec}, nil
}
