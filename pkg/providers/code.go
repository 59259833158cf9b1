package providers

import (
	"fmt"

	"github.com/tnissen375/dstack/pkg/types"
)

const openvscodeVersion = "1.82.2"

// CodeProvider launches a browser IDE session on the first job port.
type CodeProvider struct {
	base
}

func (p *CodeProvider) Name() string { return "code" }

func (p *CodeProvider) Load(workflow *types.Workflow, runName string) error {
	return p.load(workflow, runName)
}

func (p *CodeProvider) JobSpecs() ([]types.JobSpec, error) {
	token := appToken()

	commands := []string{
		fmt.Sprintf("curl -fsSL https://github.com/gitpod-io/openvscode-server/releases/download/openvscode-server-v%[1]s/openvscode-server-v%[1]s-linux-x64.tar.gz -o /tmp/openvscode-server.tar.gz", openvscodeVersion),
		"mkdir -p /opt/openvscode-server",
		"tar -xzf /tmp/openvscode-server.tar.gz -C /opt/openvscode-server --strip-components=1",
	}
	commands = append(commands, p.setupCommands()...)
	commands = append(commands,
		`/opt/openvscode-server/bin/openvscode-server --host 0.0.0.0 --port $PORT_0 --connection-token $TOKEN`,
	)

	spec := p.jobSpec()
	spec.Commands = commands
	spec.PortCount = 1
	if spec.Env == nil {
		spec.Env = map[string]string{}
	}
	spec.Env["TOKEN"] = token
	spec.Apps = []types.AppSpec{{
		PortIndex:      0,
		Name:           "code",
		URLQueryParams: map[string]string{"tkn": token},
	}}
	return []types.JobSpec{spec}, nil
}
