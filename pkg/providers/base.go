package providers

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/tnissen375/dstack/pkg/errors"
	"github.com/tnissen375/dstack/pkg/images"
	"github.com/tnissen375/dstack/pkg/types"
	"github.com/tnissen375/dstack/pkg/version"
)

const DefaultPythonVersion = "3.10"

// base carries the workflow fields every provider understands: python
// version, environment, requirements file, setup commands, artifacts
// and resource requirements.
type base struct {
	workflow     *types.Workflow
	runName      string
	python       string
	requirements *types.Requirements
}

func (b *base) load(workflow *types.Workflow, runName string) error {
	if workflow == nil {
		return errors.NewWorkflowInvalidError("workflow is nil")
	}
	req, err := workflow.Resources.Parse()
	if err != nil {
		return errors.NewResourceInvalidError(err.Error())
	}
	b.workflow = workflow
	b.runName = runName
	b.python = workflow.Python
	if b.python == "" {
		b.python = DefaultPythonVersion
	}
	b.requirements = req
	return nil
}

func (b *base) cudaRequired() bool {
	return b.requirements != nil && b.requirements.GPUCount > 0
}

func (b *base) imageName() string {
	return images.BaseImage(b.python, version.Get().Version, b.cudaRequired())
}

// setupCommands are the common preamble: exported environment, optional
// requirements install, then the workflow's before_run lines.
func (b *base) setupCommands() []string {
	commands := []string{}
	if env := b.workflow.Environment; len(env) > 0 {
		keys := make([]string, 0, len(env))
		for k := range env {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			commands = append(commands, fmt.Sprintf("export %s=%q", k, env[k]))
		}
	}
	if b.workflow.Requirements != "" {
		commands = append(commands, "pip install -r "+b.workflow.Requirements)
	}
	commands = append(commands, b.workflow.BeforeRun...)
	return commands
}

func (b *base) jobSpec() types.JobSpec {
	var env map[string]string
	if len(b.workflow.Environment) > 0 {
		env = make(map[string]string, len(b.workflow.Environment))
		for k, v := range b.workflow.Environment {
			env[k] = v
		}
	}
	return types.JobSpec{
		Image:        b.imageName(),
		Env:          env,
		WorkingDir:   b.workflow.WorkingDir,
		Artifacts:    b.workflow.Artifacts,
		Requirements: b.requirements,
	}
}

func appToken() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return hex.EncodeToString(buf)
}
