package workflows

import (
	"fmt"
	"path"
	"strings"

	"github.com/tnissen375/dstack/pkg/errors"
	"github.com/tnissen375/dstack/pkg/types"
)

const MaxPortCount = 64

// KnownProviderFunc reports whether a provider name is registered.
type KnownProviderFunc func(name string) bool

func Validate(file *types.WorkflowsFile, knownProvider KnownProviderFunc) error {
	if len(file.Workflows) == 0 {
		return errors.NewWorkflowInvalidError("no workflows defined")
	}
	names := make(map[string]bool, len(file.Workflows))
	for i := range file.Workflows {
		wf := &file.Workflows[i]
		if wf.Name == "" {
			return errors.NewWorkflowInvalidError("workflow missing name")
		}
		if names[wf.Name] {
			return errors.NewWorkflowInvalidError(fmt.Sprintf("duplicate workflow name: %s", wf.Name))
		}
		names[wf.Name] = true
	}
	for i := range file.Workflows {
		if err := validateWorkflow(&file.Workflows[i], names, knownProvider); err != nil {
			return err
		}
	}
	return nil
}

func validateWorkflow(wf *types.Workflow, names map[string]bool, knownProvider KnownProviderFunc) error {
	if wf.Provider == "" {
		return errors.NewWorkflowInvalidError(fmt.Sprintf("workflow %s: missing provider", wf.Name))
	}
	if knownProvider != nil && !knownProvider(wf.Provider) {
		return errors.NewProviderUnknownError(wf.Provider)
	}
	for _, dep := range wf.Deps {
		// external deps are referenced as <repo>:<workflow>
		if strings.Contains(dep, ":") {
			continue
		}
		if !names[dep] {
			return errors.NewWorkflowInvalidError(fmt.Sprintf("workflow %s: unknown dep: %s", wf.Name, dep))
		}
		if dep == wf.Name {
			return errors.NewWorkflowInvalidError(fmt.Sprintf("workflow %s: depends on itself", wf.Name))
		}
	}
	for _, artifact := range wf.Artifacts {
		if err := validateArtifactPath(artifact.Path); err != nil {
			return errors.NewWorkflowInvalidError(fmt.Sprintf("workflow %s: %v", wf.Name, err))
		}
	}
	if _, err := wf.Resources.Parse(); err != nil {
		return errors.NewResourceInvalidError(fmt.Sprintf("workflow %s: %v", wf.Name, err))
	}
	if wf.Ports < 0 || wf.Ports > MaxPortCount {
		return errors.NewWorkflowInvalidError(fmt.Sprintf("workflow %s: ports must be between 0 and %d", wf.Name, MaxPortCount))
	}
	if wf.Port < 0 || wf.Port > 65535 {
		return errors.NewWorkflowInvalidError(fmt.Sprintf("workflow %s: port out of range", wf.Name))
	}
	return nil
}

func validateArtifactPath(p string) error {
	if p == "" {
		return fmt.Errorf("artifact path is empty")
	}
	if path.IsAbs(p) {
		return fmt.Errorf("artifact path must be relative: %s", p)
	}
	clean := path.Clean(p)
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return fmt.Errorf("artifact path escapes the workspace: %s", p)
	}
	return nil
}
