package workflows

import (
	"fmt"
	"os"
	"path/filepath"

	"sigs.k8s.io/yaml"

	"github.com/tnissen375/dstack/pkg/errors"
	"github.com/tnissen375/dstack/pkg/types"
)

const (
	WorkflowsDirName  = ".dstack"
	WorkflowsFileName = "workflows.yaml"
)

// DefaultPath returns the workflows file location relative to a repo root.
func DefaultPath(root string) string {
	return filepath.Join(root, WorkflowsDirName, WorkflowsFileName)
}

func Parse(data []byte) (*types.WorkflowsFile, error) {
	file := &types.WorkflowsFile{}
	if err := yaml.Unmarshal(data, file); err != nil {
		return nil, errors.NewWorkflowInvalidError(err.Error())
	}
	return file, nil
}

func ParseFile(path string) (*types.WorkflowsFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func Lookup(file *types.WorkflowsFile, name string) (*types.Workflow, error) {
	for i := range file.Workflows {
		if file.Workflows[i].Name == name {
			return &file.Workflows[i], nil
		}
	}
	return nil, errors.NewWorkflowUnknownError(name)
}

func Marshal(file *types.WorkflowsFile) ([]byte, error) {
	data, err := yaml.Marshal(file)
	if err != nil {
		return nil, fmt.Errorf("marshal workflows: %w", err)
	}
	return data, nil
}
