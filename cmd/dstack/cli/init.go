package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tnissen375/dstack/pkg/types"
	"github.com/tnissen375/dstack/pkg/workflows"
)

func NewInitCmd() *cobra.Command {
	force := false
	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "scaffold a .dstack/workflows.yaml",
		Example: `
  dstack init .
		`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return errors.New("at least one argument is required")
			}
			return InitWorkflows(args[0], force)
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing workflows file")
	return cmd
}

func InitWorkflows(root string, force bool) error {
	target := workflows.DefaultPath(root)
	if _, err := os.Stat(target); err == nil && !force {
		return fmt.Errorf("%s already exists", target)
	} else if err != nil && !os.IsNotExist(err) {
		return err
	}

	file := &types.WorkflowsFile{
		Workflows: []types.Workflow{
			{
				Name:     "train",
				Provider: "task",
				Commands: []string{"python train.py"},
				Artifacts: []types.Artifact{
					{Path: "output"},
				},
				Resources: &types.Resources{
					Memory: "16GB",
				},
			},
		},
	}
	content, err := workflows.Marshal(file)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(target, content, 0o644); err != nil {
		return err
	}
	fmt.Printf("Workflows initialized in %s\n", target)
	return nil
}
