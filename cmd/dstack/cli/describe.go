package cli

import (
	"errors"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"

	"github.com/tnissen375/dstack/pkg/types"
	"github.com/tnissen375/dstack/pkg/workflows"
)

func NewDescribeCmd() *cobra.Command {
	root := "."
	cmd := &cobra.Command{
		Use:   "describe <workflow>",
		Short: "show a workflow declaration",
		Example: `
  dstack describe train
		`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return errors.New("workflow name is required")
			}
			file, err := workflows.ParseFile(workflows.DefaultPath(root))
			if err != nil {
				return err
			}
			workflow, err := workflows.Lookup(file, args[0])
			if err != nil {
				return err
			}
			out, err := yaml.Marshal(workflowDoc(workflow))
			if err != nil {
				return err
			}
			cmd.Print(string(out))
			return nil
		},
	}
	cmd.Flags().StringVar(&root, "root", root, "repo root containing .dstack/workflows.yaml")
	return cmd
}

// workflowDoc keeps the declaration order of the original file instead
// of the struct field order.
func workflowDoc(wf *types.Workflow) yaml.MapSlice {
	doc := yaml.MapSlice{
		{Key: "name", Value: wf.Name},
		{Key: "provider", Value: wf.Provider},
	}
	if len(wf.Deps) > 0 {
		doc = append(doc, yaml.MapItem{Key: "deps", Value: wf.Deps})
	}
	if wf.Python != "" {
		doc = append(doc, yaml.MapItem{Key: "python", Value: wf.Python})
	}
	if wf.Requirements != "" {
		doc = append(doc, yaml.MapItem{Key: "requirements", Value: wf.Requirements})
	}
	if len(wf.Environment) > 0 {
		doc = append(doc, yaml.MapItem{Key: "environment", Value: wf.Environment})
	}
	if len(wf.BeforeRun) > 0 {
		doc = append(doc, yaml.MapItem{Key: "before_run", Value: wf.BeforeRun})
	}
	if len(wf.Commands) > 0 {
		doc = append(doc, yaml.MapItem{Key: "commands", Value: wf.Commands})
	}
	if wf.WorkingDir != "" {
		doc = append(doc, yaml.MapItem{Key: "working_dir", Value: wf.WorkingDir})
	}
	if len(wf.Artifacts) > 0 {
		paths := make([]yaml.MapSlice, 0, len(wf.Artifacts))
		for _, a := range wf.Artifacts {
			item := yaml.MapSlice{{Key: "path", Value: a.Path}}
			if a.Mount {
				item = append(item, yaml.MapItem{Key: "mount", Value: true})
			}
			paths = append(paths, item)
		}
		doc = append(doc, yaml.MapItem{Key: "artifacts", Value: paths})
	}
	if wf.Resources != nil {
		res := yaml.MapSlice{}
		if wf.Resources.CPU > 0 {
			res = append(res, yaml.MapItem{Key: "cpu", Value: wf.Resources.CPU})
		}
		if wf.Resources.Memory != "" {
			res = append(res, yaml.MapItem{Key: "memory", Value: wf.Resources.Memory})
		}
		if wf.Resources.GPU != nil {
			gpu := yaml.MapSlice{}
			if wf.Resources.GPU.Name != "" {
				gpu = append(gpu, yaml.MapItem{Key: "name", Value: wf.Resources.GPU.Name})
			}
			gpu = append(gpu, yaml.MapItem{Key: "count", Value: wf.Resources.GPU.Count})
			if wf.Resources.GPU.Memory != "" {
				gpu = append(gpu, yaml.MapItem{Key: "memory", Value: wf.Resources.GPU.Memory})
			}
			res = append(res, yaml.MapItem{Key: "gpu", Value: gpu})
		}
		if wf.Resources.ShmSize != "" {
			res = append(res, yaml.MapItem{Key: "shm_size", Value: wf.Resources.ShmSize})
		}
		if wf.Resources.Interruptible {
			res = append(res, yaml.MapItem{Key: "interruptible", Value: true})
		}
		if wf.Resources.Local {
			res = append(res, yaml.MapItem{Key: "local", Value: true})
		}
		doc = append(doc, yaml.MapItem{Key: "resources", Value: res})
	}
	if wf.Ports > 0 {
		doc = append(doc, yaml.MapItem{Key: "ports", Value: wf.Ports})
	}
	if wf.Port > 0 {
		doc = append(doc, yaml.MapItem{Key: "port", Value: wf.Port})
	}
	return doc
}
