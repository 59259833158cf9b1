package cli

import (
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/tnissen375/dstack/pkg/providers"
	"github.com/tnissen375/dstack/pkg/workflows"
)

func NewLsCmd() *cobra.Command {
	root := "."
	cmd := &cobra.Command{
		Use:   "ls",
		Short: "list the workflows declared in the repo",
		Example: `
  dstack ls
  dstack ls --root path/to/repo
		`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := workflows.ParseFile(workflows.DefaultPath(root))
			if err != nil {
				return err
			}
			t := table.NewWriter()
			t.SetOutputMirror(os.Stdout)
			t.AppendHeader(table.Row{"Workflow", "Provider", "Deps", "Artifacts"})
			for _, wf := range file.Workflows {
				artifacts := make([]string, 0, len(wf.Artifacts))
				for _, a := range wf.Artifacts {
					artifacts = append(artifacts, a.Path)
				}
				t.AppendRow(table.Row{
					wf.Name,
					wf.Provider,
					strings.Join(wf.Deps, ", "),
					strings.Join(artifacts, ", "),
				})
			}
			t.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&root, "root", root, "repo root containing .dstack/workflows.yaml")
	return cmd
}

func NewValidateCmd() *cobra.Command {
	root := "."
	cmd := &cobra.Command{
		Use:          "validate",
		Short:        "validate the workflows file",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := workflows.ParseFile(workflows.DefaultPath(root))
			if err != nil {
				return err
			}
			if err := workflows.Validate(file, providers.Has); err != nil {
				return err
			}
			cmd.Printf("%d workflows OK\n", len(file.Workflows))
			return nil
		},
	}
	cmd.Flags().StringVar(&root, "root", root, "repo root containing .dstack/workflows.yaml")
	return cmd
}
