package cli

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/tnissen375/dstack/cmd/dstack/config"
	"github.com/tnissen375/dstack/pkg/providers"
	"github.com/tnissen375/dstack/pkg/types"
	"github.com/tnissen375/dstack/pkg/workflows"
)

func NewRunCmd() *cobra.Command {
	root := "."
	cmd := &cobra.Command{
		Use:   "run <workflow>",
		Short: "submit a workflow run to the hub",
		Example: `
  dstack run train
		`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := BaseContext()
			defer cancel()
			if len(args) == 0 {
				return errors.New("workflow name is required")
			}

			file, err := workflows.ParseFile(workflows.DefaultPath(root))
			if err != nil {
				return err
			}
			if err := workflows.Validate(file, providers.Has); err != nil {
				return err
			}
			workflow, err := workflows.Lookup(file, args[0])
			if err != nil {
				return err
			}

			hub, err := config.DefaultManager.Get()
			if err != nil {
				return err
			}
			cli := hub.Client(InsecureSkipVerify)

			// the run record carries the job specs, so the name has to
			// exist before the provider fills in app tokens and env
			name, err := cli.Remote.AllocateRunName(ctx, hub.Project, workflow.Name)
			if err != nil {
				return err
			}

			provider, err := providers.Get(workflow.Provider)
			if err != nil {
				return err
			}
			if err := provider.Load(workflow, name); err != nil {
				return err
			}
			jobs, err := provider.JobSpecs()
			if err != nil {
				return err
			}

			run := types.Run{
				Name:        name,
				Project:     hub.Project,
				Workflow:    workflow.Name,
				Provider:    workflow.Provider,
				Status:      types.StatusSubmitted,
				SubmittedAt: time.Now().UTC(),
				Jobs:        jobs,
			}
			if err := cli.Remote.PutRun(ctx, hub.Project, name, run); err != nil {
				return err
			}
			cmd.Println(name)
			return nil
		},
	}
	cmd.Flags().StringVar(&root, "root", root, "repo root containing .dstack/workflows.yaml")
	return cmd
}
