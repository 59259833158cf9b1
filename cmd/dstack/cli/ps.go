package cli

import (
	"errors"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/tnissen375/dstack/cmd/dstack/config"
	"github.com/tnissen375/dstack/pkg/types"
)

func NewPsCmd() *cobra.Command {
	search := ""
	cmd := &cobra.Command{
		Use:   "ps",
		Short: "list runs in the configured project",
		Example: `
  dstack ps
  dstack ps --search "^train-"
		`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := BaseContext()
			defer cancel()

			hub, err := config.DefaultManager.Get()
			if err != nil {
				return err
			}
			index, err := hub.Client(InsecureSkipVerify).GetIndex(ctx, hub.Project, search)
			if err != nil {
				return err
			}

			t := table.NewWriter()
			t.SetOutputMirror(os.Stdout)
			t.AppendHeader(table.Row{"Run", "Workflow", "Provider", "Status", "Submitted"})
			for _, run := range index.Runs {
				t.AppendRow(table.Row{
					run.Name,
					run.Annotations[types.AnnotationWorkflow],
					run.Annotations[types.AnnotationProvider],
					run.Annotations[types.AnnotationStatus],
					run.Modified.Format(time.RFC3339),
				})
			}
			t.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&search, "search", search, "filter runs by a name regexp")
	return cmd
}

func NewStopCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "stop <run>",
		Short:        "stop a run",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := BaseContext()
			defer cancel()
			if len(args) == 0 {
				return errors.New("run name is required")
			}
			hub, err := config.DefaultManager.Get()
			if err != nil {
				return err
			}
			return hub.Client(InsecureSkipVerify).StopRun(ctx, hub.Project, args[0])
		},
	}
	return cmd
}

func NewRmCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "rm <run>",
		Short:        "delete a run and its artifacts",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := BaseContext()
			defer cancel()
			if len(args) == 0 {
				return errors.New("run name is required")
			}
			hub, err := config.DefaultManager.Get()
			if err != nil {
				return err
			}
			return hub.Client(InsecureSkipVerify).DeleteRun(ctx, hub.Project, args[0])
		},
	}
	return cmd
}
