package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/tnissen375/dstack/cmd/dstack/config"
)

func NewArtifactsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "artifacts",
		Short: "push and pull run artifacts",
	}
	cmd.AddCommand(NewArtifactsPushCmd())
	cmd.AddCommand(NewArtifactsPullCmd())
	return cmd
}

func NewArtifactsPushCmd() *cobra.Command {
	dir := "."
	cmd := &cobra.Command{
		Use:   "push <run>",
		Short: "upload the artifact directories of a run",
		Example: `
  dstack artifacts push train-1
  dstack artifacts push train-1 --dir path/to/workdir
		`,
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
			cli := hub.Client(InsecureSkipVerify)
			run, err := cli.GetRun(ctx, hub.Project, args[0])
			if err != nil {
				return err
			}
			return cli.PushArtifacts(ctx, hub.Project, run, dir)
		},
	}
	cmd.Flags().StringVar(&dir, "dir", dir, "directory the artifact paths are relative to")
	return cmd
}

func NewArtifactsPullCmd() *cobra.Command {
	dir := "."
	cmd := &cobra.Command{
		Use:   "pull <run>",
		Short: "download the artifacts of a run",
		Example: `
  dstack artifacts pull train-1 --dir output-dir
		`,
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
			return hub.Client(InsecureSkipVerify).PullArtifacts(ctx, hub.Project, args[0], dir)
		},
	}
	cmd.Flags().StringVar(&dir, "dir", dir, "directory to download into")
	return cmd
}
