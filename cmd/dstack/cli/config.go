package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tnissen375/dstack/cmd/dstack/config"
)

func NewConfigCmd() *cobra.Command {
	details := config.HubDetails{}
	cmd := &cobra.Command{
		Use:   "config",
		Short: "configure the hub connection",
		Example: `
  dstack config --url https://hub.example.com --project myproject --token <token>
		`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if details.URL == "" {
				current, err := config.DefaultManager.Get()
				if err != nil {
					return err
				}
				fmt.Printf("url: %s\nproject: %s\n", current.URL, current.Project)
				return nil
			}
			if err := config.DefaultManager.Set(details); err != nil {
				return err
			}
			fmt.Println("Configuration saved")
			return nil
		},
	}
	cmd.Flags().StringVar(&details.URL, "url", details.URL, "hub url")
	cmd.Flags().StringVar(&details.Project, "project", details.Project, "project name")
	cmd.Flags().StringVar(&details.Token, "token", details.Token, "bearer token")
	return cmd
}
