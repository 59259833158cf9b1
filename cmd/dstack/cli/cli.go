package cli

import (
	"context"
	"log"
	"os"
	"os/signal"

	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
	"github.com/spf13/cobra"

	"github.com/tnissen375/dstack/pkg/version"
)

// InsecureSkipVerify is toggled by the root command's --insecure flag.
var InsecureSkipVerify = false

func NewDstackCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "dstack",
		Short:   "run ML workflows defined in .dstack/workflows.yaml",
		Version: version.Get().String(),
	}
	cmd.AddCommand(NewConfigCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewLsCmd())
	cmd.AddCommand(NewDescribeCmd())
	cmd.AddCommand(NewValidateCmd())
	cmd.AddCommand(NewRunCmd())
	cmd.AddCommand(NewPsCmd())
	cmd.AddCommand(NewStopCmd())
	cmd.AddCommand(NewRmCmd())
	cmd.AddCommand(NewArtifactsCmd())
	return cmd
}

func BaseContext() (context.Context, context.CancelFunc) {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, os.Kill)
	if os.Getenv("DEBUG") == "1" {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
		ctx = logr.NewContext(ctx, stdr.NewWithOptions(log.Default(), stdr.Options{LogCaller: stdr.Error}))
	}
	return ctx, cancel
}
