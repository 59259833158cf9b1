package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/tnissen375/dstack/cmd/dstack/cli"
)

const ErrExitCode = 1

func main() {
	if err := NewDstackCmd().Execute(); err != nil {
		os.Exit(ErrExitCode)
	}
}

func NewDstackCmd() *cobra.Command {
	cmd := cli.NewDstackCmd()
	cmd.PersistentFlags().BoolVar(&cli.InsecureSkipVerify, "insecure", cli.InsecureSkipVerify, "tls insecure skip verify")
	return cmd
}
