package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/leftmike/pggate/repl"
)

func init() {
	pggateCmd.AddCommand(
		&cobra.Command{
			Use:   "shell",
			Short: "Run commands typed at an interactive console",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				sess, err := newSession()
				if err != nil {
					return err
				}
				repl.New(sess, os.Stdout).Interact(context.Background())
				return nil
			},
		})
}
