package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leftmike/pggate/repl"
)

var (
	execCmd = &cobra.Command{
		Use:   "exec [file ...]",
		Short: "Run commands from files and the command line",
		RunE:  execRun,
	}

	cmdArgs = []string{}
)

func init() {
	execCmd.Flags().StringArrayVarP(&cmdArgs, "cmd", "c", cmdArgs,
		"`command` to execute; multiple allowed")

	pggateCmd.AddCommand(execCmd)
}

func execRun(cmd *cobra.Command, args []string) error {
	sess, err := newSession()
	if err != nil {
		return err
	}

	ctx := context.Background()
	r := repl.New(sess, os.Stdout)
	var failed int
	for idx, arg := range cmdArgs {
		failed += r.Run(ctx, strings.NewReader(arg), fmt.Sprintf("cmd[%d]", idx))
	}

	for _, arg := range args {
		f, err := os.Open(arg)
		if err != nil {
			return fmt.Errorf("pggate: command file: %s", err)
		}
		failed += r.Run(ctx, bufio.NewReader(f), arg)
		f.Close()
	}

	if failed > 0 {
		return fmt.Errorf("pggate: %d commands failed", failed)
	}
	return nil
}
