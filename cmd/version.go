package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leftmike/pggate/sql"
)

func init() {
	pggateCmd.AddCommand(
		&cobra.Command{
			Use:   "version",
			Short: "Print the version number of pggate",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Println(sql.Version())
			},
		})
}
