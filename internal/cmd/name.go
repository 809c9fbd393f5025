package cmd

import (
	"fmt"

	"github.com/phrazzld/pgunit"
	"github.com/spf13/cobra"
)

var nameCmd = &cobra.Command{
	Use:   "name [prefix]",
	Short: "Print a fresh tenant name",
	Long: `Print a tenant name of the form <prefix>_<12 hex digits>, unique enough
for parallel test runs against one database. The default prefix is "pgunit".`,
	Args: cobra.MaximumNArgs(1),
	RunE: runName,
}

func init() {
	rootCmd.AddCommand(nameCmd)
}

func runName(cmd *cobra.Command, args []string) error {
	fmt.Fprintln(cmd.OutOrStdout(), pgunit.NewName(optionalArg(args, 0)))
	return nil
}
