package cmd

import (
	"context"
	"fmt"

	"github.com/phrazzld/pgunit"
	"github.com/spf13/cobra"
)

var deployCmd = &cobra.Command{
	Use:   "deploy <tenant> [change]",
	Short: "Deploy all pending changes, or changes up to [change]",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOperation(cmd, args, "deploy", (*pgunit.Tenant).Deploy)
	},
}

var revertCmd = &cobra.Command{
	Use:   "revert <tenant> [change]",
	Short: "Revert all changes, or changes after [change]",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOperation(cmd, args, "revert", (*pgunit.Tenant).Revert)
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify <tenant> [change]",
	Short: "Verify deployed changes, or changes up to [change]",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOperation(cmd, args, "verify", (*pgunit.Tenant).Verify)
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed <tenant> <file>",
	Short: "Run a SQL file as the tenant",
	Long: `Run a SQL file through psql with the tenant's credentials. Relative
paths are taken from the project root. The seed succeeds only when the file's
transaction commits.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOperation(cmd, args, "seed", (*pgunit.Tenant).Seed)
	},
}

func init() {
	rootCmd.AddCommand(deployCmd)
	rootCmd.AddCommand(revertCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(seedCmd)
}

type operation func(t *pgunit.Tenant, ctx context.Context, arg string) bool

func runOperation(cmd *cobra.Command, args []string, name string, op operation) error {
	tenant, err := openTenant(args)
	if err != nil {
		return err
	}
	defer tenant.Close()

	arg := optionalArg(args, 1)
	if !op(tenant, commandContext(cmd), arg) {
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s: failed (rerun with --log-level debug for the tool output)\n", name, describe(tenant, arg))
		return fmt.Errorf("%w: %s", ErrOperationFailed, name)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s: ok\n", name, describe(tenant, arg))
	return nil
}

func describe(t *pgunit.Tenant, arg string) string {
	if arg == "" {
		return t.Schema()
	}
	return t.Schema() + " " + arg
}
