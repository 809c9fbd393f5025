package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/phrazzld/pgunit"
	"github.com/spf13/cobra"
)

var statusJSON bool

var initCmd = &cobra.Command{
	Use:   "init <tenant>",
	Short: "Create a tenant role with its schema and registry schema",
	Long: `Create the superuser role <tenant> (password <tenant>), the schema
<tenant> and the registry schema sqitch_<tenant>.

Fails when the role already exists.`,
	Args: cobra.ExactArgs(1),
	RunE: runInit,
}

var destroyCmd = &cobra.Command{
	Use:   "destroy <tenant>",
	Short: "Drop a tenant's registry, schemas and role",
	Long: `Drop the registry tables, the registry schema, the tenant schema and the
tenant role. Objects that do not exist are skipped, so destroy can be repeated.`,
	Args: cobra.ExactArgs(1),
	RunE: runDestroy,
}

var statusCmd = &cobra.Command{
	Use:   "status <tenant>",
	Short: "Show which of a tenant's objects exist",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Output as JSON")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(destroyCmd)
	rootCmd.AddCommand(statusCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	tenant, err := openTenant(args)
	if err != nil {
		return err
	}
	defer tenant.Close()

	if err := tenant.Init(commandContext(cmd)); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created tenant %s (registry %s)\n", tenant.Schema(), tenant.Registry())
	fmt.Fprintln(cmd.OutOrStdout(), tenant.Credentials())
	return nil
}

func runDestroy(cmd *cobra.Command, args []string) error {
	tenant, err := openTenant(args)
	if err != nil {
		return err
	}

	if err := tenant.Destroy(commandContext(cmd)); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Destroyed tenant %s\n", tenant.Schema())
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	tenant, err := openTenant(args)
	if err != nil {
		return err
	}
	defer tenant.Close()

	status, err := tenant.Inspect(commandContext(cmd))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if statusJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Tenant string `json:"tenant"`
			pgunit.Status
		}{tenant.Schema(), status})
	}

	fmt.Fprintf(out, "role %s: %s\n", tenant.Schema(), present(status.Role))
	fmt.Fprintf(out, "schema %s: %s\n", tenant.Schema(), present(status.Schema))
	fmt.Fprintf(out, "registry %s: %s\n", tenant.Registry(), present(status.Registry))
	return nil
}

func present(ok bool) string {
	if ok {
		return "present"
	}
	return "absent"
}
