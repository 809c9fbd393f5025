// Command pgunit provisions throwaway PostgreSQL tenants and runs sqitch or
// goose migrations against them.
package main

import (
	"os"

	"github.com/phrazzld/pgunit/internal/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
