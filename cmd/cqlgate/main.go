// Command cqlgate serves SQL-flavored reads and record batches against
// wide-column tables.
package main

import (
	"os"

	"github.com/roach88/cqlgate/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(cli.GetExitCode(err))
	}
}
