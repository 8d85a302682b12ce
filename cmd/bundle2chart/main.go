// bundle2chart converts OLM operator bundles into parameterized Helm charts.
package main

import (
	"os"

	"github.com/stolostron/installer-dev-tools-sub000/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
