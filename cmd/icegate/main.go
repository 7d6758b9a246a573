// Command icegate is the admin CLI for the catalog gateway.
package main

import (
	"os"

	"icegate/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
