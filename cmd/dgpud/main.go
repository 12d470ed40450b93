// Command dgpud switches a laptop's graphics mode between integrated,
// hybrid, and discrete GPU configurations.
package main

import (
	"fmt"
	"os"

	"github.com/dgpud/dgpud/cmd/dgpud/command"
)

func main() {
	if err := command.App().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
