// Command fiscal is the command-line interface to the computation
// engine: registry introspection and scenario runs without a server.
package main

import (
	"fmt"
	"os"

	"github.com/warp/fiscal-engine/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
