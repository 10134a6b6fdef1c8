// autorun is the fleet liveness and restart-orchestration CLI.
package main

import (
	"os"

	"github.com/azminug/autorun/internal/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
