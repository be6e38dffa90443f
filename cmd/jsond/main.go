// jsond - serve a full REST API from a JSON file.
package main

import (
	"os"

	"github.com/getjsond/jsond/pkg/cli"
)

// Build-time variables set via ldflags
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

func main() {
	if err := cli.Execute(Version, Commit, BuildDate); err != nil {
		os.Exit(1)
	}
}
