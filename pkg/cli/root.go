// Package cli provides the jsond CLI commands.
package cli

import (
	"github.com/spf13/cobra"
)

// Build info set by Execute from main's ldflags variables.
var (
	buildVersion = "dev"
	buildCommit  = "unknown"
	buildDate    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "jsond [data-file]",
	Short: "Serve a full REST API from a JSON file",
	Long: `jsond serves a synthetic REST API backed by a JSON file on disk.

Every top-level key in the data file becomes a resource with generated
list, get, create, replace, update and delete routes. Query parameters
provide equality filtering (?name=Alice), pagination (?_page=2&_limit=10)
and sorting (?_sort=name&_order=desc).`,
	Example: `  # Serve db.json on the default port 3001
  jsond db.json

  # Watch for external edits and simulate 500ms latency
  jsond db.json --watch --delay 500

  # Read-only mode on a custom port
  jsond db.json --read-only --port 8080`,
	Args: cobra.MaximumNArgs(1),
	RunE: runServe,
}

func init() {
	addServeFlags(rootCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the CLI with build information from main.
func Execute(version, commit, date string) error {
	if version != "" {
		buildVersion = version
	}
	if commit != "" {
		buildCommit = commit
	}
	if date != "" {
		buildDate = date
	}
	return rootCmd.Execute()
}
