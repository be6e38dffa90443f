package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

// initFlags holds all flags for the init command.
type initFlags struct {
	output      string
	force       bool
	interactive bool
}

var initFlagVals initFlags

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example data file",
	Long: `Create a starter JSON data file with example resources.

Each top-level key becomes a resource served at /{key}.`,
	Example: `  # Create db.json with example resources
  jsond init

  # Pick the filename and resources interactively
  jsond init --interactive`,
	RunE: runInit,
}

func init() {
	f := &initFlagVals

	initCmd.Flags().StringVarP(&f.output, "output", "o", "db.json", "Output filename")
	initCmd.Flags().BoolVar(&f.force, "force", false, "Overwrite an existing file")
	initCmd.Flags().BoolVarP(&f.interactive, "interactive", "i", false, "Prompt for filename and resources")
}

func runInit(_ *cobra.Command, _ []string) error {
	f := &initFlagVals

	output := f.output
	data := exampleData()

	if f.interactive {
		var err error
		output, data, err = promptInit(output)
		if err != nil {
			return err
		}
	}

	if _, err := os.Stat(output); err == nil && !f.force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", output)
	}

	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(output, raw, 0600); err != nil {
		return fmt.Errorf("write %s: %w", output, err)
	}

	fmt.Printf("Created %s\n", output)
	for _, name := range resourceNames(data) {
		fmt.Printf("  /%s\n", name)
	}
	fmt.Printf("\nStart the server with:\n  jsond %s\n", output)
	return nil
}

// promptInit collects the filename and resource names interactively.
func promptInit(defaultOutput string) (string, map[string][]map[string]any, error) {
	output := defaultOutput
	resources := "posts, comments, users"

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Data file name").
				Value(&output),
			huh.NewInput().
				Title("Resources (comma-separated)").
				Description("Each resource becomes a /{name} endpoint").
				Value(&resources),
		),
	)
	if err := form.Run(); err != nil {
		return "", nil, err
	}

	data := make(map[string][]map[string]any)
	for _, name := range strings.Split(resources, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		data[name] = []map[string]any{{"id": 1}}
	}
	if len(data) == 0 {
		return "", nil, fmt.Errorf("at least one resource is required")
	}

	return output, data, nil
}

// exampleData returns the default starter dataset.
func exampleData() map[string][]map[string]any {
	return map[string][]map[string]any{
		"posts": {
			{"id": 1, "title": "jsond", "author": "getjsond"},
		},
		"comments": {
			{"id": 1, "body": "some comment", "postId": 1},
		},
		"users": {
			{"id": 1, "name": "Alice"},
			{"id": 2, "name": "Bob"},
		},
	}
}

// resourceNames returns sorted resource names for stable output.
func resourceNames(data map[string][]map[string]any) []string {
	names := make([]string, 0, len(data))
	for name := range data {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
