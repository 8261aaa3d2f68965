package slipway

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/slipwaylabs/slipway/internal/fsys"
	"github.com/slipwaylabs/slipway/internal/scaffold"
	"github.com/spf13/cobra"
)

var discoverCmd = &cobra.Command{
	Use:   "discover [source-path]",
	Short: "Discover deployment scaffolding in a source tree",
	Long: `Discover scans the source tree for deployment scaffolding (Dockerfile,
compose files, skaffold.yaml, Procfile, env files) and prints the
triangulated deployment profile without planning or building.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		sourcePath := "."
		if len(args) > 0 {
			sourcePath = args[0]

			if stat, err := os.Stat(sourcePath); err == nil && !stat.IsDir() {
				sourcePath = filepath.Dir(sourcePath)
			}
		}

		fmt.Printf("Discovering scaffolding in: %s\n", sourcePath)

		if err := runDiscover(sourcePath); err != nil {
			fmt.Printf("Discovery failed: %v\n", err)
			os.Exit(1)
		}
	},
}

func runDiscover(sourcePath string) error {
	scanner := scaffold.NewScanner(fsys.NewOSFS())

	profile, err := scanner.Scan(context.Background(), sourcePath)
	if err != nil {
		return fmt.Errorf("scaffold scan failed: %w", err)
	}

	if profile.Port != 0 {
		fmt.Printf("  Port:          %d\n", profile.Port)
	}
	if len(profile.Command) > 0 {
		fmt.Printf("  Command:       %v\n", profile.Command)
	}
	if profile.Image != "" {
		fmt.Printf("  Image:         %s\n", profile.Image)
	}
	if profile.WorkDir != "" {
		fmt.Printf("  WorkDir:       %s\n", profile.WorkDir)
	}
	if profile.RestartPolicy != "" {
		fmt.Printf("  RestartPolicy: %s\n", profile.RestartPolicy)
	}
	if profile.Dockerfile != "" {
		fmt.Printf("  Dockerfile:    %s\n", profile.Dockerfile)
	}

	fmt.Printf("  Config sources (%d):\n", len(profile.Sources))
	for _, source := range profile.Sources {
		fmt.Printf("    - %s: %s\n", source.Type, source.Path)
	}

	output, err := json.MarshalIndent(profile, "", "  ")
	if err != nil {
		return fmt.Errorf("JSON export failed: %w", err)
	}
	fmt.Printf("\nJSON Export:\n%s\n", string(output))

	return nil
}

func init() {
	rootCmd.AddCommand(discoverCmd)
}
