package slipway

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/slipwaylabs/slipway/internal/builder"
	"github.com/slipwaylabs/slipway/internal/buildplan"
	"github.com/slipwaylabs/slipway/internal/fsys"
	"github.com/spf13/cobra"
)

var buildCmd = &cobra.Command{
	Use:   "build [source-path]",
	Short: "Build a container image from a source tree and its dependency manifest",
	Long: `Build computes the layered build plan for the source tree, generates a
Dockerfile from it, and drives the container engine. The dependency manifest
is copied and installed before the source tree so that source-only edits
never reinstall dependencies.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		sourcePath := "."
		if len(args) > 0 {
			sourcePath = args[0]

			if stat, err := os.Stat(sourcePath); err == nil && !stat.IsDir() {
				sourcePath = filepath.Dir(sourcePath)
			}
		}

		fmt.Printf("Building source tree: %s\n", sourcePath)

		if err := runBuild(sourcePath); err != nil {
			fmt.Printf("Build failed: %v\n", err)
			os.Exit(1)
		}
	},
}

func runBuild(sourcePath string) error {
	b := builder.NewBuilder(fsys.NewOSFS())

	result, err := b.Build(context.Background(), sourcePath)
	if err != nil {
		return err
	}

	artifact := result.Artifact
	fmt.Printf("\nBuilt %s\n", artifact.Image)
	fmt.Printf("  ID:      %s\n", artifact.ID)
	fmt.Printf("  Port:    %d\n", artifact.Port)
	fmt.Printf("  WorkDir: %s\n", artifact.WorkDir)
	fmt.Printf("  Command: %v\n", artifact.Command)

	install := result.Prepared.Plan.Layer(buildplan.LayerInstall)
	if install != nil && install.CacheHit {
		fmt.Println("  Install layer: cache hit (manifest unchanged)")
	}

	return nil
}

func init() {
	rootCmd.AddCommand(buildCmd)
}
