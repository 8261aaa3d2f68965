package slipway

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/slipwaylabs/slipway/internal/builder"
	"github.com/slipwaylabs/slipway/internal/fsys"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var planShowDockerfile bool

var planCmd = &cobra.Command{
	Use:   "plan [source-path]",
	Short: "Show the layered build plan without building",
	Long: `Plan computes the build layers, their cache keys, and which layers would
be cache hits against the previous build, without invoking the container
engine. Useful for verifying that a source-only change leaves the
dependency-install layer cached.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		sourcePath := "."
		if len(args) > 0 {
			sourcePath = args[0]

			if stat, err := os.Stat(sourcePath); err == nil && !stat.IsDir() {
				sourcePath = filepath.Dir(sourcePath)
			}
		}

		if err := runPlan(sourcePath); err != nil {
			fmt.Printf("Plan failed: %v\n", err)
			os.Exit(1)
		}
	},
}

func runPlan(sourcePath string) error {
	b := builder.NewBuilder(fsys.NewOSFS())

	prepared, err := b.Prepare(context.Background(), sourcePath)
	if err != nil {
		return err
	}

	fmt.Printf("Image:   %s\n", prepared.Image)
	fmt.Printf("Port:    %d\n", prepared.Port)
	fmt.Printf("WorkDir: %s\n", prepared.WorkDir)
	fmt.Printf("Command: %v\n\n", prepared.Command)

	output, err := yaml.Marshal(prepared.Plan)
	if err != nil {
		return fmt.Errorf("failed to marshal plan: %w", err)
	}
	fmt.Printf("%s", output)

	if planShowDockerfile {
		fmt.Printf("\n%s", prepared.Plan.Dockerfile())
	}

	return nil
}

func init() {
	planCmd.Flags().BoolVar(&planShowDockerfile, "dockerfile", false, "also print the generated Dockerfile")
	rootCmd.AddCommand(planCmd)
}
