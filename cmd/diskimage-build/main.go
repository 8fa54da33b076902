package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/osbuild/diskimage/internal/blueprint"
)

var (
	outputPath string
	verbose    bool
)

var buildCmd = &cobra.Command{
	Use:          "diskimage-build BLUEPRINT",
	Short:        "Assemble a partitioned disk image from a TOML blueprint",
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			logrus.SetLevel(logrus.DebugLevel)
		}

		bp, err := blueprint.Load(args[0])
		if err != nil {
			return err
		}
		if outputPath != "" {
			bp.Path = outputPath
		}

		image, err := bp.Image()
		if err != nil {
			return err
		}
		if err := image.Commit(); err != nil {
			return fmt.Errorf("failed to build the image: %w", err)
		}

		fmt.Printf("Image %s was built successfully\n", image.Path())
		return nil
	},
}

func main() {
	buildCmd.Flags().StringVarP(&outputPath, "output", "o", "", "write the image here instead of the blueprint's path")
	buildCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log the commit stages")
	if err := buildCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
