package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/modoterra/tailsync/pkg/manifest"
	"github.com/modoterra/tailsync/pkg/manifest/discover"
)

const defaultManifest = "tailsync.yaml"

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage capture manifests",
}

var (
	configInitDir    string
	configInitGlob   string
	configInitOutput string
	configInitReport string
)

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate a manifest from the log files under a directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		m, err := discover.FromDir(configInitDir, configInitGlob)
		if err != nil {
			return err
		}
		m.Output = configInitReport

		if err := manifest.Save(m, configInitOutput); err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Generated %s with %d sources\n", configInitOutput, len(m.Sources))
		for _, src := range m.Sources {
			fmt.Fprintf(out, "  %s\n", src)
		}
		return nil
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Validate a capture manifest",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := defaultManifest
		if len(args) > 0 {
			path = args[0]
		}

		m, err := manifest.Load(path)
		if err != nil {
			return err
		}

		errs := manifest.Validate(m)
		if len(errs) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: valid (%d sources)\n", path, len(m.Sources))
			return nil
		}

		stderr := cmd.ErrOrStderr()
		fmt.Fprintf(stderr, "%s: %d error(s)\n", path, len(errs))
		for _, e := range errs {
			fmt.Fprintf(stderr, "  - %s\n", e)
		}
		return fmt.Errorf("%s is invalid", path)
	},
}

func init() {
	configInitCmd.Flags().StringVar(&configInitDir, "dir", ".", "directory to scan for log files")
	configInitCmd.Flags().StringVar(&configInitGlob, "glob", discover.DefaultGlob, "file name pattern")
	configInitCmd.Flags().StringVar(&configInitOutput, "output", defaultManifest, "manifest path")
	configInitCmd.Flags().StringVar(&configInitReport, "report", "", "report destination recorded in the manifest")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)
}
