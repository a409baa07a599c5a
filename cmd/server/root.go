package main

import (
	"github.com/spf13/cobra"
)

var version = "dev"

func newRootCmd() *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:           "provenance",
		Short:         "Part provenance registry",
		Long:          `Registers physical parts, their revisions, certifications, warranty and custody history.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "",
		"config file (YAML); environment variables use the PROVENANCE_ prefix")

	root.AddCommand(newServeCmd(&configFile))
	root.AddCommand(newMigrateCmd(&configFile))
	root.AddCommand(newTokenCmd(&configFile))
	return root
}
