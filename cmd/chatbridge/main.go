package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:           "chatbridge",
		Short:         "Bridge chat networks to a single authorized message feed",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath(), "path to config.toml")
	root.AddCommand(
		newServeCmd(&configPath),
		newMCPCmd(&configPath),
		newTokenCmd(&configPath),
		newVersionCmd(),
	)
	return root
}

func defaultConfigPath() string {
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		return path
	}
	return "config.toml"
}
