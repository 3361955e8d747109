package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// NewRootCmd builds the chainpulsed command tree.
func NewRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "chainpulsed",
		Short: "Observe IBC relayer activity across a set of chains",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart(cmd, configPath)
		},
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "chainpulse.toml", "path to the chainpulse config file")

	cmd.AddCommand(newVersionCmd())

	return cmd
}
