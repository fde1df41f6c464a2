// Package cli implements the gridtrack command-line client.
package cli

import (
	"github.com/spf13/cobra"
)

// CLI handles command-line dispatch for gridtrack.
type CLI interface {
	Exec() error
}

type simpleCLI struct {
	rootCmd *cobra.Command
}

func (c *simpleCLI) Exec() error {
	return c.rootCmd.Execute()
}

func NewCLI() CLI {
	c := &simpleCLI{}
	c.rootCmd = &cobra.Command{
		Use:          "gridtrack",
		Short:        "gridtrack submits a command to a Grid Engine cluster and tracks it to completion",
		SilenceUsage: true,
		Run:          func(*cobra.Command, []string) {},
	}

	c.addCmd(&runCmd{})
	c.addCmd(&runnerCmd{})

	return c
}

func (c *simpleCLI) addCmd(cmd command) {
	cobraCmd := cmd.registerFlags()
	cobraCmd.RunE = func(innerCmd *cobra.Command, args []string) error {
		return cmd.run(innerCmd, args)
	}
	c.rootCmd.AddCommand(cobraCmd)
}

type command interface {
	registerFlags() *cobra.Command
	run(cmd *cobra.Command, args []string) error
}
