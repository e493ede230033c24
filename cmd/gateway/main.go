package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Cli is the root of the command tree. Subcommands register themselves
// against it through their Init method.
type Cli struct {
	cmd *cobra.Command
}

type command struct {
	cli *Cli
	cmd *cobra.Command
}

func NewCli() *Cli {
	return &Cli{
		cmd: &cobra.Command{
			Use:           "gateway",
			Short:         "HTTP gateway for the Equilibrium DEX",
			Long:          "Expose order placement, order management and market data of the on-chain DEX over HTTP/JSON",
			SilenceUsage:  true,
			SilenceErrors: true,
		},
	}
}

func (c *Cli) AddCommands(cmds ...interface{ Init(*Cli) }) {
	for _, cmd := range cmds {
		cmd.Init(c)
	}
}

func (c *Cli) Run() error {
	return c.cmd.Execute()
}

func main() {
	cli := NewCli()
	cli.AddCommands(
		&initCommand{},
		&runCommand{},
	)

	if err := cli.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
