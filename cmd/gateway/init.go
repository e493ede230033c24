package main

import (
	"fmt"
	"os"
	"path/filepath"

	"code.equilab.io/gateway/config"

	"github.com/spf13/cobra"
)

type initCommand struct {
	command

	rootPath string
	force    bool
}

func (ic *initCommand) Init(c *Cli) {
	ic.cli = c
	ic.cmd = &cobra.Command{
		Use:   "init",
		Short: "Generate the gateway configuration",
		Long:  "Generate the minimal configuration required for the gateway to start",
		RunE:  ic.runInit,
	}

	fs := ic.cmd.Flags()
	fs.StringVarP(&ic.rootPath, "root-path", "r", defaultRootDir(), "Path of the root directory in which the configuration will be located")
	fs.BoolVarP(&ic.force, "force", "f", false, "Erase existing gateway configuration at the specified path")
	c.cmd.AddCommand(ic.cmd)
}

func (ic *initCommand) runInit(cmd *cobra.Command, args []string) error {
	confPath, err := config.Gen(ic.rootPath, ic.force)
	if err != nil {
		return err
	}

	// an empty keyring, to be filled with 12 word seed phrases
	seedsPath := filepath.Join(ic.rootPath, "seeds.json")
	if _, err := os.Stat(seedsPath); os.IsNotExist(err) {
		if err := os.WriteFile(seedsPath, []byte("[]\n"), 0o600); err != nil {
			return err
		}
	}

	fmt.Printf("configuration generated at %v\n", confPath)
	fmt.Printf("add signer seed phrases to %v before running the gateway\n", seedsPath)
	return nil
}
