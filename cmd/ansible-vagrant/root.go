package main

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/sudoblockio/ansible-vagrant/internal/logger"
)

type rootFlags struct {
	verbose    bool
	configPath string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:           "ansible-vagrant",
		Short:         "Provision a vagrant machine, configure it with ansible and tear it down",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Path to an ansible-vagrant.yaml settings file")

	cmd.AddCommand(newRunCmd(flags))
	cmd.AddCommand(newSSHConfigCmd())
	cmd.AddCommand(newShowCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func newLogger(verbose bool, w io.Writer) (*logger.Logger, error) {
	level := "info"
	if verbose {
		level = "debug"
	}
	return logger.New(logger.Options{Level: level, HumanReadable: true, Writer: w})
}
