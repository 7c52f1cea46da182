package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sudoblockio/ansible-vagrant/internal/sshconfig"
)

func newSSHConfigCmd() *cobra.Command {
	var machine string

	cmd := &cobra.Command{
		Use:   "ssh-config [FILE|-]",
		Short: "Parse `vagrant ssh-config` output and print the connection descriptors",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src := "-"
			if len(args) == 1 {
				src = args[0]
			}
			text, err := readSource(src, cmd.InOrStdin())
			if err != nil {
				return err
			}
			return printDescriptors(cmd.OutOrStdout(), text, machine)
		},
	}

	cmd.Flags().StringVarP(&machine, "machine", "m", "", "Select one machine block by name")

	return cmd
}

func readSource(src string, stdin io.Reader) (string, error) {
	if src == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", src, err)
	}
	return string(data), nil
}

func printDescriptors(w io.Writer, text, machine string) error {
	var out any
	if machine != "" {
		desc, err := sshconfig.Parse(text, machine)
		if err != nil {
			return err
		}
		out = desc
	} else {
		descs, err := sshconfig.ParseAll(text)
		if err != nil {
			return err
		}
		out = descs
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode descriptors: %w", err)
	}
	return enc.Close()
}
