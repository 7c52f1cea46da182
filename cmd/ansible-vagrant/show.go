package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sudoblockio/ansible-vagrant/internal/project"
)

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show RUN_DIR|" + project.ManifestFile,
		Short: "Print the manifest of a previous run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return showManifest(cmd.OutOrStdout(), args[0])
		},
	}
}

func showManifest(w io.Writer, path string) error {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, project.ManifestFile)
	}
	m, err := project.ReadManifest(path)
	if err != nil {
		return fmt.Errorf("read run manifest: %w", err)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(m); err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	return enc.Close()
}
