package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	git "github.com/go-git/go-git/v5"
	"gopkg.in/yaml.v3"
)

// ManifestFile is the name of the per-run summary written to the artifact dir.
const ManifestFile = "run.yaml"

// Manifest records what a lifecycle run did.
type Manifest struct {
	RunID        string    `yaml:"run_id"`
	Playbook     string    `yaml:"playbook"`
	VagrantFile  string    `yaml:"vagrant_file"`
	Provider     string    `yaml:"provider"`
	Machine      string    `yaml:"machine,omitempty"`
	ShutdownMode string    `yaml:"shutdown_mode"`
	Inventory    string    `yaml:"inventory,omitempty"`
	Connection   string    `yaml:"connection,omitempty"`
	Revision     string    `yaml:"revision,omitempty"`
	ExitCode     int       `yaml:"exit_code"`
	StartedAt    time.Time `yaml:"started_at"`
	FinishedAt   time.Time `yaml:"finished_at"`
}

// WriteManifest stores m as YAML in dir, creating dir when needed.
func WriteManifest(dir string, m Manifest) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create manifest dir: %w", err)
	}
	data, err := yaml.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encode manifest: %w", err)
	}
	path := filepath.Join(dir, ManifestFile)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write manifest: %w", err)
	}
	return path, nil
}

// ReadManifest loads a manifest written by WriteManifest.
func ReadManifest(path string) (Manifest, error) {
	var m Manifest
	data, err := os.ReadFile(path)
	if err != nil {
		return m, err
	}
	if err := yaml.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("decode manifest: %w", err)
	}
	return m, nil
}

// Revision returns the HEAD commit of the git repository containing dir. It
// returns "" without error when dir is not inside a repository or the
// repository has no commits yet.
func Revision(dir string) (string, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("open repository: %w", err)
	}

	head, err := repo.Head()
	if err != nil {
		// An unborn branch has no HEAD commit.
		return "", nil
	}
	return head.Hash().String(), nil
}
