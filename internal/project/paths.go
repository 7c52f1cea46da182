package project

import (
	"os"
	"path/filepath"

	avErrors "github.com/sudoblockio/ansible-vagrant/pkg/errors"
)

// DefaultVagrantFile is used when neither the call nor the settings name one.
const DefaultVagrantFile = "Vagrantfile"

// Directories an ansible project must contain.
var layoutDirs = []string{"tests", "roles"}

// ResolvePlaybook returns an existing absolute path for playbook. Relative
// paths are taken relative to projectDir.
func ResolvePlaybook(projectDir, playbook string) (string, error) {
	if filepath.IsAbs(playbook) {
		if exists(playbook) {
			return playbook, nil
		}
		return "", &avErrors.PlaybookNotFoundError{Playbook: playbook, ProjectDir: projectDir, Tried: playbook}
	}

	candidate := filepath.Join(projectDir, playbook)
	if exists(candidate) {
		return absolute(candidate), nil
	}
	return "", &avErrors.PlaybookNotFoundError{Playbook: playbook, ProjectDir: projectDir, Tried: candidate}
}

// ResolveInventory returns an inventory argument. A value that does not name
// an existing file under projectDir is passed through unchanged, since it may
// be a host list such as "web,db,".
func ResolveInventory(projectDir, inventory string) string {
	if inventory == "" || filepath.IsAbs(inventory) {
		return inventory
	}
	candidate := filepath.Join(projectDir, inventory)
	if exists(candidate) {
		return absolute(candidate)
	}
	return inventory
}

// ResolveVagrantFile returns the absolute Vagrantfile path, defaulting to
// DefaultVagrantFile under projectDir. The file must exist.
func ResolveVagrantFile(projectDir, vagrantFile string) (string, error) {
	if vagrantFile == "" {
		vagrantFile = DefaultVagrantFile
	}
	if !filepath.IsAbs(vagrantFile) {
		vagrantFile = filepath.Join(projectDir, vagrantFile)
	}
	vagrantFile = absolute(vagrantFile)

	info, err := os.Stat(vagrantFile)
	if err != nil || info.IsDir() {
		return "", &avErrors.VagrantfileNotFoundError{Path: vagrantFile}
	}
	return vagrantFile, nil
}

// ValidateLayout checks that projectDir holds sibling tests/ and roles/
// directories.
func ValidateLayout(projectDir string) error {
	var missing []string
	for _, name := range layoutDirs {
		if !isDir(filepath.Join(projectDir, name)) {
			missing = append(missing, name)
		}
	}
	if !isDir(projectDir) || len(missing) > 0 {
		return &avErrors.InvalidProjectLayoutError{ProjectDir: projectDir, Missing: missing}
	}
	return nil
}

// InferProjectDir walks up from start until it finds a directory named tests
// and returns its parent. When there is none, start itself is returned.
func InferProjectDir(start string) string {
	start = absolute(start)
	dir := start
	for {
		if filepath.Base(dir) == "tests" {
			return filepath.Dir(dir)
		}
		if isDir(filepath.Join(dir, "tests")) && isDir(filepath.Join(dir, "roles")) {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return start
		}
		dir = parent
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func absolute(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}
