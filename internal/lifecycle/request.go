package lifecycle

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sudoblockio/ansible-vagrant/internal/ansible"
	"github.com/sudoblockio/ansible-vagrant/internal/project"
	"github.com/sudoblockio/ansible-vagrant/internal/shutdown"
	avErrors "github.com/sudoblockio/ansible-vagrant/pkg/errors"
)

// DefaultProvider is used when neither the request nor the settings name one.
const DefaultProvider = "virtualbox"

// Request describes one lifecycle run. Only Playbook is required; empty
// fields fall back to project settings and then to built-in defaults.
type Request struct {
	Playbook      string `validate:"required"`
	VagrantFile   string
	Provider      string            `validate:"omitempty,provider"`
	Machine       string            `validate:"omitempty,machine_name"`
	ExtraVars     map[string]string `validate:"omitempty,dive,keys,required,endkeys"`
	InventoryFile string
	ArtifactDir   string
	ProjectDir    string
	ShutdownMode  shutdown.Mode         `validate:"gte=0,lte=3"`
	InventoryMode ansible.InventoryMode `validate:"gte=0,lte=1"`
}

type resolvedRequest struct {
	Playbook      string
	ProjectDir    string
	VagrantFile   string
	Provider      string
	Machine       string
	InventoryFile string
	InventoryMode ansible.InventoryMode
	ArtifactDir   string
	ExtraVars     map[string]string
	Mode          shutdown.Mode
}

func (o *Orchestrator) resolve(req Request) (resolvedRequest, error) {
	if err := project.Validator().Struct(req); err != nil {
		return resolvedRequest{}, project.ConvertValidationError(err)
	}
	settings := o.opts.Settings

	projectDir, err := o.projectDir(req)
	if err != nil {
		return resolvedRequest{}, err
	}
	if o.opts.RequireLayout {
		if err := project.ValidateLayout(projectDir); err != nil {
			return resolvedRequest{}, err
		}
	}

	playbook, err := project.ResolvePlaybook(projectDir, req.Playbook)
	if err != nil {
		return resolvedRequest{}, err
	}
	vagrantFile, err := project.ResolveVagrantFile(projectDir, first(req.VagrantFile, settings.DefinitionFile()))
	if err != nil {
		return resolvedRequest{}, err
	}

	inventoryMode := req.InventoryMode
	if inventoryMode == ansible.InventoryAuto && settings.InventoryMode != "" {
		inventoryMode, err = ansible.ParseInventoryMode(settings.InventoryMode)
		if err != nil {
			return resolvedRequest{}, avErrors.NewValidationError("inventory_mode", err.Error(), err)
		}
	}

	artifactDir := first(req.ArtifactDir, settings.ArtifactDir)
	switch {
	case artifactDir == "":
		artifactDir = filepath.Join(projectDir, ansible.DefaultArtifactSubdir)
	case !filepath.IsAbs(artifactDir):
		artifactDir = filepath.Join(projectDir, artifactDir)
	}

	extraVars := make(map[string]string, len(req.ExtraVars))
	for k, v := range req.ExtraVars {
		extraVars[k] = v
	}

	return resolvedRequest{
		Playbook:      playbook,
		ProjectDir:    projectDir,
		VagrantFile:   vagrantFile,
		Provider:      first(req.Provider, settings.Provider, DefaultProvider),
		Machine:       first(req.Machine, settings.Machine),
		InventoryFile: project.ResolveInventory(projectDir, req.InventoryFile),
		InventoryMode: inventoryMode,
		ArtifactDir:   artifactDir,
		ExtraVars:     extraVars,
		Mode:          shutdown.Resolve(req.ShutdownMode, settings.ShutdownMode),
	}, nil
}

func (o *Orchestrator) projectDir(req Request) (string, error) {
	dir := first(req.ProjectDir, o.opts.Settings.ProjectDir)
	if dir == "" {
		wd, err := o.opts.Getwd()
		if err != nil {
			return "", fmt.Errorf("determine working directory: %w", err)
		}
		dir = project.InferProjectDir(wd)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve project dir: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return "", avErrors.NewValidationError("project_dir", fmt.Sprintf("%q is not a directory", abs), err)
	}
	return abs, nil
}

func first(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
