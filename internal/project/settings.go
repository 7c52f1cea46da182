// Package project loads per-project defaults and resolves the files a
// lifecycle run works with.
package project

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/sudoblockio/ansible-vagrant/internal/shutdown"
	avErrors "github.com/sudoblockio/ansible-vagrant/pkg/errors"
)

// DefaultSettingsFile is looked up from the working directory upwards.
const DefaultSettingsFile = "ansible-vagrant.yaml"

// Environment variables consulted when the settings file leaves a value unset.
const (
	EnvShutdown    = "VAGRANT_SHUTDOWN"
	EnvVagrantFile = "VAGRANT_FILE"
)

// Providers lists the vagrant providers a run may select.
var Providers = []string{"virtualbox", "libvirt"}

// Settings are project-level defaults. Every field is optional; a call-level
// value always takes precedence.
type Settings struct {
	ShutdownMode shutdown.Mode `yaml:"shutdown_mode"`
	VagrantFile  string        `yaml:"vagrant_file" validate:"omitempty,excluded_with=VMDefinitionFile"`
	// VMDefinitionFile is an alias for VagrantFile.
	VMDefinitionFile string `yaml:"vm_definition_file"`
	Provider         string `yaml:"provider" validate:"omitempty,provider"`
	Machine          string `yaml:"machine" validate:"omitempty,machine_name"`
	ProjectDir       string `yaml:"project_dir"`
	ArtifactDir      string `yaml:"artifact_dir"`
	InventoryMode    string `yaml:"inventory_mode" validate:"omitempty,oneof=auto synthesized"`

	// Path is the file the settings were read from, empty for defaults.
	Path string `yaml:"-"`
}

// DefinitionFile returns the configured Vagrantfile under either key.
func (s *Settings) DefinitionFile() string {
	if s == nil {
		return ""
	}
	if s.VagrantFile != "" {
		return s.VagrantFile
	}
	return s.VMDefinitionFile
}

var (
	validatorOnce sync.Once
	validateInst  *validator.Validate

	machineNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)
)

// Validator returns the shared validator with the project's custom tags
// registered.
func Validator() *validator.Validate {
	validatorOnce.Do(func() {
		v := validator.New()

		_ = v.RegisterValidation("provider", func(fl validator.FieldLevel) bool {
			value := fl.Field().String()
			for _, p := range Providers {
				if value == p {
					return true
				}
			}
			return false
		})

		_ = v.RegisterValidation("machine_name", func(fl validator.FieldLevel) bool {
			return machineNamePattern.MatchString(fl.Field().String())
		})

		validateInst = v
	})

	return validateInst
}

// ConvertValidationError maps validator output onto *errors.ValidationError,
// reporting the first failing field by its lower-cased name.
func ConvertValidationError(err error) error {
	if err == nil {
		return nil
	}

	var ves validator.ValidationErrors
	if errors.As(err, &ves) && len(ves) > 0 {
		ve := ves[0]
		field := strings.ToLower(ve.Field())
		msg := fmt.Sprintf("%s failed validation for tag '%s'", field, ve.Tag())
		if ve.Tag() == "provider" {
			msg = fmt.Sprintf("%s %q is not supported, must be one of: %s", field, ve.Value(), strings.Join(Providers, ", "))
		}
		return avErrors.NewValidationError(field, msg, err)
	}

	return avErrors.NewValidationError("settings", err.Error(), err)
}

// Validate checks field values.
func (s *Settings) Validate() error {
	if s == nil {
		return avErrors.NewValidationError("settings", "settings are nil", nil)
	}
	if err := Validator().Struct(s); err != nil {
		return ConvertValidationError(err)
	}
	return nil
}

// LoadSettings reads and validates a settings file. Relative project_dir and
// artifact_dir values are taken relative to the file's directory.
func LoadSettings(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	s, err := DecodeSettings(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	s.Path = path
	base := filepath.Dir(path)
	s.ProjectDir = relativeTo(base, s.ProjectDir)
	s.ArtifactDir = relativeTo(base, s.ArtifactDir)
	return s, nil
}

// DecodeSettings parses settings YAML. Unknown keys are rejected.
func DecodeSettings(r io.Reader) (*Settings, error) {
	var s Settings
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil && !errors.Is(err, io.EOF) {
		var validationErr *avErrors.ValidationError
		if errors.As(err, &validationErr) {
			return nil, err
		}
		return nil, avErrors.NewValidationError("settings", err.Error(), err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// FindSettings walks from start towards the filesystem root looking for
// DefaultSettingsFile.
func FindSettings(start string) (string, bool) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", false
	}
	for {
		candidate := filepath.Join(dir, DefaultSettingsFile)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// LoadOrDefault loads path when given, otherwise the nearest settings file
// above dir, otherwise empty settings. A missing explicit path is an error.
func LoadOrDefault(path, dir string) (*Settings, error) {
	if path != "" {
		return LoadSettings(path)
	}
	found, ok := FindSettings(dir)
	if !ok {
		return &Settings{}, nil
	}
	s, err := LoadSettings(found)
	if errors.Is(err, fs.ErrNotExist) {
		return &Settings{}, nil
	}
	return s, err
}

// ApplyEnv fills values the settings file left unset from the environment.
func (s *Settings) ApplyEnv(getenv func(string) string) error {
	if s == nil || getenv == nil {
		return nil
	}
	if s.ShutdownMode == shutdown.Unset {
		mode, err := shutdown.ParseMode(getenv(EnvShutdown))
		if err != nil {
			return fmt.Errorf("%s: %w", EnvShutdown, err)
		}
		s.ShutdownMode = mode
	}
	if s.DefinitionFile() == "" {
		s.VagrantFile = strings.TrimSpace(getenv(EnvVagrantFile))
	}
	return nil
}

func relativeTo(base, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}
