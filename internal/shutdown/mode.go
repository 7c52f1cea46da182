// Package shutdown decides what happens to a machine once a lifecycle run ends.
package shutdown

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	avErrors "github.com/sudoblockio/ansible-vagrant/pkg/errors"
)

// Mode is the teardown action applied to a machine. The zero value is Unset,
// meaning no preference was expressed at that precedence level.
type Mode int

const (
	Unset Mode = iota
	Halt
	Destroy
	None
)

// Default applies when neither the caller nor the project chose a mode.
const Default = Destroy

// Modes lists the selectable modes in display order.
var Modes = []Mode{Halt, Destroy, None}

// ParseMode converts a user-supplied string. Matching ignores case and
// surrounding whitespace; the empty string yields Unset.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return Unset, nil
	case "halt":
		return Halt, nil
	case "destroy":
		return Destroy, nil
	case "none":
		return None, nil
	default:
		return Unset, avErrors.NewValidationError("shutdown_mode",
			fmt.Sprintf("invalid value %q, must be one of: halt, destroy, none", s), nil)
	}
}

// Resolve applies precedence: explicit, then project, then Default.
func Resolve(explicit, project Mode) Mode {
	if explicit != Unset {
		return explicit
	}
	if project != Unset {
		return project
	}
	return Default
}

func (m Mode) String() string {
	switch m {
	case Unset:
		return ""
	case Halt:
		return "halt"
	case Destroy:
		return "destroy"
	case None:
		return "none"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Set implements pflag.Value.
func (m *Mode) Set(s string) error {
	parsed, err := ParseMode(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Type implements pflag.Value.
func (m *Mode) Type() string {
	return "halt|destroy|none"
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (m *Mode) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	return m.Set(raw)
}

// MarshalYAML implements yaml.Marshaler.
func (m Mode) MarshalYAML() (interface{}, error) {
	return m.String(), nil
}
