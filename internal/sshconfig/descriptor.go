// Package sshconfig parses the connection description printed by
// `vagrant ssh-config` into immutable descriptors.
package sshconfig

import (
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"

	avErrors "github.com/sudoblockio/ansible-vagrant/pkg/errors"
)

// Descriptor holds everything needed to open a remote session into one machine.
// Values are copied on construction and on access, so a Descriptor can be
// passed around freely without aliasing.
type Descriptor struct {
	Name         string
	Host         string
	Port         int
	User         string
	IdentityFile string

	options map[string]string
}

// NewDescriptor builds a validated Descriptor.
func NewDescriptor(name, host string, port int, user, identityFile string, options map[string]string) (Descriptor, error) {
	d := Descriptor{
		Name:         name,
		Host:         host,
		Port:         port,
		User:         user,
		IdentityFile: identityFile,
		options:      copyOptions(options),
	}
	if err := d.Validate(); err != nil {
		return Descriptor{}, err
	}
	return d, nil
}

// Validate reports missing primary fields or an out-of-range port.
func (d Descriptor) Validate() error {
	var missing []string
	if d.Host == "" {
		missing = append(missing, keyHostName)
	}
	if d.Port == 0 {
		missing = append(missing, keyPort)
	}
	if d.User == "" {
		missing = append(missing, keyUser)
	}
	if d.IdentityFile == "" {
		missing = append(missing, keyIdentityFile)
	}
	if len(missing) > 0 {
		return avErrors.NewConnectionParseError("ssh-config missing: "+strings.Join(missing, ", "), nil)
	}
	if d.Port < 1 || d.Port > 65535 {
		return avErrors.NewConnectionParseError(fmt.Sprintf("invalid Port: %d", d.Port), nil)
	}
	return nil
}

// Options returns a copy of the unrecognized keys preserved from the source text.
func (d Descriptor) Options() map[string]string {
	return copyOptions(d.options)
}

// Option returns a single auxiliary option.
func (d Descriptor) Option(key string) (string, bool) {
	v, ok := d.options[key]
	return v, ok
}

// Address returns host:port suitable for dialing.
func (d Descriptor) Address() string {
	return net.JoinHostPort(d.Host, strconv.Itoa(d.Port))
}

// SSHURL returns the ssh://user@host:port form used by host-inspection tools.
func (d Descriptor) SSHURL() string {
	return fmt.Sprintf("ssh://%s@%s", d.User, d.Address())
}

func (d Descriptor) String() string {
	name := d.Name
	if name == "" {
		name = defaultBlockName
	}
	return fmt.Sprintf("%s (%s)", name, d.SSHURL())
}

// MarshalYAML renders the descriptor with its options in a stable order.
func (d Descriptor) MarshalYAML() (interface{}, error) {
	type option struct {
		Key   string `yaml:"key"`
		Value string `yaml:"value"`
	}
	view := struct {
		Name         string   `yaml:"name"`
		Host         string   `yaml:"host"`
		Port         int      `yaml:"port"`
		User         string   `yaml:"user"`
		IdentityFile string   `yaml:"identity_file"`
		Options      []option `yaml:"options,omitempty"`
	}{
		Name:         d.Name,
		Host:         d.Host,
		Port:         d.Port,
		User:         d.User,
		IdentityFile: d.IdentityFile,
	}
	keys := make([]string, 0, len(d.options))
	for k := range d.options {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		view.Options = append(view.Options, option{Key: k, Value: d.options[k]})
	}
	return view, nil
}

func copyOptions(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
