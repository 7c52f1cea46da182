// Package preflight verifies that the external tools a lifecycle run depends
// on are installed before anything is started.
package preflight

import (
	"os/exec"

	avErrors "github.com/sudoblockio/ansible-vagrant/pkg/errors"
)

// LookPathFunc resolves an executable name to a path.
type LookPathFunc func(name string) (string, error)

// Base binaries are required regardless of provider.
var baseBinaries = []string{"vagrant", "ansible-playbook"}

var providerBinaries = map[string][]string{
	"libvirt":    {"virsh"},
	"virtualbox": {"VBoxManage"},
}

// BinariesFor returns the executables a run against provider needs, in lookup order.
func BinariesFor(provider string) []string {
	out := append([]string(nil), baseBinaries...)
	return append(out, providerBinaries[provider]...)
}

// Require checks every name against lookPath. When any are missing the
// returned *errors.MissingBinaryError names the first one and lists all of
// them. A nil lookPath uses exec.LookPath.
func Require(lookPath LookPathFunc, names ...string) error {
	if lookPath == nil {
		lookPath = exec.LookPath
	}

	var missing []string
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		if _, err := lookPath(name); err != nil {
			missing = append(missing, name)
		}
	}
	return avErrors.NewMissingBinaryError(missing)
}
