package ansible

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sudoblockio/ansible-vagrant/internal/sshconfig"
)

// FallbackHost names the single synthesized host when the playbook does not
// target any concrete host names.
const FallbackHost = "vagrant_host"

// InventoryMode selects how the inventory argument is produced.
type InventoryMode int

const (
	// InventoryAuto uses an explicit inventory when one is given and
	// synthesizes one otherwise.
	InventoryAuto InventoryMode = iota
	// InventorySynthesized always synthesizes the inventory from the
	// connection descriptor, ignoring any explicit file.
	InventorySynthesized
)

func (m InventoryMode) String() string {
	switch m {
	case InventoryAuto:
		return "auto"
	case InventorySynthesized:
		return "synthesized"
	default:
		return fmt.Sprintf("inventory-mode(%d)", int(m))
	}
}

// ParseInventoryMode converts a flag value.
func ParseInventoryMode(s string) (InventoryMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return InventoryAuto, nil
	case "synthesized", "synthesize":
		return InventorySynthesized, nil
	default:
		return InventoryAuto, fmt.Errorf("invalid inventory mode %q, must be auto or synthesized", s)
	}
}

type play struct {
	Hosts any `yaml:"hosts"`
}

// PlayHosts returns the unique host names the playbook's plays target, in
// order. Group-style patterns such as "all" or wildcards cannot name a
// host-list entry and are skipped; colon or comma separated patterns are split
// and their operators dropped.
func PlayHosts(playbookPath string) ([]string, error) {
	data, err := os.ReadFile(playbookPath)
	if err != nil {
		return nil, fmt.Errorf("read playbook: %w", err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse playbook %s: %w", playbookPath, err)
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}

	var plays []play
	root := doc.Content[0]
	switch root.Kind {
	case yaml.SequenceNode:
		for _, item := range root.Content {
			if item.Kind != yaml.MappingNode {
				continue
			}
			var p play
			if err := item.Decode(&p); err == nil {
				plays = append(plays, p)
			}
		}
	case yaml.MappingNode:
		var p play
		if err := root.Decode(&p); err == nil {
			plays = append(plays, p)
		}
	}

	seen := map[string]struct{}{}
	var out []string
	for _, p := range plays {
		pattern, ok := p.Hosts.(string)
		if !ok {
			continue
		}
		for _, name := range hostNames(pattern) {
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			out = append(out, name)
		}
	}
	return out, nil
}

func hostNames(pattern string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(pattern, func(r rune) bool { return r == ':' || r == ',' }) {
		part = strings.TrimLeft(strings.TrimSpace(part), "!&")
		if part == "" || part == "all" || strings.ContainsAny(part, "*?[]{}~") {
			continue
		}
		out = append(out, part)
	}
	return out
}

// HostList renders names as an ansible host-list inventory ("a,b,").
func HostList(names []string) string {
	if len(names) == 0 {
		names = []string{FallbackHost}
	}
	return strings.Join(names, ",") + ","
}

// ConnectionVars are the per-host variables that point ansible at the
// machine described by d.
func ConnectionVars(d sshconfig.Descriptor) map[string]any {
	return map[string]any{
		"ansible_connection":           "ssh",
		"ansible_host":                 d.Host,
		"ansible_port":                 d.Port,
		"ansible_user":                 d.User,
		"ansible_ssh_private_key_file": d.IdentityFile,
		"ansible_ssh_common_args":      "-o StrictHostKeyChecking=no -o UserKnownHostsFile=/dev/null",
		"ansible_python_interpreter":   "/usr/bin/python3",
	}
}
