package sshconfig

import (
	"bufio"
	"errors"
	"fmt"
	"strconv"
	"strings"

	avErrors "github.com/sudoblockio/ansible-vagrant/pkg/errors"
)

const (
	keyHost         = "Host"
	keyHostName     = "HostName"
	keyPort         = "Port"
	keyUser         = "User"
	keyIdentityFile = "IdentityFile"

	defaultBlockName = "default"
)

type block struct {
	name   string
	values map[string]string
	order  []string
}

// ParseAll parses every Host block in text, in order of appearance.
func ParseAll(text string) ([]Descriptor, error) {
	blocks, err := scan(text)
	if err != nil {
		return nil, err
	}
	out := make([]Descriptor, 0, len(blocks))
	for _, b := range blocks {
		d, err := b.descriptor()
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// Parse returns the descriptor for machine. An empty machine selects the only
// block, failing with *errors.AmbiguousMachineError when there are several.
// Only the selected block is validated.
func Parse(text, machine string) (Descriptor, error) {
	blocks, err := scan(text)
	if err != nil {
		return Descriptor{}, err
	}

	if machine == "" {
		if len(blocks) > 1 {
			return Descriptor{}, &avErrors.AmbiguousMachineError{Machines: names(blocks)}
		}
		return blocks[0].descriptor()
	}

	for _, b := range blocks {
		if b.name == machine {
			return b.descriptor()
		}
	}
	return Descriptor{}, &avErrors.HostNotFoundError{Machine: machine, Available: names(blocks)}
}

func scan(text string) ([]*block, error) {
	var (
		blocks  []*block
		current *block
		lineNo  int
	)

	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value := splitLine(line)
		if key == keyHost {
			if value == "" {
				return nil, avErrors.NewConnectionParseError(fmt.Sprintf("line %d: Host without a name", lineNo), nil)
			}
			current = &block{name: value, values: map[string]string{}}
			blocks = append(blocks, current)
			continue
		}

		if current == nil {
			current = &block{name: defaultBlockName, values: map[string]string{}}
			blocks = append(blocks, current)
		}
		if prev, seen := current.values[key]; seen {
			// Connection keys keep their first value, as in OpenSSH. Other
			// keys such as LocalForward may repeat and keep every value.
			if !isPrimary(key) {
				current.values[key] = prev + "\n" + value
			}
			continue
		}
		current.values[key] = value
		current.order = append(current.order, key)
	}
	if err := scanner.Err(); err != nil {
		return nil, avErrors.NewConnectionParseError("read ssh-config output", err)
	}
	if len(blocks) == 0 {
		return nil, avErrors.NewConnectionParseError("no host blocks", nil)
	}
	return blocks, nil
}

// splitLine separates "key value", "key=value" and "key = value" forms and
// unquotes the value.
func splitLine(line string) (string, string) {
	idx := strings.IndexAny(line, " \t=")
	if idx < 0 {
		return line, ""
	}
	key := line[:idx]
	rest := strings.TrimLeft(line[idx:], " \t")
	rest = strings.TrimPrefix(rest, "=")
	return key, unquote(strings.TrimSpace(rest))
}

func unquote(v string) string {
	if len(v) >= 2 {
		first, last := v[0], v[len(v)-1]
		if (first == '"' || first == '\'') && first == last {
			return v[1 : len(v)-1]
		}
	}
	return v
}

func (b *block) descriptor() (Descriptor, error) {
	var port int
	if raw, ok := b.values[keyPort]; ok && raw != "" {
		p, err := parsePort(raw)
		if err != nil {
			return Descriptor{}, avErrors.NewConnectionParseError(
				fmt.Sprintf("invalid Port %q in host %s", raw, b.name), err)
		}
		port = p
	}

	options := map[string]string{}
	for _, key := range b.order {
		if !isPrimary(key) {
			options[key] = b.values[key]
		}
	}

	return NewDescriptor(b.name, b.values[keyHostName], port, b.values[keyUser], b.values[keyIdentityFile], options)
}

// parsePort accepts only plain decimal digits in 1..65535.
func parsePort(raw string) (int, error) {
	for _, r := range raw {
		if r < '0' || r > '9' {
			return 0, errors.New("port must be decimal digits")
		}
	}
	port, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if port < 1 || port > 65535 {
		return 0, fmt.Errorf("port %d out of range", port)
	}
	return port, nil
}

func isPrimary(key string) bool {
	switch key {
	case keyHostName, keyPort, keyUser, keyIdentityFile:
		return true
	}
	return false
}

func names(blocks []*block) []string {
	out := make([]string, len(blocks))
	for i, b := range blocks {
		out[i] = b.name
	}
	return out
}
