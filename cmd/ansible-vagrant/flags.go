package main

import (
	"fmt"
	"strings"

	avErrors "github.com/sudoblockio/ansible-vagrant/pkg/errors"
)

func validateRunOptions(opts runOptions) error {
	if strings.TrimSpace(opts.Playbook) == "" {
		return avErrors.NewValidationError("playbook", "--playbook is required", nil)
	}
	for _, list := range [][]string{opts.AssertFiles, opts.AssertServices, opts.AssertPackages} {
		for _, v := range list {
			if strings.TrimSpace(v) == "" {
				return avErrors.NewValidationError("assert", "assertion targets must not be empty", nil)
			}
		}
	}
	return nil
}

// parseExtraVars turns repeated key=value flags into a map. Later keys win.
func parseExtraVars(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	vars := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, avErrors.NewValidationError("extra_vars", fmt.Sprintf("%q is not key=value", pair), nil)
		}
		vars[key] = value
	}
	return vars, nil
}
