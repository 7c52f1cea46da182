package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	avErrors "github.com/sudoblockio/ansible-vagrant/pkg/errors"
)

func TestValidateRunOptions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		opts    runOptions
		wantErr string
	}{
		{"requires playbook", runOptions{}, "--playbook is required"},
		{"rejects blank playbook", runOptions{Playbook: "   "}, "--playbook is required"},
		{"rejects empty assertion", runOptions{Playbook: "p.yaml", AssertFiles: []string{""}}, "must not be empty"},
		{"accepts minimal options", runOptions{Playbook: "p.yaml"}, ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := validateRunOptions(tt.opts)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			var valErr *avErrors.ValidationError
			require.ErrorAs(t, err, &valErr)
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestParseExtraVars(t *testing.T) {
	t.Parallel()

	vars, err := parseExtraVars(nil)
	require.NoError(t, err)
	require.Nil(t, vars)

	vars, err = parseExtraVars([]string{"app_port=8080", "greeting=a=b", "app_port=9090", "empty="})
	require.NoError(t, err)
	require.Equal(t, map[string]string{"app_port": "9090", "greeting": "a=b", "empty": ""}, vars)

	_, err = parseExtraVars([]string{"novalue"})
	require.ErrorContains(t, err, `"novalue" is not key=value`)

	_, err = parseExtraVars([]string{"=x"})
	require.Error(t, err)
}
