package shutdown

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/sudoblockio/ansible-vagrant/internal/logger"
	avErrors "github.com/sudoblockio/ansible-vagrant/pkg/errors"
)

func TestResolveAllCombinations(t *testing.T) {
	t.Parallel()

	// Three explicit states crossed with three project states.
	explicitStates := []Mode{Unset, Halt, None}
	projectStates := []Mode{Unset, Destroy, Halt}

	for _, explicit := range explicitStates {
		for _, project := range projectStates {
			explicit, project := explicit, project
			t.Run(fmt.Sprintf("explicit=%q/project=%q", explicit, project), func(t *testing.T) {
				t.Parallel()

				want := Default
				switch {
				case explicit != Unset:
					want = explicit
				case project != Unset:
					want = project
				}
				require.Equal(t, want, Resolve(explicit, project))
			})
		}
	}
}

func TestResolveTable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		explicit Mode
		project  Mode
		want     Mode
	}{
		{Unset, Unset, Destroy},
		{Unset, Halt, Halt},
		{Unset, None, None},
		{Halt, Unset, Halt},
		{Halt, None, Halt},
		{None, Halt, None},
		{Destroy, None, Destroy},
		{None, Unset, None},
		{Destroy, Unset, Destroy},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, Resolve(tt.explicit, tt.project), "%v/%v", tt.explicit, tt.project)
	}
}

func TestParseMode(t *testing.T) {
	t.Parallel()

	for input, want := range map[string]Mode{
		"halt":       Halt,
		"DESTROY":    Destroy,
		"  None  ":   None,
		"":           Unset,
		"\tdestroy ": Destroy,
	} {
		got, err := ParseMode(input)
		require.NoError(t, err, input)
		require.Equal(t, want, got, input)
	}

	_, err := ParseMode("suspend")
	var validationErr *avErrors.ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Equal(t, "shutdown_mode", validationErr.Field)
	require.Contains(t, err.Error(), "halt, destroy, none")
}

func TestModeFlagAndYAML(t *testing.T) {
	t.Parallel()

	var m Mode
	require.NoError(t, m.Set("halt"))
	require.Equal(t, Halt, m)
	require.Equal(t, "halt", m.String())
	require.Equal(t, "halt|destroy|none", m.Type())
	require.Error(t, m.Set("bogus"))
	require.Equal(t, Halt, m)

	var doc struct {
		Mode Mode `yaml:"mode"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("mode: None\n"), &doc))
	require.Equal(t, None, doc.Mode)
	require.Error(t, yaml.Unmarshal([]byte("mode: later\n"), &doc))

	out, err := yaml.Marshal(struct {
		Mode Mode `yaml:"mode"`
	}{Mode: Destroy})
	require.NoError(t, err)
	require.Equal(t, "mode: destroy\n", string(out))

	require.Equal(t, "mode(9)", Mode(9).String())
}

type fakeMachine struct {
	halts     int
	destroys  int
	destroyed bool
	haltErr   error
}

func (f *fakeMachine) Halt(context.Context) error {
	f.halts++
	if f.destroyed {
		return ErrNotCreated
	}
	return f.haltErr
}

func (f *fakeMachine) Destroy(context.Context) error {
	f.destroys++
	if f.destroyed {
		return fmt.Errorf("vagrant: %w", ErrNotCreated)
	}
	f.destroyed = true
	return nil
}

func TestApplyIssuesExactlyOneCommand(t *testing.T) {
	t.Parallel()

	tests := []struct {
		mode         Mode
		wantHalts    int
		wantDestroys int
	}{
		{Halt, 1, 0},
		{Destroy, 0, 1},
		{None, 0, 0},
		{Unset, 0, 1},
	}
	for _, tt := range tests {
		m := &fakeMachine{}
		require.NoError(t, Policy{}.Apply(context.Background(), tt.mode, m))
		require.Equal(t, tt.wantHalts, m.halts, tt.mode.String())
		require.Equal(t, tt.wantDestroys, m.destroys, tt.mode.String())
	}
}

func TestApplyDestroyTwiceSucceeds(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	log, err := logger.New(logger.Options{Level: "debug", Writer: buf})
	require.NoError(t, err)

	policy := Policy{Log: log}
	m := &fakeMachine{}
	require.NoError(t, policy.Apply(context.Background(), Destroy, m))
	require.NoError(t, policy.Apply(context.Background(), Destroy, m))
	require.Equal(t, 2, m.destroys)
	require.Contains(t, buf.String(), `"level":"warn"`)
	require.Contains(t, buf.String(), "destroy skipped")
}

func TestApplyPropagatesOtherErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("vm locked")
	err := Policy{}.Apply(context.Background(), Halt, &fakeMachine{haltErr: boom})
	require.ErrorIs(t, err, boom)
	require.Contains(t, err.Error(), "halt machine")
}

func TestApplyRejectsUnknownModeAndNilMachine(t *testing.T) {
	t.Parallel()

	require.Error(t, Policy{}.Apply(context.Background(), Mode(42), &fakeMachine{}))
	require.Error(t, Policy{}.Apply(context.Background(), Destroy, nil))
}
