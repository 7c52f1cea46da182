package components

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewStageListDropsDuplicates(t *testing.T) {
	t.Parallel()

	l := NewStageList("provision", "", "connect", "provision")
	require.Equal(t, 2, l.Len())

	entries := l.Entries()
	require.Equal(t, "provision", entries[0].Name)
	require.Equal(t, "connect", entries[1].Name)
	require.Equal(t, StatusPending, entries[0].Status)
}

func TestStageListTransitions(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	l := NewStageList("provision", "configure", "teardown")

	l = l.Start("provision", start)
	s, ok := l.Get("provision")
	require.True(t, ok)
	require.Equal(t, StatusRunning, s.Status)

	l = l.Finish("provision", StatusSuccess, "", start.Add(90*time.Second))
	s, _ = l.Get("provision")
	require.Equal(t, StatusSuccess, s.Status)
	require.Equal(t, 90*time.Second, s.Duration)
	require.Equal(t, 1, l.Settled())

	// settled stages do not change again
	l = l.Finish("provision", StatusFailed, "late", start.Add(2*time.Minute))
	s, _ = l.Get("provision")
	require.Equal(t, StatusSuccess, s.Status)
	require.Empty(t, s.Message)

	l = l.Finish("configure", StatusFailed, "rc=2", start.Add(3*time.Minute))
	s, _ = l.Get("configure")
	require.Equal(t, StatusFailed, s.Status)
	require.Zero(t, s.Duration)

	l = l.SkipPending()
	s, _ = l.Get("teardown")
	require.Equal(t, StatusSkipped, s.Status)
	require.Equal(t, 3, l.Settled())
}

func TestStageListIsImmutable(t *testing.T) {
	t.Parallel()

	original := NewStageList("provision")
	_ = original.Start("provision", time.Now())

	s, _ := original.Get("provision")
	require.Equal(t, StatusPending, s.Status)

	entries := original.Entries()
	entries[0].Status = StatusFailed
	s, _ = original.Get("provision")
	require.Equal(t, StatusPending, s.Status)

	_, ok := original.Get("missing")
	require.False(t, ok)
}
