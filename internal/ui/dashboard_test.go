package ui

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFetch(snap Snapshot, err error) SnapshotFunc {
	return func(context.Context) (Snapshot, error) { return snap, err }
}

func TestDashModelQuitKeys(t *testing.T) {
	keys := []tea.KeyMsg{
		{Type: tea.KeyRunes, Runes: []rune("q")},
		{Type: tea.KeyCtrlC},
		{Type: tea.KeyEsc},
	}
	for _, key := range keys {
		m := newDashModel(testFetch(Snapshot{}, nil), time.Second, true)
		_, cmd := m.Update(key)
		require.NotNil(t, cmd, "key %q should produce a quit command", key.String())
		assert.Equal(t, tea.Quit(), cmd())
	}
}

func TestDashModelSnapshotUpdates(t *testing.T) {
	m := newDashModel(testFetch(Snapshot{}, nil), time.Second, true)
	assert.Contains(t, m.View(), "loading")

	_, _ = m.Update(snapshotMsg{snap: sampleSnapshot()})
	view := m.View()
	assert.Contains(t, view, "EMBED")
	assert.Contains(t, view, "2/3")
	assert.Contains(t, view, "(1 failed)")
	assert.Contains(t, view, "q to quit")
}

func TestDashModelKeepsLastGoodSnapshotOnError(t *testing.T) {
	m := newDashModel(testFetch(Snapshot{}, nil), time.Second, true)
	_, _ = m.Update(snapshotMsg{snap: sampleSnapshot()})
	_, _ = m.Update(snapshotMsg{err: errors.New("store closed")})

	view := m.View()
	assert.Contains(t, view, "EMBED", "stale data should still render")
	assert.Contains(t, view, "refresh failed: store closed")
}

func TestDashModelRefreshSchedulesFetch(t *testing.T) {
	m := newDashModel(testFetch(sampleSnapshot(), nil), time.Millisecond, true)
	_, cmd := m.Update(refreshMsg(time.Now()))
	require.NotNil(t, cmd)
}

func TestDashModelWindowResizeAdjustsBars(t *testing.T) {
	m := newDashModel(testFetch(Snapshot{}, nil), time.Second, true)
	_, _ = m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	assert.Equal(t, 120, m.width)

	_, _ = m.Update(tea.WindowSizeMsg{Width: 20, Height: 10})
	_, _ = m.Update(snapshotMsg{snap: sampleSnapshot()})
	assert.NotEmpty(t, m.View(), "narrow terminals must still render")
}
