package config

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	dir := t.TempDir()
	m, err := NewManager(filepath.Join(dir, "settings.json"), filepath.Join(dir, "presets.json"), nil)
	require.NoError(t, err)
	return m
}

func validSettings() Settings {
	return Settings{
		SourceFolder:    "in",
		ProcessedFolder: "out",
		ExcelFile:       "invoices.xlsx",
		ExcelSheet:      "Sheet1",
		Filter1Column:   "FOURNISSEUR",
		Filter2Column:   "FACTURE",
		OutputTemplate:  "{processed_folder}/{filter1|str.upper} - {filter2}.pdf",
	}
}

func TestNewManagerDefaults(t *testing.T) {
	m := newTestManager(t)
	s := m.Settings()
	assert.Equal(t, DefaultSettings(), s)
	assert.NotEmpty(t, s.OutputTemplate)
	assert.Empty(t, m.PresetNames())
}

func TestUpdatePersistsAcrossManagers(t *testing.T) {
	dir := t.TempDir()
	settingsPath := filepath.Join(dir, "settings.json")
	presetsPath := filepath.Join(dir, "presets.json")

	m, err := NewManager(settingsPath, presetsPath, nil)
	require.NoError(t, err)
	require.NoError(t, m.Update(validSettings()))

	reloaded, err := NewManager(settingsPath, presetsPath, nil)
	require.NoError(t, err)
	assert.Equal(t, validSettings(), reloaded.Settings())
}

func TestUpdateRejectsBrokenTemplate(t *testing.T) {
	m := newTestManager(t)
	before := m.Settings()

	s := validSettings()
	s.OutputTemplate = "{filter1|str.upper"
	err := m.Update(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rejected")
	assert.Equal(t, before, m.Settings(), "failed update must not change live settings")

	s.OutputTemplate = "{filter1|no.such.op}"
	assert.Error(t, m.Update(s))
}

func TestReset(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.Update(validSettings()))
	require.NoError(t, m.Reset())
	assert.Equal(t, DefaultSettings(), m.Settings())
}

func TestPresets(t *testing.T) {
	m := newTestManager(t)

	require.NoError(t, m.SavePreset("invoices", validSettings()))
	assert.Equal(t, []string{"invoices"}, m.PresetNames())

	t.Run("apply replaces live settings", func(t *testing.T) {
		require.NoError(t, m.ApplyPreset("invoices"))
		assert.Equal(t, validSettings(), m.Settings())
	})

	t.Run("unknown preset", func(t *testing.T) {
		assert.Error(t, m.ApplyPreset("nope"))
	})

	t.Run("empty name rejected", func(t *testing.T) {
		assert.Error(t, m.SavePreset("", validSettings()))
	})

	t.Run("broken template rejected", func(t *testing.T) {
		s := validSettings()
		s.OutputTemplate = "{oops"
		assert.Error(t, m.SavePreset("broken", s))
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, m.DeletePreset("invoices"))
		_, ok := m.Preset("invoices")
		assert.False(t, ok)
		require.NoError(t, m.DeletePreset("invoices"), "deleting twice is a no-op")
	})
}

func TestFilterColumns(t *testing.T) {
	s := validSettings()
	assert.Equal(t, []string{"FOURNISSEUR", "FACTURE"}, s.FilterColumns())

	s.Filter1Column = ""
	s.Filter3Column = "DATE FACTURE"
	assert.Equal(t, []string{"FACTURE", "DATE FACTURE"}, s.FilterColumns())
}

func TestSubscribe(t *testing.T) {
	m := newTestManager(t)

	var updates atomic.Int32
	unsubscribe := m.Subscribe(SettingsUpdated, func(ctx context.Context, event Event) error {
		assert.Equal(t, SettingsUpdated, event.Type)
		assert.Equal(t, "in", event.Settings.SourceFolder)
		updates.Add(1)
		return nil
	})
	defer unsubscribe()

	var presetName atomic.Value
	stop := m.Subscribe(PresetSaved, func(ctx context.Context, event Event) error {
		presetName.Store(event.Preset)
		return nil
	})
	defer stop()

	require.NoError(t, m.Update(validSettings()))
	require.NoError(t, m.SavePreset("invoices", validSettings()))

	assert.Eventually(t, func() bool {
		name, _ := presetName.Load().(string)
		return updates.Load() == 1 && name == "invoices"
	}, time.Second, 10*time.Millisecond)
}
