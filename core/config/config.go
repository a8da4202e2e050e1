// Package config manages the application settings and named presets, with
// JSON file persistence and change notification over a typed event bus.
// An output template is validated before it is accepted into settings, so a
// template that fails to parse can never reach saved configuration.
package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/asaidimu/go-events"
	"go.uber.org/zap"

	"github.com/sokoine/go-docsort/core/template"
)

// Settings is the persisted application configuration. Field keys mirror
// the on-disk JSON document.
type Settings struct {
	SourceFolder    string `json:"source_folder"`
	ProcessedFolder string `json:"processed_folder"`
	ExcelFile       string `json:"excel_file"`
	ExcelSheet      string `json:"excel_sheet"`
	Filter1Column   string `json:"filter1_column"`
	Filter2Column   string `json:"filter2_column"`
	Filter3Column   string `json:"filter3_column"`
	OutputTemplate  string `json:"output_template"`
}

// FilterColumns returns the configured filter columns, skipping unset ones.
func (s Settings) FilterColumns() []string {
	var cols []string
	for _, c := range []string{s.Filter1Column, s.Filter2Column, s.Filter3Column} {
		if c != "" {
			cols = append(cols, c)
		}
	}
	return cols
}

// DefaultSettings returns the configuration used before any file has been
// saved.
func DefaultSettings() Settings {
	return Settings{
		OutputTemplate: "{processed_folder}/{filter1|str.upper} - {filter2|str.upper}.pdf",
	}
}

// EventType identifies a configuration change notification.
type EventType string

// Configuration event types.
const (
	SettingsUpdated EventType = "settings.updated"
	SettingsReset   EventType = "settings.reset"
	PresetSaved     EventType = "preset.saved"
	PresetDeleted   EventType = "preset.deleted"
)

// Event is the payload delivered to configuration subscribers.
type Event struct {
	Type      EventType `json:"type"`
	Preset    string    `json:"preset,omitempty"`
	Settings  Settings  `json:"settings"`
	Timestamp time.Time `json:"timestamp"`
}

// Manager owns the settings and presets files. All accessors are safe for
// concurrent use.
type Manager struct {
	mu          sync.RWMutex
	path        string
	presetsPath string
	settings    Settings
	presets     map[string]Settings
	bus         *events.TypedEventBus[Event]
	logger      *zap.Logger
}

// NewManager loads configuration and presets from the given files, falling
// back to defaults when a file does not exist yet. A nil logger disables
// logging.
func NewManager(path, presetsPath string, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	bus, err := events.NewTypedEventBus[Event](events.DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("could not initialize config event bus: %w", err)
	}
	m := &Manager{
		path:        path,
		presetsPath: presetsPath,
		settings:    DefaultSettings(),
		presets:     map[string]Settings{},
		bus:         bus,
		logger:      logger,
	}
	if err := m.load(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manager) load() error {
	if err := readJSONFile(m.path, &m.settings); err != nil {
		return fmt.Errorf("failed to load settings from %s: %w", m.path, err)
	}
	if err := readJSONFile(m.presetsPath, &m.presets); err != nil {
		return fmt.Errorf("failed to load presets from %s: %w", m.presetsPath, err)
	}
	m.logger.Debug("Configuration loaded",
		zap.String("path", m.path),
		zap.Int("presets", len(m.presets)))
	return nil
}

// readJSONFile unmarshals path into out, leaving out untouched when the
// file does not exist.
func readJSONFile(path string, out any) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func writeJSONFile(path string, in any) error {
	data, err := json.MarshalIndent(in, "", "    ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Settings returns a copy of the current settings.
func (m *Manager) Settings() Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings
}

// Update validates, persists, and announces a new settings value. The
// output template is parsed first; a template that does not parse is
// rejected before anything is written.
func (m *Manager) Update(s Settings) error {
	if _, err := template.Parse(s.OutputTemplate); err != nil {
		return fmt.Errorf("output template rejected: %w", err)
	}

	m.mu.Lock()
	m.settings = s
	err := writeJSONFile(m.path, m.settings)
	m.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to save settings to %s: %w", m.path, err)
	}

	m.logger.Info("Settings updated", zap.String("template", s.OutputTemplate))
	m.emit(Event{Type: SettingsUpdated, Settings: s, Timestamp: time.Now()})
	return nil
}

// Reset restores the defaults, persists them, and announces the change.
func (m *Manager) Reset() error {
	s := DefaultSettings()

	m.mu.Lock()
	m.settings = s
	err := writeJSONFile(m.path, m.settings)
	m.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to save settings to %s: %w", m.path, err)
	}

	m.logger.Info("Settings reset to defaults")
	m.emit(Event{Type: SettingsReset, Settings: s, Timestamp: time.Now()})
	return nil
}

// PresetNames lists saved presets.
func (m *Manager) PresetNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.presets))
	for name := range m.presets {
		names = append(names, name)
	}
	return names
}

// Preset returns a saved preset by name.
func (m *Manager) Preset(name string) (Settings, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.presets[name]
	return s, ok
}

// SavePreset stores a named preset. Presets go through the same template
// validation as live settings.
func (m *Manager) SavePreset(name string, s Settings) error {
	if name == "" {
		return fmt.Errorf("preset name cannot be empty")
	}
	if _, err := template.Parse(s.OutputTemplate); err != nil {
		return fmt.Errorf("preset %q rejected: %w", name, err)
	}

	m.mu.Lock()
	m.presets[name] = s
	err := writeJSONFile(m.presetsPath, m.presets)
	m.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to save presets to %s: %w", m.presetsPath, err)
	}

	m.logger.Info("Preset saved", zap.String("name", name))
	m.emit(Event{Type: PresetSaved, Preset: name, Settings: s, Timestamp: time.Now()})
	return nil
}

// DeletePreset removes a named preset; deleting an unknown preset is a
// no-op.
func (m *Manager) DeletePreset(name string) error {
	m.mu.Lock()
	s, ok := m.presets[name]
	if !ok {
		m.mu.Unlock()
		return nil
	}
	delete(m.presets, name)
	err := writeJSONFile(m.presetsPath, m.presets)
	m.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to save presets to %s: %w", m.presetsPath, err)
	}

	m.logger.Info("Preset deleted", zap.String("name", name))
	m.emit(Event{Type: PresetDeleted, Preset: name, Settings: s, Timestamp: time.Now()})
	return nil
}

// ApplyPreset replaces the live settings with a saved preset.
func (m *Manager) ApplyPreset(name string) error {
	s, ok := m.Preset(name)
	if !ok {
		return fmt.Errorf("unknown preset %q", name)
	}
	return m.Update(s)
}

// Subscribe registers a callback for a configuration event type and
// returns its unsubscribe function.
func (m *Manager) Subscribe(t EventType, cb func(ctx context.Context, event Event) error) func() {
	return m.bus.Subscribe(string(t), cb)
}

func (m *Manager) emit(event Event) {
	m.bus.Emit(string(event.Type), event)
}
