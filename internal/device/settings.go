// Package device adapts the façade's settings persistence and Alpaca network
// discovery onto the filesystem and UDP, the two things the core itself has
// no business knowing about. Grounded on the teacher's device.ProfileManager
// (JSON-file persistence under a storage path) and device.DeviceDiscovery
// (Alpaca UDP discovery), both repurposed here for the mount domain: a single
// persisted config snapshot instead of a multi-device equipment profile, and
// a discovery *responder* instead of a discovery *client*.
package device

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/draco-mount/alpaca-mount/internal/eventbus"
	"github.com/draco-mount/alpaca-mount/internal/mount"
)

// SettingsTopic is the eventbus topic published whenever a snapshot is saved.
const SettingsTopic = "mount.settings.changed"

// settingsDoc is the on-disk shape: the immutable Config snapshot plus the
// one piece of runtime state spec §6.3 says should survive a restart
// (at_park - so the façade does not think it needs a fresh find_home after a
// routine service restart).
type settingsDoc struct {
	Config mount.Config `json:"config"`
	AtPark bool         `json:"at_park"`
}

// SettingsStore persists a single mount.Config snapshot (plus AtPark) as
// JSON, the way the teacher's ProfileManager persisted its equipment
// profiles, and pushes every saved snapshot through the eventbus so other
// subscribers (e.g. the websocket hub) can react to a settings change.
type SettingsStore struct {
	mu          sync.RWMutex
	storagePath string
	bus         eventbus.EventBus
	current     settingsDoc
}

// NewSettingsStore builds a store rooted at storagePath. If a settings file
// already exists there it is loaded immediately; otherwise fallback becomes
// the current snapshot (and is written out on the first Save).
func NewSettingsStore(storagePath string, bus eventbus.EventBus, fallback mount.Config) *SettingsStore {
	s := &SettingsStore{
		storagePath: storagePath,
		bus:         bus,
		current:     settingsDoc{Config: fallback},
	}
	s.load()
	return s
}

func (s *SettingsStore) path() string {
	return filepath.Join(s.storagePath, "mount-settings.json")
}

func (s *SettingsStore) load() {
	if s.storagePath == "" {
		return
	}
	data, err := os.ReadFile(s.path())
	if err != nil {
		return // not yet created, fallback stands
	}
	var doc settingsDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return
	}
	// slewSpeeds is unexported and JSON-invisible by design (spec §9
	// SlewSpeedEight); recompute it from the loaded MaxSlewRate.
	doc.Config = doc.Config.WithMaxSlewRate(doc.Config.MaxSlewRate)
	s.mu.Lock()
	s.current = doc
	s.mu.Unlock()
}

// Current returns the last-saved (or fallback) config and parked flag.
func (s *SettingsStore) Current() (mount.Config, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Config, s.current.AtPark
}

// Save writes cfg/atPark to disk and publishes the change on the eventbus
// (spec §6.3: "configuration changes are persisted and observable").
func (s *SettingsStore) Save(ctx context.Context, cfg mount.Config, atPark bool) error {
	doc := settingsDoc{Config: cfg, AtPark: atPark}

	s.mu.Lock()
	s.current = doc
	s.mu.Unlock()

	if s.storagePath != "" {
		if err := os.MkdirAll(s.storagePath, 0755); err != nil {
			return fmt.Errorf("settings: create storage dir: %w", err)
		}
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return fmt.Errorf("settings: marshal: %w", err)
		}
		if err := os.WriteFile(s.path(), data, 0644); err != nil {
			return fmt.Errorf("settings: write: %w", err)
		}
	}

	if s.bus != nil {
		return s.bus.Publish(ctx, SettingsTopic, doc.Config)
	}
	return nil
}
