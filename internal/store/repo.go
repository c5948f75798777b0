// Package store defines the persistence repository contracts the engine
// depends on, plus an in-memory and a SQLite-backed implementation.
package store

import "github.com/jaschadub/aaeq/internal/resolver"

// Device is a previously connected AANP node, persisted for reconnect
// and preset-caching purposes.
type Device struct {
	ID      int64
	Name    string
	Host    string
	Presets []string
}

// EqPreset is a user-authored parametric EQ preset.
type EqPreset struct {
	Name  string
	Bands []EqBand
}

// EqBand is one biquad band of a custom preset.
type EqBand struct {
	FreqHz     float64 `json:"freq_hz"`
	GainDB     float64 `json:"gain_db"`
	Q          float64 `json:"q"`
	FilterType string  `json:"filter_type"`
}

// MappingRepo persists resolver scope rules.
type MappingRepo interface {
	Upsert(m resolver.Mapping) (id int64, err error)
	ListAll() ([]resolver.Mapping, error)
	Delete(id int64) error
}

// DeviceRepo persists known AANP nodes and their cached preset lists.
type DeviceRepo interface {
	Create(name, host string) (id int64, err error)
	GetByID(id int64) (Device, error)
	ListAll() ([]Device, error)
	UpdateHost(id int64, host string) error
	Delete(id int64) error
	SyncPresets(deviceID int64, names []string) error
	GetPresets(deviceID int64) ([]string, error)
}

// LastAppliedRepo tracks the most recently applied preset per device, the
// state the resolver's debouncer consults.
type LastAppliedRepo interface {
	Update(deviceID int64, trackKey, preset string) error
	Get(deviceID int64) (trackKey, preset string, ok bool, err error)
}

// GenreOverrideRepo persists per-track genre overrides keyed by the
// exact (non-normalized) track key.
type GenreOverrideRepo interface {
	Upsert(trackKey, genre string) error
	Get(trackKey string) (genre string, ok bool, err error)
	Delete(trackKey string) error
}

// AppSettingsRepo persists small pieces of sticky UI/connection state.
type AppSettingsRepo interface {
	GetLastConnectedHost() (string, bool, error)
	SetLastConnectedHost(host string) error
	GetLastInputDevice() (string, bool, error)
	SetLastInputDevice(name string) error
}

// EqPresetRepo persists user-authored custom EQ presets.
type EqPresetRepo interface {
	Create(p EqPreset) (id int64, err error)
	Update(p EqPreset, id int64) error
	GetByName(name string) (EqPreset, bool, error)
	ListNames() ([]string, error)
	Delete(name string) error
}

// Store bundles every repository the engine depends on.
type Store interface {
	Mappings() MappingRepo
	Devices() DeviceRepo
	LastApplied() LastAppliedRepo
	GenreOverrides() GenreOverrideRepo
	AppSettings() AppSettingsRepo
	EqPresets() EqPresetRepo
	// DBPath returns the on-disk database file path that Backup
	// archives, or "" for backends with no single backing file.
	DBPath() string
	Close() error
}
