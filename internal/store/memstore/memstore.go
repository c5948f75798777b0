// Package memstore is an in-process, mutex-guarded implementation of the
// store.Store contract, suitable for tests and for running the engine
// without a persistence backend wired in.
package memstore

import (
	"fmt"
	"sync"

	"github.com/jaschadub/aaeq/internal/resolver"
	"github.com/jaschadub/aaeq/internal/store"
)

// MemStore implements store.Store entirely in memory. Nothing survives
// process restart.
type MemStore struct {
	mu sync.Mutex

	nextMappingID int64
	mappings      map[int64]resolver.Mapping

	nextDeviceID int64
	devices      map[int64]store.Device

	lastApplied map[int64][2]string // deviceID -> {trackKey, preset}

	genreOverrides map[string]string

	lastConnectedHost string
	hasHost           bool
	lastInputDevice   string
	hasInputDevice    bool

	presets map[string]store.EqPreset
}

// New returns an empty MemStore.
func New() *MemStore {
	return &MemStore{
		mappings:       make(map[int64]resolver.Mapping),
		devices:        make(map[int64]store.Device),
		lastApplied:    make(map[int64][2]string),
		genreOverrides: make(map[string]string),
		presets:        make(map[string]store.EqPreset),
	}
}

func (m *MemStore) Mappings() store.MappingRepo           { return (*mappingRepo)(m) }
func (m *MemStore) Devices() store.DeviceRepo              { return (*deviceRepo)(m) }
func (m *MemStore) LastApplied() store.LastAppliedRepo      { return (*lastAppliedRepo)(m) }
func (m *MemStore) GenreOverrides() store.GenreOverrideRepo { return (*genreOverrideRepo)(m) }
func (m *MemStore) AppSettings() store.AppSettingsRepo      { return (*appSettingsRepo)(m) }
func (m *MemStore) EqPresets() store.EqPresetRepo           { return (*eqPresetRepo)(m) }

// DBPath returns "" — MemStore has no backing file to back up.
func (m *MemStore) DBPath() string { return "" }

// Close is a no-op for MemStore.
func (m *MemStore) Close() error { return nil }

type mappingRepo MemStore

func (r *mappingRepo) Upsert(mapping resolver.Mapping) (int64, error) {
	m := (*MemStore)(r)
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, existing := range m.mappings {
		if existing.Scope == mapping.Scope && existing.KeyNormalized == mapping.KeyNormalized {
			mapping.CreatedAt = existing.CreatedAt
			m.mappings[id] = mapping
			return id, nil
		}
	}
	m.nextMappingID++
	id := m.nextMappingID
	m.mappings[id] = mapping
	return id, nil
}

func (r *mappingRepo) ListAll() ([]resolver.Mapping, error) {
	m := (*MemStore)(r)
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]resolver.Mapping, 0, len(m.mappings))
	for _, mapping := range m.mappings {
		out = append(out, mapping)
	}
	return out, nil
}

func (r *mappingRepo) Delete(id int64) error {
	m := (*MemStore)(r)
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.mappings, id)
	return nil
}

type deviceRepo MemStore

func (r *deviceRepo) Create(name, host string) (int64, error) {
	m := (*MemStore)(r)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextDeviceID++
	id := m.nextDeviceID
	m.devices[id] = store.Device{ID: id, Name: name, Host: host}
	return id, nil
}

func (r *deviceRepo) GetByID(id int64) (store.Device, error) {
	m := (*MemStore)(r)
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.devices[id]
	if !ok {
		return store.Device{}, fmt.Errorf("memstore: no device with id %d", id)
	}
	return d, nil
}

func (r *deviceRepo) ListAll() ([]store.Device, error) {
	m := (*MemStore)(r)
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]store.Device, 0, len(m.devices))
	for _, d := range m.devices {
		out = append(out, d)
	}
	return out, nil
}

func (r *deviceRepo) UpdateHost(id int64, host string) error {
	m := (*MemStore)(r)
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.devices[id]
	if !ok {
		return fmt.Errorf("memstore: no device with id %d", id)
	}
	d.Host = host
	m.devices[id] = d
	return nil
}

func (r *deviceRepo) Delete(id int64) error {
	m := (*MemStore)(r)
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.devices, id)
	return nil
}

func (r *deviceRepo) SyncPresets(deviceID int64, names []string) error {
	m := (*MemStore)(r)
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.devices[deviceID]
	if !ok {
		return fmt.Errorf("memstore: no device with id %d", deviceID)
	}
	d.Presets = append([]string(nil), names...)
	m.devices[deviceID] = d
	return nil
}

func (r *deviceRepo) GetPresets(deviceID int64) ([]string, error) {
	m := (*MemStore)(r)
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.devices[deviceID]
	if !ok {
		return nil, fmt.Errorf("memstore: no device with id %d", deviceID)
	}
	return d.Presets, nil
}

type lastAppliedRepo MemStore

func (r *lastAppliedRepo) Update(deviceID int64, trackKey, preset string) error {
	m := (*MemStore)(r)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastApplied[deviceID] = [2]string{trackKey, preset}
	return nil
}

func (r *lastAppliedRepo) Get(deviceID int64) (string, string, bool, error) {
	m := (*MemStore)(r)
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.lastApplied[deviceID]
	if !ok {
		return "", "", false, nil
	}
	return v[0], v[1], true, nil
}

type genreOverrideRepo MemStore

func (r *genreOverrideRepo) Upsert(trackKey, genre string) error {
	m := (*MemStore)(r)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.genreOverrides[trackKey] = genre
	return nil
}

func (r *genreOverrideRepo) Get(trackKey string) (string, bool, error) {
	m := (*MemStore)(r)
	m.mu.Lock()
	defer m.mu.Unlock()
	genre, ok := m.genreOverrides[trackKey]
	return genre, ok, nil
}

func (r *genreOverrideRepo) Delete(trackKey string) error {
	m := (*MemStore)(r)
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.genreOverrides, trackKey)
	return nil
}

type appSettingsRepo MemStore

func (r *appSettingsRepo) GetLastConnectedHost() (string, bool, error) {
	m := (*MemStore)(r)
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastConnectedHost, m.hasHost, nil
}

func (r *appSettingsRepo) SetLastConnectedHost(host string) error {
	m := (*MemStore)(r)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastConnectedHost = host
	m.hasHost = true
	return nil
}

func (r *appSettingsRepo) GetLastInputDevice() (string, bool, error) {
	m := (*MemStore)(r)
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastInputDevice, m.hasInputDevice, nil
}

func (r *appSettingsRepo) SetLastInputDevice(name string) error {
	m := (*MemStore)(r)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastInputDevice = name
	m.hasInputDevice = true
	return nil
}

type eqPresetRepo MemStore

func (r *eqPresetRepo) Create(p store.EqPreset) (int64, error) {
	m := (*MemStore)(r)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.presets[p.Name]; exists {
		return 0, fmt.Errorf("memstore: preset %q already exists", p.Name)
	}
	m.presets[p.Name] = p
	return int64(len(m.presets)), nil
}

func (r *eqPresetRepo) Update(p store.EqPreset, id int64) error {
	m := (*MemStore)(r)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.presets[p.Name] = p
	return nil
}

func (r *eqPresetRepo) GetByName(name string) (store.EqPreset, bool, error) {
	m := (*MemStore)(r)
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.presets[name]
	return p, ok, nil
}

func (r *eqPresetRepo) ListNames() ([]string, error) {
	m := (*MemStore)(r)
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.presets))
	for name := range m.presets {
		out = append(out, name)
	}
	return out, nil
}

func (r *eqPresetRepo) Delete(name string) error {
	m := (*MemStore)(r)
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.presets, name)
	return nil
}
