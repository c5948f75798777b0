package sqlite

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jaschadub/aaeq/internal/resolver"
	"github.com/jaschadub/aaeq/internal/store"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenAppliesMigrationsIdempotently(t *testing.T) {
	s := openTest(t)
	require.NoError(t, s.migrate())
	_, err := s.Mappings().ListAll()
	require.NoError(t, err)
}

func TestMappingUpsertAndListAll(t *testing.T) {
	s := openTest(t)
	id, err := s.Mappings().Upsert(resolver.Mapping{Scope: resolver.ScopeSong, KeyNormalized: "a - b", PresetName: "Rock"})
	require.NoError(t, err)
	require.NotZero(t, id)

	all, err := s.Mappings().ListAll()
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Equal(t, "Rock", all[0].PresetName)
}

func TestMappingUpsertConflictUpdatesPreset(t *testing.T) {
	s := openTest(t)
	_, err := s.Mappings().Upsert(resolver.Mapping{Scope: resolver.ScopeGenre, KeyNormalized: "jazz", PresetName: "Jazz1"})
	require.NoError(t, err)
	_, err = s.Mappings().Upsert(resolver.Mapping{Scope: resolver.ScopeGenre, KeyNormalized: "jazz", PresetName: "Jazz2"})
	require.NoError(t, err)

	all, err := s.Mappings().ListAll()
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Equal(t, "Jazz2", all[0].PresetName)
}

func TestDeviceCreatePresetsAndFetch(t *testing.T) {
	s := openTest(t)
	id, err := s.Devices().Create("Office", "10.0.0.10")
	require.NoError(t, err)

	require.NoError(t, s.Devices().SyncPresets(id, []string{"Flat", "Bright"}))
	d, err := s.Devices().GetByID(id)
	require.NoError(t, err)
	require.Equal(t, "Office", d.Name)
	require.Equal(t, []string{"Flat", "Bright"}, d.Presets)
}

func TestLastAppliedRoundTrip(t *testing.T) {
	s := openTest(t)
	deviceID, err := s.Devices().Create("X", "10.0.0.1")
	require.NoError(t, err)

	_, _, ok, err := s.LastApplied().Get(deviceID)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.LastApplied().Update(deviceID, "key1", "Rock"))
	trackKey, preset, ok, err := s.LastApplied().Get(deviceID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "key1", trackKey)
	require.Equal(t, "Rock", preset)
}

func TestGenreOverrideRoundTrip(t *testing.T) {
	s := openTest(t)
	require.NoError(t, s.GenreOverrides().Upsert("trackA", "jazz"))
	genre, ok, err := s.GenreOverrides().Get("trackA")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "jazz", genre)

	require.NoError(t, s.GenreOverrides().Delete("trackA"))
	_, ok, err = s.GenreOverrides().Get("trackA")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestAppSettingsRoundTrip(t *testing.T) {
	s := openTest(t)
	require.NoError(t, s.AppSettings().SetLastInputDevice("mic0"))
	name, ok, err := s.AppSettings().GetLastInputDevice()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "mic0", name)
}

func TestEqPresetCreateGetUpdateDelete(t *testing.T) {
	s := openTest(t)
	p := store.EqPreset{Name: "Custom1", Bands: []store.EqBand{{FreqHz: 1000, GainDB: 3, Q: 0.7, FilterType: "peaking"}}}
	id, err := s.EqPresets().Create(p)
	require.NoError(t, err)

	got, ok, err := s.EqPresets().GetByName("Custom1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, got.Bands, 1)
	require.Equal(t, 1000.0, got.Bands[0].FreqHz)

	p.Bands[0].GainDB = 6
	require.NoError(t, s.EqPresets().Update(p, id))
	got, _, err = s.EqPresets().GetByName("Custom1")
	require.NoError(t, err)
	require.Equal(t, 6.0, got.Bands[0].GainDB)

	require.NoError(t, s.EqPresets().Delete("Custom1"))
	_, ok, err = s.EqPresets().GetByName("Custom1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDBPathReturnsOpenedPath(t *testing.T) {
	s := openTest(t)
	require.Equal(t, ":memory:", s.DBPath())
}

var _ store.Store = (*Store)(nil)
