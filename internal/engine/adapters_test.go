package engine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jaschadub/aaeq/internal/resolver"
	"github.com/jaschadub/aaeq/internal/store/memstore"
)

func TestGenreOverrideAdapterRoundTrips(t *testing.T) {
	s := memstore.New()
	require.NoError(t, s.GenreOverrides().Upsert("artist|title|album|genre", "Jazz"))

	a := genreOverrideAdapter{repo: s.GenreOverrides()}
	genre, ok := a.Get("artist|title|album|genre")
	require.True(t, ok)
	require.Equal(t, "Jazz", genre)

	_, ok = a.Get("missing")
	require.False(t, ok)
}

func TestLastAppliedAdapterConvertsDeviceID(t *testing.T) {
	s := memstore.New()
	id, err := s.Devices().Create("Node", "10.0.0.5")
	require.NoError(t, err)

	a := lastAppliedAdapter{repo: s.LastApplied()}
	idStr := deviceIDString(id)

	_, _, ok := a.Get(idStr)
	require.False(t, ok)

	a.Update(idStr, "key1", "Rock")
	trackKey, preset, ok := a.Get(idStr)
	require.True(t, ok)
	require.Equal(t, "key1", trackKey)
	require.Equal(t, "Rock", preset)
}

func TestLastAppliedAdapterRejectsNonNumericDeviceID(t *testing.T) {
	s := memstore.New()
	a := lastAppliedAdapter{repo: s.LastApplied()}

	_, _, ok := a.Get("not-a-number")
	require.False(t, ok)

	a.Update("not-a-number", "key", "preset")
	_, _, ok = a.Get("not-a-number")
	require.False(t, ok)
}

func TestBuildRulesIndexReflectsStoredMappings(t *testing.T) {
	s := memstore.New()
	_, err := s.Mappings().Upsert(resolver.Mapping{
		Scope:         resolver.ScopeGenre,
		KeyNormalized: "jazz",
		PresetName:    "Jazz Mode",
	})
	require.NoError(t, err)

	idx, err := buildRulesIndex(s)
	require.NoError(t, err)

	track := resolver.TrackMeta{Artist: "A", Title: "B", Album: "C", Genre: "Jazz"}
	require.Equal(t, "Jazz Mode", resolver.Resolve(track, idx, "Flat"))
}
