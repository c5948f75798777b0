package resolver

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestNormalizeLowercasesAndTrims(t *testing.T) {
	require.Equal(t, "pink floyd", Normalize("  Pink Floyd  "))
}

func TestNormalizeIsIdempotent(t *testing.T) {
	inputs := []string{"  Mixed CASE  ", "already-lower", "", "   ", "Ünïcödé Title"}
	for _, s := range inputs {
		once := Normalize(s)
		twice := Normalize(once)
		require.Equal(t, once, twice)
	}
}

func TestNormalizeIsIdempotentProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := rapid.String().Draw(t, "s")
		once := Normalize(s)
		twice := Normalize(once)
		require.Equal(t, once, twice)
	})
}

func TestEmptyRulesIndexReturnsFallback(t *testing.T) {
	idx := Build(nil)
	track := TrackMeta{Artist: "Anyone", Title: "Anything", Genre: "Unknown"}
	require.Equal(t, "Flat", Resolve(track, idx, "Flat"))
}

func TestSongRuleBeatsAlbumRule(t *testing.T) {
	track := TrackMeta{
		Artist: "Pink Floyd",
		Title:  "Time",
		Album:  "The Dark Side of the Moon",
		Genre:  "Progressive Rock",
	}
	idx := Build([]Mapping{
		{Scope: ScopeSong, KeyNormalized: track.SongKey(), PresetName: "Rock"},
		{Scope: ScopeAlbum, KeyNormalized: track.AlbumKey(), PresetName: "Classical"},
	})
	require.Equal(t, "Rock", Resolve(track, idx, "Flat"))
}

func TestAlbumRuleBeatsGenreRule(t *testing.T) {
	track := TrackMeta{Artist: "A", Title: "B", Album: "C", Genre: "Jazz"}
	idx := Build([]Mapping{
		{Scope: ScopeAlbum, KeyNormalized: track.AlbumKey(), PresetName: "AlbumPreset"},
		{Scope: ScopeGenre, KeyNormalized: track.GenreKey(), PresetName: "GenrePreset"},
	})
	require.Equal(t, "AlbumPreset", Resolve(track, idx, "Flat"))
}

func TestGenreRuleBeatsDefault(t *testing.T) {
	track := TrackMeta{Artist: "A", Title: "B", Album: "C", Genre: "Jazz"}
	idx := Build([]Mapping{
		{Scope: ScopeGenre, KeyNormalized: track.GenreKey(), PresetName: "JazzPreset"},
		{Scope: ScopeDefault, PresetName: "DefaultPreset"},
	})
	require.Equal(t, "JazzPreset", Resolve(track, idx, "Flat"))
}

func TestDefaultBeatsFallback(t *testing.T) {
	track := TrackMeta{Artist: "A", Title: "B", Album: "C", Genre: "Unmapped"}
	idx := Build([]Mapping{
		{Scope: ScopeDefault, PresetName: "DefaultPreset"},
	})
	require.Equal(t, "DefaultPreset", Resolve(track, idx, "Flat"))
}

func TestTrackKeyIsExactNotNormalized(t *testing.T) {
	track := TrackMeta{Artist: "Pink Floyd", Title: "Time", Album: "The Dark Side of the Moon", Genre: "Progressive Rock"}
	require.Equal(t, "Pink Floyd|Time|The Dark Side of the Moon|Progressive Rock", track.TrackKey())
}

func TestWithGenrePreservesDeviceGenre(t *testing.T) {
	track := TrackMeta{Genre: "Progressive Rock", DeviceGenre: "Progressive Rock"}
	overridden := track.WithGenre("Jazz")
	require.Equal(t, "Jazz", overridden.Genre)
	require.Equal(t, "Progressive Rock", overridden.DeviceGenre)
}
