package resolver

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeOverrides map[string]string

func (f fakeOverrides) Get(trackKey string) (string, bool) {
	g, ok := f[trackKey]
	return g, ok
}

type fakeLastApplied map[string][2]string

func (f fakeLastApplied) Get(deviceID string) (string, string, bool) {
	v, ok := f[deviceID]
	if !ok {
		return "", "", false
	}
	return v[0], v[1], true
}

func (f fakeLastApplied) Update(deviceID, trackKey, preset string) {
	f[deviceID] = [2]string{trackKey, preset}
}

func TestGenreOverrideAppliedBeforeResolution(t *testing.T) {
	track := TrackMeta{
		Artist: "Pink Floyd", Title: "Time", Album: "The Dark Side of the Moon",
		Genre: "Progressive Rock", DeviceGenre: "Progressive Rock",
	}
	overrides := fakeOverrides{track.TrackKey(): "jazz"}
	idx := Build([]Mapping{
		{Scope: ScopeGenre, KeyNormalized: "jazz", PresetName: "Jazz Mode"},
	})

	d := NewDebouncer()
	preset, changed := d.Poll(track, idx, overrides, "Flat")
	require.True(t, changed)
	require.Equal(t, "Jazz Mode", preset)
	require.Equal(t, "Progressive Rock", track.DeviceGenre)
}

func TestDebounceSuppressesUnchangedTrack(t *testing.T) {
	track := TrackMeta{Artist: "A", Title: "B", Album: "C", Genre: "D"}
	idx := Build(nil)
	d := NewDebouncer()

	_, changed1 := d.Poll(track, idx, nil, "Flat")
	require.True(t, changed1)

	_, changed2 := d.Poll(track, idx, nil, "Flat")
	require.False(t, changed2)
}

func TestDebounceDetectsChangeOnNewTrack(t *testing.T) {
	d := NewDebouncer()
	trackA := TrackMeta{Artist: "A", Title: "1", Album: "X", Genre: "G"}
	trackB := TrackMeta{Artist: "B", Title: "2", Album: "Y", Genre: "G"}
	idx := Build(nil)

	_, changed1 := d.Poll(trackA, idx, nil, "Flat")
	require.True(t, changed1)
	_, changed2 := d.Poll(trackB, idx, nil, "Flat")
	require.True(t, changed2)
}

func TestShouldApplySkipsWhenTrackUnchanged(t *testing.T) {
	last := fakeLastApplied{}
	require.False(t, ShouldApply(last, "dev1", "key", "Rock", false))
}

func TestShouldApplySkipsWhenPresetUnchanged(t *testing.T) {
	last := fakeLastApplied{"dev1": [2]string{"key", "Rock"}}
	require.False(t, ShouldApply(last, "dev1", "key", "Rock", true))
}

func TestShouldApplyFiresOnNewPreset(t *testing.T) {
	last := fakeLastApplied{"dev1": [2]string{"key", "Rock"}}
	require.True(t, ShouldApply(last, "dev1", "key", "Jazz", true))
}

func TestShouldApplyFiresWhenNoPriorRecord(t *testing.T) {
	last := fakeLastApplied{}
	require.True(t, ShouldApply(last, "dev1", "key", "Rock", true))
}
