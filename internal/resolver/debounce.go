package resolver

// GenreOverrides looks up a stored genre override by exact track key.
// Implementations are backed by the genre-override repository.
type GenreOverrides interface {
	Get(trackKey string) (genre string, ok bool)
}

// LastApplied tracks, per device, the track key and preset name most
// recently applied — the state the debouncer consults to suppress
// redundant device commands.
type LastApplied interface {
	Get(deviceID string) (trackKey, preset string, ok bool)
	Update(deviceID, trackKey, preset string)
}

// Debouncer remembers the previous exact track key and only re-resolves
// on change, as driven by the polling worker.
type Debouncer struct {
	lastTrackKey string
	seen         bool
}

// NewDebouncer returns a Debouncer with no prior track seen.
func NewDebouncer() *Debouncer {
	return &Debouncer{}
}

// Poll applies the genre-override layer, resolves a preset against idx,
// and reports whether the track changed since the last Poll call. A
// device command should be issued only when trackChanged is true AND
// the resolved preset differs from the device's currently applied
// preset (checked by the caller via LastApplied).
func (d *Debouncer) Poll(track TrackMeta, idx RulesIndex, overrides GenreOverrides, fallback string) (preset string, trackChanged bool) {
	trackKey := track.TrackKey()
	trackChanged = !d.seen || trackKey != d.lastTrackKey
	d.seen = true
	d.lastTrackKey = trackKey

	effective := track
	if overrides != nil {
		if genre, ok := overrides.Get(trackKey); ok {
			effective = track.WithGenre(genre)
		}
	}

	preset = Resolve(effective, idx, fallback)
	return preset, trackChanged
}

// ShouldApply reports whether preset should be issued as a device
// command: the track must have changed and the resolved preset must
// differ from what LastApplied records for deviceID.
func ShouldApply(last LastApplied, deviceID, trackKey, preset string, trackChanged bool) bool {
	if !trackChanged {
		return false
	}
	_, appliedPreset, ok := last.Get(deviceID)
	if !ok {
		return true
	}
	return appliedPreset != preset
}
