package engine

import (
	"strconv"

	"github.com/jaschadub/aaeq/internal/resolver"
	"github.com/jaschadub/aaeq/internal/store"
)

// genreOverrideAdapter adapts store.GenreOverrideRepo to the narrower
// resolver.GenreOverrides interface the debouncer consumes.
type genreOverrideAdapter struct {
	repo store.GenreOverrideRepo
}

func (a genreOverrideAdapter) Get(trackKey string) (string, bool) {
	genre, ok, err := a.repo.Get(trackKey)
	if err != nil {
		return "", false
	}
	return genre, ok
}

// lastAppliedAdapter adapts store.LastAppliedRepo (int64 device IDs) to
// resolver.LastApplied (string device IDs, as the debouncer deals only
// in the device identifiers the engine hands it).
type lastAppliedAdapter struct {
	repo store.LastAppliedRepo
}

func (a lastAppliedAdapter) Get(deviceID string) (trackKey, preset string, ok bool) {
	id, err := strconv.ParseInt(deviceID, 10, 64)
	if err != nil {
		return "", "", false
	}
	trackKey, preset, ok, err = a.repo.Get(id)
	if err != nil {
		return "", "", false
	}
	return trackKey, preset, ok
}

func (a lastAppliedAdapter) Update(deviceID, trackKey, preset string) {
	id, err := strconv.ParseInt(deviceID, 10, 64)
	if err != nil {
		return
	}
	_ = a.repo.Update(id, trackKey, preset)
}

func deviceIDString(id int64) string {
	return strconv.FormatInt(id, 10)
}

// buildRulesIndex loads every persisted mapping and rebuilds the
// resolver's in-memory index. Called on startup and after SaveMapping.
func buildRulesIndex(s store.Store) (resolver.RulesIndex, error) {
	mappings, err := s.Mappings().ListAll()
	if err != nil {
		return resolver.RulesIndex{}, err
	}
	return resolver.Build(mappings), nil
}
