package sqlite

import (
	"encoding/json"

	"github.com/jaschadub/aaeq/internal/store"
)

func marshalBands(bands []store.EqBand) (string, error) {
	b, err := json.Marshal(bands)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func unmarshalBands(s string) ([]store.EqBand, error) {
	var bands []store.EqBand
	if s == "" {
		return bands, nil
	}
	if err := json.Unmarshal([]byte(s), &bands); err != nil {
		return nil, err
	}
	return bands, nil
}
