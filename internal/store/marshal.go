package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/starmatch/internal/canon"
)

// marshalInts stores an int list as canonical JSON TEXT.
func marshalInts(v []int) (string, error) {
	if v == nil {
		v = []int{}
	}
	data, err := canon.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal ints: %w", err)
	}
	return string(data), nil
}

func unmarshalInts(s string) ([]int, error) {
	var v []int
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, fmt.Errorf("unmarshal ints: %w", err)
	}
	return v, nil
}
