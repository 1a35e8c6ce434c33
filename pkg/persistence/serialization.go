package persistence

import (
	"encoding/json"
	"fmt"
	"sort"
)

// MarshalAttemptRecord serializes an AttemptRecord to JSON bytes.
func MarshalAttemptRecord(r *AttemptRecord) ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("cannot marshal nil AttemptRecord")
	}
	if r.ID == "" {
		return nil, fmt.Errorf("cannot marshal AttemptRecord without id")
	}

	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal AttemptRecord to JSON: %w", err)
	}

	return data, nil
}

// UnmarshalAttemptRecord deserializes an AttemptRecord from JSON bytes.
func UnmarshalAttemptRecord(data []byte) (*AttemptRecord, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("cannot unmarshal empty data")
	}

	var r AttemptRecord
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON to AttemptRecord: %w", err)
	}
	if _, err := ParseOutcome(string(r.Outcome)); err != nil {
		return nil, err
	}

	return &r, nil
}

// SortAttempts orders records by start time, then generation
func SortAttempts(records []*AttemptRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].StartedAt != records[j].StartedAt {
			return records[i].StartedAt < records[j].StartedAt
		}
		return records[i].Generation < records[j].Generation
	})
}
