package sqlutil

import (
	"encoding/json"

	"github.com/sqlc-dev/pqtype"
)

// Helper functions for converting between Go values and nullable JSONB columns

// ToNullRawMessage marshals v into a JSONB value. A nil v maps to SQL NULL.
func ToNullRawMessage[T any](v *T) (pqtype.NullRawMessage, error) {
	if v == nil {
		return pqtype.NullRawMessage{Valid: false}, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return pqtype.NullRawMessage{}, err
	}
	return pqtype.NullRawMessage{RawMessage: raw, Valid: true}, nil
}

// FromNullRawMessage unmarshals a JSONB value. SQL NULL maps to nil.
func FromNullRawMessage[T any](val pqtype.NullRawMessage) (*T, error) {
	if !val.Valid {
		return nil, nil
	}
	var out T
	if err := json.Unmarshal(val.RawMessage, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
