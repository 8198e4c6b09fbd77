package repository

import "encoding/json"

// encodeJSONB marshals a map column for storage in a jsonb field, using
// "{}" for a nil map so NOT NULL jsonb columns never receive a Go nil.
func encodeJSONB(m map[string]any) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

// decodeJSONB unmarshals a jsonb column back into a map, tolerating a
// NULL/empty column by returning an empty, non-nil map.
func decodeJSONB(raw []byte) (map[string]any, error) {
	if len(raw) == 0 {
		return map[string]any{}, nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}
