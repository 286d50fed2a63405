package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONB maps a Postgres jsonb column (headers, parameters) onto map[string]any.
type JSONB map[string]any

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	b, err := json.Marshal(j)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (j *JSONB) Scan(value any) error {
	var b []byte
	switch v := value.(type) {
	case nil:
		*j = nil
		return nil
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("JSONB: expected []byte or string, got %T", value)
	}

	if len(b) == 0 {
		*j = nil
		return nil
	}

	return json.Unmarshal(b, j)
}

// Strings returns the entries whose values are strings, used for header maps.
func (j JSONB) Strings() map[string]string {
	out := make(map[string]string, len(j))
	for k, v := range j {
		switch s := v.(type) {
		case string:
			out[k] = s
		case fmt.Stringer:
			out[k] = s.String()
		}
	}
	return out
}

// Merge returns a copy of j with the entries of other applied on top.
func (j JSONB) Merge(other map[string]any) JSONB {
	out := make(JSONB, len(j)+len(other))
	for k, v := range j {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}
