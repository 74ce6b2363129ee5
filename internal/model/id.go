package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ID is the canonical identifier type for users, conversations, messages,
// notifications, posts and comments. The backend emits some ids as JSON
// numbers and others as strings; both decode to the same ID so comparisons
// never depend on the wire representation.
type ID string

func (id ID) String() string { return string(id) }

func (id ID) IsZero() bool { return id == "" }

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decode id: %w", err)
		}
		*id = ID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("decode id: %w", err)
	}
	// Integral numbers like 42.0 are normalised to "42".
	if i, err := n.Int64(); err == nil {
		*id = ID(strconv.FormatInt(i, 10))
		return nil
	}
	if f, err := n.Float64(); err == nil && f == float64(int64(f)) {
		*id = ID(strconv.FormatInt(int64(f), 10))
		return nil
	}
	*id = ID(n.String())
	return nil
}

// IDFromInt is a convenience for claims and tests.
func IDFromInt(n int64) ID {
	return ID(strconv.FormatInt(n, 10))
}
