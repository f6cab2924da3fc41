package store

import (
	"fmt"

	"github.com/goccy/go-json"
)

// Set-valued fields (members, typing, read receipts) are stored as JSON text
// columns. Order is irrelevant for all of them.

func encodeJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode json column: %w", err)
	}
	return string(b), nil
}

func decodeStrings(raw string) ([]string, error) {
	if raw == "" || raw == "[]" {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("decode json column: %w", err)
	}
	return out, nil
}

func decodeMembers(raw string) ([]Member, error) {
	if raw == "" || raw == "[]" {
		return nil, nil
	}
	var out []Member
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("decode json column: %w", err)
	}
	return out, nil
}
