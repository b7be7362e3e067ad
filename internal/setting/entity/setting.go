package entity

import "encoding/json"

// Setting is one row of the config table; Value holds JSON.
type Setting struct {
	Key   string          `db:"key" json:"key"`
	Value json.RawMessage `db:"value" json:"value"`
}

// NewSetting encodes v as the setting value.
func NewSetting(key string, v any) (*Setting, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return &Setting{Key: key, Value: raw}, nil
}
