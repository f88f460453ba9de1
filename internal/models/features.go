package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// FeatureTags is a plan's feature set, stored as a JSON-encoded string list
// in a text column. Membership is exact string comparison.
type FeatureTags []string

func (f FeatureTags) Value() (driver.Value, error) {
	if f == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(f))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (f *FeatureTags) Scan(value interface{}) error {
	if value == nil {
		*f = FeatureTags{}
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("feature tags scan: unsupported type %T", value)
	}
	if len(raw) == 0 {
		*f = FeatureTags{}
		return nil
	}
	var tags []string
	if err := json.Unmarshal(raw, &tags); err != nil {
		return fmt.Errorf("feature tags scan: %w", err)
	}
	*f = FeatureTags(tags)
	return nil
}

func (f FeatureTags) Contains(tag string) bool {
	for _, t := range f {
		if t == tag {
			return true
		}
	}
	return false
}
