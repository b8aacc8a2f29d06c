package models

import (
	"database/sql/driver"
	"fmt"

	json "github.com/goccy/go-json"
)

// JSONStringArray is a custom type for handling JSON string arrays in a text/jsonb column.
type JSONStringArray []string

// Scan implements sql.Scanner for JSONStringArray.
func (j *JSONStringArray) Scan(src interface{}) error {
	data, err := columnBytes("JSONStringArray", src)
	if err != nil || data == nil {
		*j = nil
		return err
	}
	return json.Unmarshal(data, j)
}

// Value implements driver.Valuer for JSONStringArray.
func (j JSONStringArray) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Contains reports whether the array holds s.
func (j JSONStringArray) Contains(s string) bool {
	for _, v := range j {
		if v == s {
			return true
		}
	}
	return false
}

// columnBytes normalizes a driver value into raw JSON bytes.
// A nil result with a nil error means the column was NULL or empty.
func columnBytes(name string, src interface{}) ([]byte, error) {
	if src == nil {
		return nil, nil
	}

	var data []byte
	switch v := src.(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return nil, fmt.Errorf("%s: unsupported type %T", name, src)
	}

	if len(data) == 0 {
		return nil, nil
	}
	return data, nil
}
