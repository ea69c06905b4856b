package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// MetaData is what the validator derives from an uploaded file. Width and
// Height are only set for image/ MIME types.
type MetaData struct {
	MimeType        string `json:"mimeType"`
	FilesizeInBytes int64  `json:"filesizeInBytes"`
	Width           int    `json:"width,omitempty"`
	Height          int    `json:"height,omitempty"`
}

// Value implements the driver.Valuer interface.
// The struct is stored as a JSON document in a text column.
func (m MetaData) Value() (driver.Value, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode meta data, %w", err)
	}

	return string(b), nil
}

// Scan implements the sql.Scanner interface.
func (m *MetaData) Scan(value any) error {
	if value == nil {
		*m = MetaData{}
		return nil
	}

	var b []byte
	switch v := value.(type) {
	case string:
		b = []byte(v)
	case []byte:
		b = v
	default:
		return fmt.Errorf("failed to scan MetaData, %v", value)
	}

	if len(b) == 0 {
		*m = MetaData{}
		return nil
	}

	return json.Unmarshal(b, m)
}
