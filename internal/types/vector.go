package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// Vector is an embedding stored as a JSON array. An empty vector is NULL.
type Vector []float32

func (v Vector) Value() (driver.Value, error) {
	if len(v) == 0 {
		return nil, nil
	}
	b, err := json.Marshal([]float32(v))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (v *Vector) Scan(src any) error {
	var raw []byte
	switch t := src.(type) {
	case nil:
		*v = nil
		return nil
	case []byte:
		raw = t
	case string:
		raw = []byte(t)
	default:
		return fmt.Errorf("vector: unsupported scan type %T", src)
	}
	if len(raw) == 0 {
		*v = nil
		return nil
	}
	var out []float32
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("vector: %w", err)
	}
	*v = out
	return nil
}

func (Vector) GormDataType() string { return "json" }

func (Vector) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	switch db.Dialector.Name() {
	case "postgres":
		return "JSONB"
	default:
		return "JSON"
	}
}
