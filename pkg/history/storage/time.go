package storage

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// sqlTime scans DATETIME columns regardless of whether the driver hands
// back a time.Time or the stored text.
type sqlTime struct {
	Time time.Time
}

var timeLayouts = []string{
	lastEditedLayout,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999-07:00",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Scan implements sql.Scanner.
func (t *sqlTime) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		t.Time = time.Time{}
		return nil
	case time.Time:
		t.Time = v.UTC()
		return nil
	case string:
		return t.parse(v)
	case []byte:
		return t.parse(string(v))
	default:
		return fmt.Errorf("cannot scan %T into LastEdited", src)
	}
}

// Value implements driver.Valuer.
func (t sqlTime) Value() (driver.Value, error) {
	return t.Time.UTC().Format(lastEditedLayout), nil
}

func (t *sqlTime) parse(s string) error {
	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("unrecognized LastEdited value %q", s)
}
