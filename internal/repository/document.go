package repository

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Logical collections
const (
	CollectionStudents    = "students"
	CollectionTeachers    = "teachers"
	CollectionAdmins      = "admins"
	CollectionPresence    = "presence"
	CollectionScans       = "scans"
	CollectionCredentials = "credentials"
)

// Fields is the JSON-compatible content of a document
type Fields map[string]any

// Document is one record of a collection
type Document struct {
	ID     string
	Fields Fields
}

// Filter is a set of field equality conditions, all of which must hold
type Filter map[string]any

// NewDocumentID returns a 15 character lowercase id accepted by every store driver
func NewDocumentID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:15]
}

// normalize round-trips fields through JSON so every driver sees the same value types
func normalize(fields Fields) (Fields, error) {
	if fields == nil {
		return Fields{}, nil
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to encode fields: %w", err)
	}
	out := Fields{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to decode fields: %w", err)
	}
	return out, nil
}

func merge(dst, src Fields) Fields {
	out := make(Fields, len(dst)+len(src))
	for k, v := range dst {
		out[k] = v
	}
	for k, v := range src {
		out[k] = v
	}
	return out
}

// matches reports whether the document fields satisfy every condition of filter
func matches(fields Fields, filter Filter) bool {
	if len(filter) == 0 {
		return true
	}
	want, err := normalize(Fields(filter))
	if err != nil {
		return false
	}
	for k, v := range want {
		if !reflect.DeepEqual(fields[k], v) {
			return false
		}
	}
	return true
}

// String returns a string field or ""
func (f Fields) String(key string) string {
	if v, ok := f[key].(string); ok {
		return v
	}
	return ""
}

// Time parses a timestamp field written by any driver
func (f Fields) Time(key string) *time.Time {
	switch v := f[key].(type) {
	case time.Time:
		return &v
	case string:
		return parseTime(v)
	}
	return nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.000Z07:00",
	"2006-01-02 15:04:05Z07:00",
}

func parseTime(v string) *time.Time {
	if v == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return &t
		}
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
