package models

import (
	"encoding/json"
	"strconv"
	"strings"
)

// SourceRecord is an immutable snapshot of an Onspring record, fetched once
// per sync attempt and never mutated by the engine.
type SourceRecord struct {
	AppID     int         `json:"appId"`
	RecordID  int         `json:"recordId"`
	FieldData []FieldData `json:"fieldData"`
}

// FieldData is a single (fieldId, type, value) entry. Value is kept raw
// because Onspring returns scalars, reference ids and file lists through the
// same shape.
type FieldData struct {
	FieldID int             `json:"fieldId"`
	Type    string          `json:"type"`
	Value   json.RawMessage `json:"value"`
}

// FileDescriptor describes one file attachment inside a file-list field.
// RecordID and FieldID are filled in when files are listed off a record.
type FileDescriptor struct {
	FileID      int    `json:"fileId"`
	FileName    string `json:"fileName"`
	FileSize    int64  `json:"fileSize"`
	ContentType string `json:"contentType"`
	Notes       string `json:"notes"`

	RecordID int `json:"-"`
	FieldID  int `json:"-"`
}

// Field returns the field entry with the given id.
func (r *SourceRecord) Field(fieldID int) (FieldData, bool) {
	for _, f := range r.FieldData {
		if f.FieldID == fieldID {
			return f, true
		}
	}
	return FieldData{}, false
}

// String returns the field value as a string. Numbers are formatted without
// an exponent so reference record ids survive the round trip.
func (f FieldData) String() (string, bool) {
	if len(f.Value) == 0 {
		return "", false
	}
	var s string
	if err := json.Unmarshal(f.Value, &s); err == nil {
		return s, true
	}
	var n float64
	if err := json.Unmarshal(f.Value, &n); err == nil {
		return strconv.FormatFloat(n, 'f', -1, 64), true
	}
	return "", false
}

// Int returns the field value as an integer when it is numeric (or a numeric
// string, which Onspring emits for some reference fields).
func (f FieldData) Int() (int, bool) {
	if len(f.Value) == 0 {
		return 0, false
	}
	var n int
	if err := json.Unmarshal(f.Value, &n); err == nil {
		return n, true
	}
	var s string
	if err := json.Unmarshal(f.Value, &s); err == nil {
		if v, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return v, true
		}
	}
	return 0, false
}

// Files decodes the field value as a file list. Any field whose value is a
// non-empty array of objects carrying a fileId is treated as file-bearing,
// regardless of the declared field type.
func (f FieldData) Files() []FileDescriptor {
	if len(f.Value) == 0 {
		return nil
	}
	var files []FileDescriptor
	if err := json.Unmarshal(f.Value, &files); err != nil {
		return nil
	}
	if len(files) == 0 || files[0].FileID == 0 {
		return nil
	}
	for i := range files {
		files[i].FieldID = f.FieldID
	}
	return files
}
