package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldDataString(t *testing.T) {
	s, ok := FieldData{Value: json.RawMessage(`"hello"`)}.String()
	require.True(t, ok)
	assert.Equal(t, "hello", s)

	s, ok = FieldData{Value: json.RawMessage(`249`)}.String()
	require.True(t, ok)
	assert.Equal(t, "249", s)

	_, ok = FieldData{}.String()
	assert.False(t, ok)

	_, ok = FieldData{Value: json.RawMessage(`[1,2]`)}.String()
	assert.False(t, ok)
}

func TestFieldDataInt(t *testing.T) {
	n, ok := FieldData{Value: json.RawMessage(`249`)}.Int()
	require.True(t, ok)
	assert.Equal(t, 249, n)

	n, ok = FieldData{Value: json.RawMessage(`" 42 "`)}.Int()
	require.True(t, ok)
	assert.Equal(t, 42, n)

	_, ok = FieldData{Value: json.RawMessage(`"nope"`)}.Int()
	assert.False(t, ok)
}

func TestFieldDataFiles(t *testing.T) {
	f := FieldData{FieldID: 20, Value: json.RawMessage(`[{"fileId":1,"fileName":"a.xlsx"},{"fileId":2,"fileName":"b.pdf"}]`)}
	files := f.Files()
	require.Len(t, files, 2)
	assert.Equal(t, 1, files[0].FileID)
	assert.Equal(t, 20, files[0].FieldID)
	assert.Equal(t, 20, files[1].FieldID)

	assert.Nil(t, FieldData{Value: json.RawMessage(`"text"`)}.Files())
	assert.Nil(t, FieldData{Value: json.RawMessage(`[]`)}.Files())
	assert.Nil(t, FieldData{Value: json.RawMessage(`[{"other":true}]`)}.Files())
	assert.Nil(t, FieldData{}.Files())
}

func TestSourceRecordField(t *testing.T) {
	r := SourceRecord{FieldData: []FieldData{{FieldID: 101}, {FieldID: 104}}}

	f, ok := r.Field(104)
	require.True(t, ok)
	assert.Equal(t, 104, f.FieldID)

	_, ok = r.Field(999)
	assert.False(t, ok)
}

func TestBatchSummaryAdd(t *testing.T) {
	var s BatchSummary
	s.Add(SyncOutcome{RecordID: 1, Success: true, FilesSynced: 2})
	s.Add(SyncOutcome{RecordID: 2, Success: false, FilesFailed: 1, Errors: []string{"upload failed"}})

	assert.Equal(t, 2, s.TotalRecords)
	assert.Equal(t, 1, s.Successful)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 2, s.FilesSynced)
	assert.Equal(t, 1, s.FilesFailed)
	require.Len(t, s.Errors, 1)
	assert.Equal(t, 2, s.Errors[0].RecordID)
	assert.Equal(t, "upload failed", s.Errors[0].Error)
}
