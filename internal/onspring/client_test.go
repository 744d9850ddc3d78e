package onspring

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Beleza-Asureti/arrms-onspring-integration/internal/apperr"
	"github.com/Beleza-Asureti/arrms-onspring-integration/internal/config"
	"github.com/Beleza-Asureti/arrms-onspring-integration/internal/httpclient"
	"github.com/Beleza-Asureti/arrms-onspring-integration/internal/models"
)

func newTestClient(baseURL string, cfg config.OnspringConfig) *Client {
	cfg.BaseURL = baseURL
	return NewClient(cfg, "api-key", httpclient.New(5*time.Second))
}

func TestFetchRecord(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/Records/appId/118/recordId/12345", r.URL.Path)
		assert.Equal(t, "api-key", r.Header.Get("X-ApiKey"))
		assert.Equal(t, "2", r.Header.Get("x-api-version"))

		w.Write([]byte(`{"fieldData":[{"fieldId":101,"type":"Text","value":"Vendor Assessment"}]}`))
	}))
	defer srv.Close()

	record, err := newTestClient(srv.URL, config.OnspringConfig{}).FetchRecord(context.Background(), 118, 12345)
	require.NoError(t, err)
	assert.Equal(t, 118, record.AppID)
	assert.Equal(t, 12345, record.RecordID)

	field, ok := record.Field(101)
	require.True(t, ok)
	title, ok := field.String()
	require.True(t, ok)
	assert.Equal(t, "Vendor Assessment", title)
}

func TestFetchRecordNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, config.OnspringConfig{}).FetchRecord(context.Background(), 118, 999)
	require.Error(t, err)
	assert.True(t, apperr.IsNotFound(err))
}

func TestQueryRecords(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/Records/Query", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		body, _ := io.ReadAll(r.Body)
		var req map[string]any
		require.NoError(t, json.Unmarshal(body, &req))
		assert.Equal(t, float64(118), req["appId"])
		paging := req["pagingRequest"].(map[string]any)
		assert.Equal(t, float64(2), paging["pageNumber"])
		assert.Equal(t, float64(100), paging["pageSize"])

		w.Write([]byte(`{"records":[{"recordId":1,"fieldData":[]},{"recordId":2,"fieldData":[]}]}`))
	}))
	defer srv.Close()

	records, err := newTestClient(srv.URL, config.OnspringConfig{}).QueryRecords(context.Background(), 118, "", 2, 100)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 118, records[0].AppID)
	assert.Equal(t, 1, records[0].RecordID)
}

func TestQueryRecordsClampsPageSize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req map[string]any
		require.NoError(t, json.Unmarshal(body, &req))
		paging := req["pagingRequest"].(map[string]any)
		assert.Equal(t, float64(1000), paging["pageSize"])
		w.Write([]byte(`{"records":[]}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, config.OnspringConfig{}).QueryRecords(context.Background(), 118, "", 1, 5000)
	require.NoError(t, err)
}

func TestListRecordFilesOrder(t *testing.T) {
	record := &models.SourceRecord{
		RecordID: 7,
		FieldData: []models.FieldData{
			{FieldID: 10, Value: json.RawMessage(`"not a file list"`)},
			{FieldID: 20, Value: json.RawMessage(`[{"fileId":1,"fileName":"a.xlsx"},{"fileId":2,"fileName":"b.pdf"}]`)},
			{FieldID: 30, Value: json.RawMessage(`[{"fileId":3,"fileName":"c.docx"}]`)},
		},
	}

	files := newTestClient("http://unused", config.OnspringConfig{}).ListRecordFiles(record)
	require.Len(t, files, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{files[0].FileID, files[1].FileID, files[2].FileID})
	assert.Equal(t, 20, files[0].FieldID)
	assert.Equal(t, 30, files[2].FieldID)
	assert.Equal(t, 7, files[0].RecordID)
}

func TestDownloadFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/Files/recordId/7/fieldId/20/fileId/1/file", r.URL.Path)
		w.Write([]byte("binary-content"))
	}))
	defer srv.Close()

	data, err := newTestClient(srv.URL, config.OnspringConfig{}).DownloadFile(context.Background(), 7, 20, 1)
	require.NoError(t, err)
	assert.Equal(t, []byte("binary-content"), data)
}

func TestDownloadFileWrapsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, config.OnspringConfig{}).DownloadFile(context.Background(), 7, 20, 1)
	require.Error(t, err)

	var de *apperr.DownloadError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, 1, de.FileID)
}

func TestWriteBackFieldsSinglePut(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/Records", r.URL.Path)

		body, _ := io.ReadAll(r.Body)
		var req map[string]any
		require.NoError(t, json.Unmarshal(body, &req))
		assert.Equal(t, float64(118), req["appId"])
		assert.Equal(t, float64(12345), req["recordId"])

		fields := req["fields"].(map[string]any)
		assert.Equal(t, float64(100), fields["14890"])
		assert.Equal(t, "guid-status", fields["104"])
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	err := newTestClient(srv.URL, config.OnspringConfig{}).WriteBackFields(context.Background(), 118, 12345, map[int]any{
		14890: 100,
		104:   "guid-status",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls, "all fields must go in one update")
}

func TestResolveReference(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/Records/appId/249/recordId/555", r.URL.Path)
		w.Write([]byte(`{"fieldData":[{"fieldId":14949,"type":"Text","value":"Acme Corp"}]}`))
	}))
	defer srv.Close()

	cfg := config.OnspringConfig{
		ReferenceFields: map[int]models.RefTarget{
			14947: {AppID: 249, FieldID: 14949},
		},
	}
	record := &models.SourceRecord{
		RecordID: 12345,
		FieldData: []models.FieldData{
			{FieldID: 14947, Value: json.RawMessage(`555`)},
		},
	}

	name := newTestClient(srv.URL, cfg).ResolveReference(context.Background(), record, 14947)
	assert.Equal(t, "Acme Corp", name)
}

func TestResolveReferenceFailureReturnsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	cfg := config.OnspringConfig{
		ReferenceFields: map[int]models.RefTarget{
			14947: {AppID: 249, FieldID: 14949},
		},
	}
	record := &models.SourceRecord{
		RecordID: 12345,
		FieldData: []models.FieldData{
			{FieldID: 14947, Value: json.RawMessage(`555`)},
		},
	}

	assert.Empty(t, newTestClient(srv.URL, cfg).ResolveReference(context.Background(), record, 14947))
}
