package onspring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/Beleza-Asureti/arrms-onspring-integration/internal/apperr"
	"github.com/Beleza-Asureti/arrms-onspring-integration/internal/config"
	"github.com/Beleza-Asureti/arrms-onspring-integration/internal/httpclient"
	"github.com/Beleza-Asureti/arrms-onspring-integration/internal/logger"
	"github.com/Beleza-Asureti/arrms-onspring-integration/internal/models"
)

const (
	apiVersion  = "2"
	maxPageSize = 1000
)

// Client talks to the Onspring REST API. All calls carry the X-ApiKey and
// x-api-version headers and go through the shared retry transport.
type Client struct {
	baseURL string
	apiKey  string
	http    *httpclient.Client
	cfg     config.OnspringConfig
}

func NewClient(cfg config.OnspringConfig, apiKey string, hc *httpclient.Client) *Client {
	if hc == nil {
		hc = httpclient.New(30 * time.Second)
	}
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  apiKey,
		http:    hc,
		cfg:     cfg,
	}
}

func (c *Client) headers(contentType string) map[string]string {
	h := map[string]string{
		"X-ApiKey":      c.apiKey,
		"x-api-version": apiVersion,
	}
	if contentType != "" {
		h["Content-Type"] = contentType
	}
	return h
}

// FetchRecord retrieves a single record with all its field data. A 404 from
// the platform becomes an apperr.NotFoundError.
func (c *Client) FetchRecord(ctx context.Context, appID, recordID int) (*models.SourceRecord, error) {
	url := fmt.Sprintf("%s/Records/appId/%d/recordId/%d", c.baseURL, appID, recordID)

	resp, err := c.http.Do(ctx, http.MethodGet, url, nil, c.headers(""))
	if err != nil {
		var fe *apperr.FatalError
		if errors.As(err, &fe) && fe.StatusCode == http.StatusNotFound {
			return nil, &apperr.NotFoundError{Resource: "record", ID: fmt.Sprintf("%d", recordID)}
		}
		return nil, err
	}

	var record models.SourceRecord
	if err := json.Unmarshal(resp.Body, &record); err != nil {
		return nil, &apperr.FatalError{Op: "fetch record", Err: fmt.Errorf("decode response: %w", err)}
	}
	record.AppID = appID
	record.RecordID = recordID
	return &record, nil
}

type queryRequest struct {
	AppID         int           `json:"appId"`
	PagingRequest pagingRequest `json:"pagingRequest"`
	Filter        string        `json:"filter,omitempty"`
}

type pagingRequest struct {
	PageNumber int `json:"pageNumber"`
	PageSize   int `json:"pageSize"`
}

type queryResponse struct {
	Records []models.SourceRecord `json:"records"`
}

// QueryRecords fetches one page of records matching the filter expression.
// Page numbers start at 1; an empty records array marks the end of results.
func (c *Client) QueryRecords(ctx context.Context, appID int, filter string, pageNumber, pageSize int) ([]models.SourceRecord, error) {
	if pageSize <= 0 || pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	body, err := json.Marshal(queryRequest{
		AppID:         appID,
		PagingRequest: pagingRequest{PageNumber: pageNumber, PageSize: pageSize},
		Filter:        filter,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w", err)
	}

	resp, err := c.http.Do(ctx, http.MethodPost, c.baseURL+"/Records/Query", body, c.headers("application/json"))
	if err != nil {
		return nil, err
	}

	var result queryResponse
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		return nil, &apperr.FatalError{Op: "query records", Err: fmt.Errorf("decode response: %w", err)}
	}
	for i := range result.Records {
		result.Records[i].AppID = appID
	}
	return result.Records, nil
}

// ResolveReference follows a reference field on the record to the referenced
// app's display field. Resolution failures are logged and return an empty
// string; a missing reference never fails a sync.
func (c *Client) ResolveReference(ctx context.Context, record *models.SourceRecord, fieldID int) string {
	target, ok := c.cfg.ReferenceFields[fieldID]
	if !ok {
		return ""
	}
	field, ok := record.Field(fieldID)
	if !ok {
		return ""
	}
	refID, ok := field.Int()
	if !ok || refID == 0 {
		return ""
	}

	referenced, err := c.FetchRecord(ctx, target.AppID, refID)
	if err != nil {
		logger.Warn("Reference resolution failed",
			zap.Int("record_id", record.RecordID),
			zap.Int("field_id", fieldID),
			zap.Int("referenced_record_id", refID),
			zap.Error(err),
		)
		return ""
	}
	display, ok := referenced.Field(target.FieldID)
	if !ok {
		return ""
	}
	value, _ := display.String()
	return value
}

// ListRecordFiles returns every file attachment on the record, in field order
// then list order.
func (c *Client) ListRecordFiles(record *models.SourceRecord) []models.FileDescriptor {
	files := lo.FlatMap(record.FieldData, func(f models.FieldData, _ int) []models.FileDescriptor {
		return f.Files()
	})
	for i := range files {
		files[i].RecordID = record.RecordID
	}
	return files
}

// DownloadFile fetches the raw bytes of one attachment. Failures are wrapped
// in apperr.DownloadError so the caller can count them without aborting.
func (c *Client) DownloadFile(ctx context.Context, recordID, fieldID, fileID int) ([]byte, error) {
	url := fmt.Sprintf("%s/Files/recordId/%d/fieldId/%d/fileId/%d/file", c.baseURL, recordID, fieldID, fileID)

	resp, err := c.http.Do(ctx, http.MethodGet, url, nil, c.headers(""))
	if err != nil {
		return nil, &apperr.DownloadError{FileID: fileID, Err: err}
	}
	return resp.Body, nil
}

type updateRequest struct {
	AppID    int            `json:"appId"`
	RecordID int            `json:"recordId"`
	Fields   map[string]any `json:"fields"`
}

// WriteBackFields updates the record with the given field values in a single
// PUT. Keys are Onspring field ids.
func (c *Client) WriteBackFields(ctx context.Context, appID, recordID int, fields map[int]any) error {
	if len(fields) == 0 {
		return nil
	}
	payload := updateRequest{AppID: appID, RecordID: recordID, Fields: make(map[string]any, len(fields))}
	for id, v := range fields {
		payload.Fields[fmt.Sprintf("%d", id)] = v
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal update: %w", err)
	}

	_, err = c.http.Do(ctx, http.MethodPut, c.baseURL+"/Records", body, c.headers("application/json"))
	return err
}

// HealthCheck pings the platform.
func (c *Client) HealthCheck(ctx context.Context) error {
	_, err := c.http.Do(ctx, http.MethodGet, c.baseURL+"/Ping", nil, c.headers(""))
	return err
}
