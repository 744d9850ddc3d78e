package arrms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"github.com/Beleza-Asureti/arrms-onspring-integration/internal/apperr"
	"github.com/Beleza-Asureti/arrms-onspring-integration/internal/config"
	"github.com/Beleza-Asureti/arrms-onspring-integration/internal/httpclient"
	"github.com/Beleza-Asureti/arrms-onspring-integration/internal/models"
)

// Client talks to the ARRMS API. Uploads are multipart; the body is built as
// a byte slice so the retry transport can resend it intact.
type Client struct {
	baseURL string
	apiKey  string
	http    *httpclient.Client
}

func NewClient(cfg config.ARRMSConfig, apiKey string, hc *httpclient.Client) *Client {
	if hc == nil {
		hc = httpclient.New(60 * time.Second)
	}
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  apiKey,
		http:    hc,
	}
}

func (c *Client) headers(contentType string) map[string]string {
	h := map[string]string{"X-API-Key": c.apiKey}
	if contentType != "" {
		h["Content-Type"] = contentType
	}
	return h
}

// UploadQuestionnaireFile creates a questionnaire in ARRMS from the primary
// file plus the transformed record fields. Every upload creates a new
// questionnaire; dedup is out of scope here.
func (c *Client) UploadQuestionnaireFile(ctx context.Context, payload *models.TransformedPayload, fileName string, fileData []byte) (*models.TargetRecord, error) {
	metadata, err := json.Marshal(payload.ExternalMetadata)
	if err != nil {
		return nil, fmt.Errorf("marshal external metadata: %w", err)
	}

	fields := map[string]string{
		"external_id":       payload.ExternalID,
		"external_source":   payload.ExternalSource,
		"external_metadata": string(metadata),
	}
	if payload.RequesterName != nil {
		fields["requester_name"] = *payload.RequesterName
	}
	if payload.DueDate != nil {
		fields["due_date"] = *payload.DueDate
	}
	if payload.Notes != nil {
		fields["notes"] = *payload.Notes
	} else if payload.Description != nil {
		// Notes take precedence; the transformed description still travels
		// when the record carries no explicit notes.
		fields["notes"] = *payload.Description
	}

	body, contentType, err := buildMultipart(fileName, fileData, fields)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(ctx, http.MethodPost, c.baseURL+"/api/v1/questionnaires/upload", body, c.headers(contentType))
	if err != nil {
		return nil, err
	}

	var record models.TargetRecord
	if err := json.Unmarshal(resp.Body, &record); err != nil {
		return nil, &apperr.FatalError{Op: "upload questionnaire", Err: fmt.Errorf("decode response: %w", err)}
	}
	return &record, nil
}

// UploadDocument attaches a supplementary file to an existing questionnaire.
func (c *Client) UploadDocument(ctx context.Context, questionnaireID, externalID, externalSource, fileName string, fileData []byte, sourceMetadata map[string]any) (*models.DocumentRef, error) {
	fields := map[string]string{
		"external_id":     externalID,
		"external_source": externalSource,
	}
	if sourceMetadata != nil {
		raw, err := json.Marshal(sourceMetadata)
		if err != nil {
			return nil, fmt.Errorf("marshal source metadata: %w", err)
		}
		fields["source_metadata"] = string(raw)
	}

	body, contentType, err := buildMultipart(fileName, fileData, fields)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/api/v1/questionnaires/%s/documents", c.baseURL, questionnaireID)
	resp, err := c.http.Do(ctx, http.MethodPost, endpoint, body, c.headers(contentType))
	if err != nil {
		return nil, err
	}

	var ref models.DocumentRef
	if err := json.Unmarshal(resp.Body, &ref); err != nil {
		return nil, &apperr.FatalError{Op: "upload document", Err: fmt.Errorf("decode response: %w", err)}
	}
	return &ref, nil
}

// FetchStatistics returns the progress statistics for the questionnaire
// matching the external id.
func (c *Client) FetchStatistics(ctx context.Context, externalID, externalSource string) (*models.Statistics, error) {
	endpoint := fmt.Sprintf("%s/api/v1/integrations/questionnaires/%s/statistics?external_source=%s",
		c.baseURL, url.PathEscape(externalID), url.QueryEscape(externalSource))

	resp, err := c.http.Do(ctx, http.MethodGet, endpoint, nil, c.headers(""))
	if err != nil {
		return nil, err
	}

	var stats models.Statistics
	if err := json.Unmarshal(resp.Body, &stats); err != nil {
		return nil, &apperr.FatalError{Op: "fetch statistics", Err: fmt.Errorf("decode response: %w", err)}
	}
	return &stats, nil
}

// HealthCheck probes the ARRMS health endpoint.
func (c *Client) HealthCheck(ctx context.Context) error {
	_, err := c.http.Do(ctx, http.MethodGet, c.baseURL+"/health", nil, c.headers(""))
	return err
}

// ParseExternalReference picks the first external reference on the record
// matching the given source, or nil when there is none.
func ParseExternalReference(record *models.TargetRecord, externalSource string) *models.ExternalReference {
	if record == nil {
		return nil
	}
	for i := range record.ExternalReferences {
		if record.ExternalReferences[i].ExternalSource == externalSource {
			return &record.ExternalReferences[i]
		}
	}
	return nil
}

func buildMultipart(fileName string, fileData []byte, fields map[string]string) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", fileName)
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(fileData); err != nil {
		return nil, "", fmt.Errorf("write form file: %w", err)
	}
	for name, value := range fields {
		if err := w.WriteField(name, value); err != nil {
			return nil, "", fmt.Errorf("write form field %s: %w", name, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
