package transform

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Beleza-Asureti/arrms-onspring-integration/internal/apperr"
	"github.com/Beleza-Asureti/arrms-onspring-integration/internal/models"
)

const (
	// DefaultTitle is used when the source record has no title value.
	DefaultTitle = "Untitled Questionnaire"

	externalIDPrefix = "onspring-"
)

// ReferenceResolver resolves a reference field on the record to a display
// value. Implementations return "" when resolution fails; a broken reference
// never fails a transform.
type ReferenceResolver interface {
	ResolveReference(ctx context.Context, record *models.SourceRecord, fieldID int) string
}

// Transformer converts source records into ARRMS upload payloads using a
// static field mapping.
type Transformer struct {
	mapping        models.FieldMapping
	statusByGUID   map[string]string
	recordURL      string
	externalSource string
	resolver       ReferenceResolver
}

// New builds a Transformer. statusListValues maps status literals to list
// value ids, as configured; the transformer uses the reverse direction to
// label raw status values.
func New(mapping models.FieldMapping, statusListValues map[string]string, recordURL, externalSource string, resolver ReferenceResolver) *Transformer {
	byGUID := make(map[string]string, len(statusListValues))
	for literal, guid := range statusListValues {
		byGUID[guid] = literal
	}
	return &Transformer{
		mapping:        mapping,
		statusByGUID:   byGUID,
		recordURL:      recordURL,
		externalSource: externalSource,
		resolver:       resolver,
	}
}

// Transform maps the source record to an upload payload. Deterministic for a
// fixed record, mapping and now; only synced_at varies across invocations.
func (t *Transformer) Transform(ctx context.Context, record *models.SourceRecord, trigger string, now time.Time) (*models.TransformedPayload, error) {
	if record == nil {
		return nil, &apperr.ValidationError{Field: "record", Message: "record is nil"}
	}
	if record.RecordID == 0 {
		return nil, &apperr.ValidationError{Field: "recordId", Message: "record id is missing"}
	}

	payload := &models.TransformedPayload{
		Title:          DefaultTitle,
		ExternalID:     strconv.Itoa(record.RecordID),
		ExternalSource: t.externalSource,
		ExternalMetadata: models.ExternalMetadata{
			AppID:       record.AppID,
			OnspringURL: fmt.Sprintf("%s/%d", strings.TrimRight(t.recordURL, "/"), record.RecordID),
			FieldIDs:    map[string]int(t.mapping),
			SyncedAt:    now.UTC().Format(time.RFC3339),
			SyncType:    trigger,
		},
	}

	if title := t.stringField(record, models.FieldTitle); title != "" {
		payload.Title = title
	}
	if desc := t.stringField(record, models.FieldDescription); desc != "" {
		payload.Description = &desc
	}
	if due := t.stringField(record, models.FieldDueDate); due != "" {
		payload.DueDate = &due
	}
	if notes := t.stringField(record, models.FieldNotes); notes != "" {
		payload.Notes = &notes
	}
	if status := t.statusLiteral(record); status != "" {
		payload.ExternalMetadata.OnspringStatus = status
	}

	if companyID, ok := t.mapping.FieldID(models.FieldCompany); ok && t.resolver != nil {
		if name := t.resolver.ResolveReference(ctx, record, companyID); name != "" {
			payload.RequesterName = &name
		}
	}

	return payload, nil
}

// ExtractRecordID parses a canonical external id or a prefixed form like
// "onspring-12345" back to the numeric record id.
func ExtractRecordID(externalID string) (int, error) {
	id := strings.TrimPrefix(externalID, externalIDPrefix)
	n, err := strconv.Atoi(id)
	if err != nil || n <= 0 {
		return 0, &apperr.ValidationError{Field: "external_id", Message: fmt.Sprintf("not a record id: %q", externalID)}
	}
	return n, nil
}

func (t *Transformer) stringField(record *models.SourceRecord, name string) string {
	fieldID, ok := t.mapping.FieldID(name)
	if !ok {
		return ""
	}
	field, ok := record.Field(fieldID)
	if !ok {
		return ""
	}
	value, _ := field.String()
	return value
}

// statusLiteral reads the raw status value and, when it is a list value id
// with a known label, returns the label instead.
func (t *Transformer) statusLiteral(record *models.SourceRecord) string {
	raw := t.stringField(record, models.FieldStatus)
	if raw == "" {
		return ""
	}
	if literal, ok := t.statusByGUID[raw]; ok {
		return literal
	}
	return raw
}
