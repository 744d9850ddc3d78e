package sync

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Beleza-Asureti/arrms-onspring-integration/internal/apperr"
	"github.com/Beleza-Asureti/arrms-onspring-integration/internal/arrms"
	"github.com/Beleza-Asureti/arrms-onspring-integration/internal/config"
	"github.com/Beleza-Asureti/arrms-onspring-integration/internal/logger"
	"github.com/Beleza-Asureti/arrms-onspring-integration/internal/models"
	"github.com/Beleza-Asureti/arrms-onspring-integration/internal/transform"
)

// SourceClient is the Onspring surface the orchestrator needs.
type SourceClient interface {
	FetchRecord(ctx context.Context, appID, recordID int) (*models.SourceRecord, error)
	QueryRecords(ctx context.Context, appID int, filter string, pageNumber, pageSize int) ([]models.SourceRecord, error)
	ListRecordFiles(record *models.SourceRecord) []models.FileDescriptor
	DownloadFile(ctx context.Context, recordID, fieldID, fileID int) ([]byte, error)
	WriteBackFields(ctx context.Context, appID, recordID int, fields map[int]any) error
}

// TargetClient is the ARRMS surface the orchestrator needs.
type TargetClient interface {
	UploadQuestionnaireFile(ctx context.Context, payload *models.TransformedPayload, fileName string, fileData []byte) (*models.TargetRecord, error)
	UploadDocument(ctx context.Context, questionnaireID, externalID, externalSource, fileName string, fileData []byte, sourceMetadata map[string]any) (*models.DocumentRef, error)
	FetchStatistics(ctx context.Context, externalID, externalSource string) (*models.Statistics, error)
}

// acceptedContentTypes are the MIME types eligible to be the primary
// questionnaire file. Everything else still syncs, but only as a
// supplementary document.
var acceptedContentTypes = map[string]bool{
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":       true,
	"application/vnd.ms-excel":                                                true,
	"application/pdf":                                                         true,
	"application/msword":                                                      true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
}

var acceptedExtensions = map[string]bool{
	".xlsx": true,
	".xls":  true,
	".pdf":  true,
	".doc":  true,
	".docx": true,
}

// Orchestrator drives one record through fetch, transform, upload, statistics
// and write-back. It keeps no state between records; each record's fate is
// independent of every other's.
type Orchestrator struct {
	source      SourceClient
	target      TargetClient
	transformer *transform.Transformer
	mapping     models.FieldMapping
	statusList  map[string]string
	syncCfg     config.SyncConfig
	now         func() time.Time
}

func NewOrchestrator(source SourceClient, target TargetClient, transformer *transform.Transformer, onspringCfg config.OnspringConfig, syncCfg config.SyncConfig) *Orchestrator {
	return &Orchestrator{
		source:      source,
		target:      target,
		transformer: transformer,
		mapping:     onspringCfg.FieldMapping,
		statusList:  onspringCfg.StatusListValue,
		syncCfg:     syncCfg,
		now:         time.Now,
	}
}

// SyncOne synchronizes a single record. Failures before the questionnaire
// upload fail the record without touching the target; failures on
// supplementary files or statistics only degrade the outcome.
func (o *Orchestrator) SyncOne(ctx context.Context, appID, recordID int, trigger string) models.SyncOutcome {
	outcome := models.SyncOutcome{RecordID: recordID}
	log := logger.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.Int("app_id", appID), zap.Int("record_id", recordID), zap.String("trigger", trigger))

	record, err := o.source.FetchRecord(ctx, appID, recordID)
	if err != nil {
		return o.fail(outcome, "fetch record", err)
	}
	outcome.FinalState = models.StateFetched

	payload, err := o.transformer.Transform(ctx, record, trigger, o.now())
	if err != nil {
		return o.fail(outcome, "transform record", err)
	}
	outcome.FinalState = models.StateTransformed

	files := o.source.ListRecordFiles(record)
	primaryIdx := findPrimary(files)
	if primaryIdx < 0 {
		outcome.FinalState = models.StateFileMissing
		return o.fail(outcome, "locate questionnaire file", fmt.Errorf("no questionnaire file on record"))
	}
	outcome.FinalState = models.StateFileLocated
	primary := files[primaryIdx]

	data, err := o.source.DownloadFile(ctx, primary.RecordID, primary.FieldID, primary.FileID)
	if err != nil {
		return o.fail(outcome, "download questionnaire file", err)
	}

	target, err := o.target.UploadQuestionnaireFile(ctx, payload, primary.FileName, data)
	if err != nil {
		return o.fail(outcome, "upload questionnaire", err)
	}
	outcome.FinalState = models.StateUploaded
	outcome.FilesSynced++
	outcome.QuestionnaireID = target.ID
	log.Info("Questionnaire uploaded",
		zap.String("questionnaire_id", target.ID),
		zap.String("file_name", primary.FileName),
	)

	// The upload response should carry our external reference back. Its
	// absence means creation is uncertain on the target side; the record
	// still counts as synced.
	if ref := arrms.ParseExternalReference(target, o.syncCfg.ExternalSource); ref == nil {
		log.Warn("Uploaded questionnaire is missing the external reference",
			zap.String("questionnaire_id", target.ID),
			zap.String("external_source", o.syncCfg.ExternalSource),
		)
	}

	for i, f := range files {
		if i == primaryIdx {
			continue
		}
		if err := o.syncSupplementary(ctx, target.ID, payload, f); err != nil {
			outcome.FilesFailed++
			outcome.Errors = append(outcome.Errors, fmt.Sprintf("file %s: %v", f.FileName, err))
			log.Warn("Supplementary file sync failed",
				zap.Int("file_id", f.FileID),
				zap.String("file_name", f.FileName),
				zap.Error(err),
			)
			continue
		}
		outcome.FilesSynced++
	}

	o.syncStatistics(ctx, appID, recordID, payload.ExternalID, &outcome, log)

	outcome.Success = true
	outcome.FinalState = models.StateDone
	return outcome
}

// syncStatistics fetches questionnaire statistics and writes them back to the
// source record. Both steps are best-effort; their failures never fail the
// record.
func (o *Orchestrator) syncStatistics(ctx context.Context, appID, recordID int, externalID string, outcome *models.SyncOutcome, log *zap.Logger) {
	if !o.syncCfg.WriteBackEnabled {
		return
	}
	stats, err := o.target.FetchStatistics(ctx, externalID, o.syncCfg.ExternalSource)
	if err != nil {
		outcome.Errors = append(outcome.Errors, fmt.Sprintf("fetch statistics: %v", err))
		log.Warn("Statistics fetch failed", zap.Error(err))
		return
	}
	outcome.FinalState = models.StateStatsFetched

	if err := o.WriteBackStatistics(ctx, appID, recordID, stats); err != nil {
		outcome.Errors = append(outcome.Errors, fmt.Sprintf("write back statistics: %v", err))
		log.Warn("Statistics write-back failed", zap.Error(err))
		return
	}
	outcome.FinalState = models.StateWrittenBack
}

// WriteBackStatistics maps the statistics to configured source fields and
// updates the record in a single call. Semantic fields without a configured
// id are skipped.
func (o *Orchestrator) WriteBackStatistics(ctx context.Context, appID, recordID int, stats *models.Statistics) error {
	values := arrms.WriteBackValues(stats, o.statusList)
	fields := make(map[int]any, len(values))
	for name, value := range values {
		if id, ok := o.mapping.FieldID(name); ok {
			fields[id] = value
		}
	}
	if len(fields) == 0 {
		return nil
	}
	return o.source.WriteBackFields(ctx, appID, recordID, fields)
}

// SyncStatsForExternalID resolves the external id back to a record and runs
// the statistics write-back. Used by the write-back API and ARRMS callbacks.
func (o *Orchestrator) SyncStatsForExternalID(ctx context.Context, appID int, externalID string) error {
	recordID, err := transform.ExtractRecordID(externalID)
	if err != nil {
		return err
	}
	stats, err := o.target.FetchStatistics(ctx, fmt.Sprintf("%d", recordID), o.syncCfg.ExternalSource)
	if err != nil {
		return err
	}
	return o.WriteBackStatistics(ctx, appID, recordID, stats)
}

// SyncBatch queries matching records page by page and syncs each one,
// isolating failures per record. It stops starting new records once the time
// budget is spent and marks the summary partial. A pageSize of 0 uses the
// configured default.
func (o *Orchestrator) SyncBatch(ctx context.Context, appID int, filter, trigger string, pageSize int) models.BatchSummary {
	var summary models.BatchSummary
	deadline := o.now().Add(o.syncCfg.BatchTimeBudget)
	if pageSize <= 0 {
		pageSize = o.syncCfg.PageSize
	}

	for page := 1; ; page++ {
		records, err := o.source.QueryRecords(ctx, appID, filter, page, pageSize)
		if err != nil {
			logger.Error("Batch page query failed", zap.Int("page", page), zap.Error(err))
			summary.Partial = true
			return summary
		}
		if len(records) == 0 {
			return summary
		}

		for _, record := range records {
			if !o.now().Before(deadline) || ctx.Err() != nil {
				summary.Partial = true
				logger.Warn("Batch time budget exhausted",
					zap.Int("processed", summary.TotalRecords),
				)
				return summary
			}
			summary.Add(o.SyncOne(ctx, appID, record.RecordID, trigger))
		}
	}
}

func (o *Orchestrator) fail(outcome models.SyncOutcome, op string, err error) models.SyncOutcome {
	outcome.Success = false
	outcome.FinalState = models.StateFailed
	outcome.Errors = append(outcome.Errors, fmt.Sprintf("%s: %v", op, err))
	outcome.Transient = apperr.IsTransient(err)
	logger.Error("Record sync failed",
		zap.Int("record_id", outcome.RecordID),
		zap.String("op", op),
		zap.Error(err),
	)
	return outcome
}

func (o *Orchestrator) syncSupplementary(ctx context.Context, questionnaireID string, payload *models.TransformedPayload, f models.FileDescriptor) error {
	data, err := o.source.DownloadFile(ctx, f.RecordID, f.FieldID, f.FileID)
	if err != nil {
		return err
	}
	meta := map[string]any{
		"file_id":      f.FileID,
		"field_id":     f.FieldID,
		"content_type": f.ContentType,
	}
	if f.Notes != "" {
		meta["notes"] = f.Notes
	}
	_, err = o.target.UploadDocument(ctx, questionnaireID, payload.ExternalID, payload.ExternalSource, f.FileName, data, meta)
	return err
}

// findPrimary returns the index of the first file with an accepted
// questionnaire content type, or -1.
func findPrimary(files []models.FileDescriptor) int {
	for i, f := range files {
		if acceptedContentTypes[strings.ToLower(f.ContentType)] {
			return i
		}
		if acceptedExtensions[strings.ToLower(filepath.Ext(f.FileName))] {
			return i
		}
	}
	return -1
}
