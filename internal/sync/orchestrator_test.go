package sync

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Beleza-Asureti/arrms-onspring-integration/internal/apperr"
	"github.com/Beleza-Asureti/arrms-onspring-integration/internal/config"
	"github.com/Beleza-Asureti/arrms-onspring-integration/internal/logger"
	"github.com/Beleza-Asureti/arrms-onspring-integration/internal/models"
	"github.com/Beleza-Asureti/arrms-onspring-integration/internal/transform"
)

type fakeSource struct {
	records       map[int]*models.SourceRecord
	filesByRecord map[int][]models.FileDescriptor
	pages         [][]models.SourceRecord
	fetchErr      map[int]error
	downloadErr   map[int]error
	writeBacks    []map[int]any
	queryErr      error
}

func (f *fakeSource) FetchRecord(_ context.Context, appID, recordID int) (*models.SourceRecord, error) {
	if err, ok := f.fetchErr[recordID]; ok {
		return nil, err
	}
	if r, ok := f.records[recordID]; ok {
		return r, nil
	}
	return nil, &apperr.NotFoundError{Resource: "record", ID: fmt.Sprintf("%d", recordID)}
}

func (f *fakeSource) QueryRecords(_ context.Context, _ int, _ string, pageNumber, _ int) ([]models.SourceRecord, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	if pageNumber-1 < len(f.pages) {
		return f.pages[pageNumber-1], nil
	}
	return nil, nil
}

func (f *fakeSource) ListRecordFiles(record *models.SourceRecord) []models.FileDescriptor {
	return f.filesByRecord[record.RecordID]
}

func (f *fakeSource) DownloadFile(_ context.Context, _, _, fileID int) ([]byte, error) {
	if err, ok := f.downloadErr[fileID]; ok {
		return nil, &apperr.DownloadError{FileID: fileID, Err: err}
	}
	return []byte("data"), nil
}

func (f *fakeSource) WriteBackFields(_ context.Context, _, _ int, fields map[int]any) error {
	f.writeBacks = append(f.writeBacks, fields)
	return nil
}

type fakeTarget struct {
	uploads      int
	docUploads   []string
	statsCalls   int
	uploadErr    error
	docErrByName map[string]error
	stats        *models.Statistics
	statsErr     error
	refs         []models.ExternalReference
}

func (f *fakeTarget) UploadQuestionnaireFile(_ context.Context, _ *models.TransformedPayload, fileName string, _ []byte) (*models.TargetRecord, error) {
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	f.uploads++
	return &models.TargetRecord{ID: "q-001", Name: fileName, ExternalReferences: f.refs}, nil
}

func (f *fakeTarget) UploadDocument(_ context.Context, _, _, _, fileName string, _ []byte, _ map[string]any) (*models.DocumentRef, error) {
	if err, ok := f.docErrByName[fileName]; ok {
		return nil, err
	}
	f.docUploads = append(f.docUploads, fileName)
	return &models.DocumentRef{FileID: fileName, Status: "uploaded"}, nil
}

func (f *fakeTarget) FetchStatistics(_ context.Context, _, _ string) (*models.Statistics, error) {
	f.statsCalls++
	if f.statsErr != nil {
		return nil, f.statsErr
	}
	if f.stats != nil {
		return f.stats, nil
	}
	return &models.Statistics{}, nil
}

var testMapping = models.FieldMapping{
	models.FieldTitle:          101,
	models.FieldStatus:         104,
	models.FieldTotalQuestions: 14890,
	models.FieldOpenQuestions:  14892,
}

func newTestOrchestrator(source *fakeSource, target *fakeTarget, syncCfg config.SyncConfig) *Orchestrator {
	if syncCfg.ExternalSource == "" {
		syncCfg.ExternalSource = "onspring"
	}
	if syncCfg.PageSize == 0 {
		syncCfg.PageSize = 100
	}
	tr := transform.New(testMapping, map[string]string{"Request in Process": "guid-in-process"}, "https://app.onspring.com/record", "onspring", nil)
	onspringCfg := config.OnspringConfig{
		FieldMapping:    testMapping,
		StatusListValue: map[string]string{"Request in Process": "guid-in-process"},
	}
	return NewOrchestrator(source, target, tr, onspringCfg, syncCfg)
}

func simpleRecord(id int) *models.SourceRecord {
	return &models.SourceRecord{AppID: 118, RecordID: id}
}

func xlsxFile(recordID, fileID int, name string) models.FileDescriptor {
	return models.FileDescriptor{
		FileID:      fileID,
		FileName:    name,
		ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		RecordID:    recordID,
		FieldID:     20,
	}
}

func TestSyncOneSingleSpreadsheet(t *testing.T) {
	source := &fakeSource{
		records:       map[int]*models.SourceRecord{1: simpleRecord(1)},
		filesByRecord: map[int][]models.FileDescriptor{1: {xlsxFile(1, 10, "assessment.xlsx")}},
	}
	target := &fakeTarget{}
	o := newTestOrchestrator(source, target, config.SyncConfig{})

	outcome := o.SyncOne(context.Background(), 118, 1, models.TriggerWebhook)

	assert.True(t, outcome.Success)
	assert.Equal(t, 1, outcome.FilesSynced)
	assert.Equal(t, 0, outcome.FilesFailed)
	assert.Equal(t, "q-001", outcome.QuestionnaireID)
	assert.Equal(t, models.StateDone, outcome.FinalState)
	assert.Equal(t, 1, target.uploads)
}

func TestSyncOneNoQuestionnaireFile(t *testing.T) {
	source := &fakeSource{
		records: map[int]*models.SourceRecord{1: simpleRecord(1)},
		filesByRecord: map[int][]models.FileDescriptor{1: {
			{FileID: 10, FileName: "photo.png", ContentType: "image/png", RecordID: 1, FieldID: 20},
		}},
	}
	target := &fakeTarget{}
	o := newTestOrchestrator(source, target, config.SyncConfig{WriteBackEnabled: true})

	outcome := o.SyncOne(context.Background(), 118, 1, models.TriggerWebhook)

	assert.False(t, outcome.Success)
	assert.Equal(t, models.StateFailed, outcome.FinalState)
	require.NotEmpty(t, outcome.Errors)
	assert.Contains(t, outcome.Errors[0], "no questionnaire file")
	assert.Equal(t, 0, target.uploads, "no upload may happen without a questionnaire file")
	assert.Equal(t, 0, target.statsCalls)
	assert.Empty(t, target.docUploads)
}

func TestSyncOneWarnsOnMissingExternalReference(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	prev := logger.Logger
	logger.Logger = zap.New(core)
	defer func() { logger.Logger = prev }()

	source := &fakeSource{
		records:       map[int]*models.SourceRecord{1: simpleRecord(1)},
		filesByRecord: map[int][]models.FileDescriptor{1: {xlsxFile(1, 10, "assessment.xlsx")}},
	}
	target := &fakeTarget{}
	o := newTestOrchestrator(source, target, config.SyncConfig{})

	outcome := o.SyncOne(context.Background(), 118, 1, models.TriggerWebhook)

	assert.True(t, outcome.Success, "a missing reference degrades nothing")
	assert.Equal(t, models.StateDone, outcome.FinalState)
	assert.Empty(t, outcome.Errors)
	require.Len(t, logs.FilterMessage("Uploaded questionnaire is missing the external reference").All(), 1)
}

func TestSyncOneNoWarningWhenExternalReferencePresent(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	prev := logger.Logger
	logger.Logger = zap.New(core)
	defer func() { logger.Logger = prev }()

	source := &fakeSource{
		records:       map[int]*models.SourceRecord{1: simpleRecord(1)},
		filesByRecord: map[int][]models.FileDescriptor{1: {xlsxFile(1, 10, "assessment.xlsx")}},
	}
	target := &fakeTarget{refs: []models.ExternalReference{
		{ID: "r1", ExternalID: "1", ExternalSource: "onspring"},
	}}
	o := newTestOrchestrator(source, target, config.SyncConfig{})

	outcome := o.SyncOne(context.Background(), 118, 1, models.TriggerWebhook)

	assert.True(t, outcome.Success)
	assert.Empty(t, logs.FilterMessage("Uploaded questionnaire is missing the external reference").All())
}

func TestSyncOneSupplementaryFailureIsolation(t *testing.T) {
	source := &fakeSource{
		records: map[int]*models.SourceRecord{1: simpleRecord(1)},
		filesByRecord: map[int][]models.FileDescriptor{1: {
			xlsxFile(1, 10, "assessment.xlsx"),
			{FileID: 11, FileName: "evidence.png", ContentType: "image/png", RecordID: 1, FieldID: 20},
			{FileID: 12, FileName: "broken.zip", ContentType: "application/zip", RecordID: 1, FieldID: 20},
		}},
		downloadErr: map[int]error{12: fmt.Errorf("connection reset")},
	}
	target := &fakeTarget{}
	o := newTestOrchestrator(source, target, config.SyncConfig{})

	outcome := o.SyncOne(context.Background(), 118, 1, models.TriggerWebhook)

	assert.True(t, outcome.Success, "supplementary failures must not fail the record")
	assert.Equal(t, 2, outcome.FilesSynced)
	assert.Equal(t, 1, outcome.FilesFailed)
	assert.Equal(t, 3, outcome.FilesSynced+outcome.FilesFailed, "every discovered file is accounted for")
	assert.Equal(t, []string{"evidence.png"}, target.docUploads)
}

func TestSyncOneStatisticsFailureNonFatal(t *testing.T) {
	source := &fakeSource{
		records:       map[int]*models.SourceRecord{1: simpleRecord(1)},
		filesByRecord: map[int][]models.FileDescriptor{1: {xlsxFile(1, 10, "assessment.xlsx")}},
	}
	target := &fakeTarget{statsErr: fmt.Errorf("stats unavailable")}
	o := newTestOrchestrator(source, target, config.SyncConfig{WriteBackEnabled: true})

	outcome := o.SyncOne(context.Background(), 118, 1, models.TriggerWebhook)

	assert.True(t, outcome.Success)
	assert.Equal(t, models.StateDone, outcome.FinalState)
	require.NotEmpty(t, outcome.Errors)
	assert.Contains(t, outcome.Errors[0], "fetch statistics")
	assert.Empty(t, source.writeBacks)
}

func TestSyncOneWritesBackStatistics(t *testing.T) {
	source := &fakeSource{
		records:       map[int]*models.SourceRecord{1: simpleRecord(1)},
		filesByRecord: map[int][]models.FileDescriptor{1: {xlsxFile(1, 10, "assessment.xlsx")}},
	}
	target := &fakeTarget{stats: &models.Statistics{
		Summary: models.StatisticsSummary{TotalQuestions: 100, AnsweredQuestions: 70, ApprovedQuestions: 50},
	}}
	o := newTestOrchestrator(source, target, config.SyncConfig{WriteBackEnabled: true})

	outcome := o.SyncOne(context.Background(), 118, 1, models.TriggerWebhook)

	assert.True(t, outcome.Success)
	require.Len(t, source.writeBacks, 1, "write-back is a single update")
	fields := source.writeBacks[0]
	assert.Equal(t, 100, fields[14890])
	assert.Equal(t, 50, fields[14892])
	assert.Equal(t, "guid-in-process", fields[104])
}

func TestSyncOneUploadFailure(t *testing.T) {
	source := &fakeSource{
		records:       map[int]*models.SourceRecord{1: simpleRecord(1)},
		filesByRecord: map[int][]models.FileDescriptor{1: {xlsxFile(1, 10, "assessment.xlsx")}},
	}
	target := &fakeTarget{uploadErr: &apperr.TransientError{Op: "upload", Attempts: 3, Err: fmt.Errorf("503")}}
	o := newTestOrchestrator(source, target, config.SyncConfig{})

	outcome := o.SyncOne(context.Background(), 118, 1, models.TriggerWebhook)

	assert.False(t, outcome.Success)
	assert.True(t, outcome.Transient, "transient upload failures are retryable at the event level")
	assert.Equal(t, 0, outcome.FilesSynced)
}

func TestSyncBatchIsolatesFailures(t *testing.T) {
	source := &fakeSource{
		records: map[int]*models.SourceRecord{
			1: simpleRecord(1),
			2: simpleRecord(2),
			3: simpleRecord(3),
		},
		filesByRecord: map[int][]models.FileDescriptor{
			1: {xlsxFile(1, 10, "a.xlsx")},
			2: {xlsxFile(2, 11, "b.xlsx")},
			3: {xlsxFile(3, 12, "c.xlsx")},
		},
		fetchErr: map[int]error{2: &apperr.TransientError{Op: "fetch", Attempts: 3, Err: fmt.Errorf("timeout")}},
		pages: [][]models.SourceRecord{
			{*simpleRecord(1), *simpleRecord(2)},
			{*simpleRecord(3)},
		},
	}
	target := &fakeTarget{}
	o := newTestOrchestrator(source, target, config.SyncConfig{BatchTimeBudget: time.Minute})

	summary := o.SyncBatch(context.Background(), 118, "", models.TriggerScheduled, 0)

	assert.Equal(t, 3, summary.TotalRecords)
	assert.Equal(t, 2, summary.Successful)
	assert.Equal(t, 1, summary.Failed)
	assert.False(t, summary.Partial)
	require.Len(t, summary.Errors, 1)
	assert.Equal(t, 2, summary.Errors[0].RecordID)
}

func TestSyncBatchTimeBudget(t *testing.T) {
	source := &fakeSource{
		records:       map[int]*models.SourceRecord{1: simpleRecord(1)},
		filesByRecord: map[int][]models.FileDescriptor{1: {xlsxFile(1, 10, "a.xlsx")}},
		pages:         [][]models.SourceRecord{{*simpleRecord(1)}},
	}
	o := newTestOrchestrator(source, &fakeTarget{}, config.SyncConfig{BatchTimeBudget: time.Minute})

	// The first now() call sets the deadline; every later call is past it, so
	// the budget is spent before the first record starts.
	base := time.Now()
	first := true
	o.now = func() time.Time {
		if first {
			first = false
			return base
		}
		return base.Add(2 * time.Minute)
	}

	summary := o.SyncBatch(context.Background(), 118, "", models.TriggerScheduled, 0)

	assert.True(t, summary.Partial)
	assert.Equal(t, 0, summary.TotalRecords)
}

func TestFindPrimaryPrefersFirstAccepted(t *testing.T) {
	files := []models.FileDescriptor{
		{FileID: 1, FileName: "notes.txt", ContentType: "text/plain"},
		{FileID: 2, FileName: "scan.pdf", ContentType: "application/pdf"},
		{FileID: 3, FileName: "sheet.xlsx", ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"},
	}
	assert.Equal(t, 1, findPrimary(files))
	assert.Equal(t, -1, findPrimary(files[:1]))
	assert.Equal(t, -1, findPrimary(nil))
}

func TestFindPrimaryFallsBackToExtension(t *testing.T) {
	files := []models.FileDescriptor{
		{FileID: 1, FileName: "assessment.XLSX", ContentType: "application/octet-stream"},
	}
	assert.Equal(t, 0, findPrimary(files))
}
