package models

// SyncState tracks how far a single record made it through the pipeline.
type SyncState string

const (
	StateFetched      SyncState = "FETCHED"
	StateTransformed  SyncState = "TRANSFORMED"
	StateFileLocated  SyncState = "FILE_LOCATED"
	StateFileMissing  SyncState = "FILE_MISSING"
	StateUploaded     SyncState = "UPLOADED"
	StateStatsFetched SyncState = "STATS_FETCHED"
	StateWrittenBack  SyncState = "WRITTEN_BACK"
	StateDone         SyncState = "DONE"
	StateFailed       SyncState = "FAILED"
)

// SyncOutcome is the per-record result of one synchronization attempt.
// FilesSynced + FilesFailed always equals the number of attachments
// discovered on the source record; file failures never flip a successful
// record to failed.
type SyncOutcome struct {
	RecordID        int       `json:"record_id"`
	Success         bool      `json:"success"`
	FilesSynced     int       `json:"files_synced"`
	FilesFailed     int       `json:"files_failed"`
	Errors          []string  `json:"errors,omitempty"`
	QuestionnaireID string    `json:"questionnaire_id,omitempty"`
	FinalState      SyncState `json:"final_state"`

	// Transient marks a failure worth redelivering at the event level.
	Transient bool `json:"-"`
}

// BatchError pairs a record id with the error that failed it.
type BatchError struct {
	RecordID int    `json:"record_id"`
	Error    string `json:"error"`
}

// BatchSummary aggregates SyncOutcomes across one batch invocation.
type BatchSummary struct {
	TotalRecords int          `json:"total_records"`
	Successful   int          `json:"successful"`
	Failed       int          `json:"failed"`
	FilesSynced  int          `json:"files_synced"`
	FilesFailed  int          `json:"files_failed"`
	Errors       []BatchError `json:"errors,omitempty"`
	// Partial is set when the invocation stopped early because the time
	// budget ran out; the remaining records were never started.
	Partial bool `json:"partial,omitempty"`
}

// Add folds a record outcome into the summary.
func (s *BatchSummary) Add(outcome SyncOutcome) {
	s.TotalRecords++
	s.FilesSynced += outcome.FilesSynced
	s.FilesFailed += outcome.FilesFailed
	if outcome.Success {
		s.Successful++
		return
	}
	s.Failed++
	msg := "sync failed"
	if len(outcome.Errors) > 0 {
		msg = outcome.Errors[0]
	}
	s.Errors = append(s.Errors, BatchError{RecordID: outcome.RecordID, Error: msg})
}
