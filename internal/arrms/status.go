package arrms

import (
	"github.com/Beleza-Asureti/arrms-onspring-integration/internal/models"
)

// Source-side status literals derived from questionnaire progress.
const (
	StatusNotStarted         = "Not Started"
	StatusInProcess          = "Request in Process"
	StatusReadyForValidation = "Ready for Validation"
)

// ComputeStatus maps questionnaire progress to the source-side status
// literal. Pure function of its inputs.
//
// Nothing answered means the work has not started. Everything approved, with
// at least one answer and a generated source document, means the response is
// ready for validation. Anything in between is in process.
func ComputeStatus(total, answered, approved int, hasDocument bool) string {
	if answered == 0 {
		return StatusNotStarted
	}
	if approved == total && hasDocument && answered > 0 {
		return StatusReadyForValidation
	}
	return StatusInProcess
}

// ComputeOpenQuestions counts questions not yet approved. Answered-but-not-
// approved questions are still open.
func ComputeOpenQuestions(total, approved int) int {
	return total - approved
}

// HasSourceDocument reports whether ARRMS generated a source document for the
// questionnaire.
func HasSourceDocument(stats *models.Statistics) bool {
	return stats != nil && stats.Metadata.SourceDocument != nil && stats.Metadata.SourceDocument.URL != ""
}

// WriteBackValues computes the full set of semantic field values to write
// back to the source record, including the status list value resolved through
// statusListValues (status literal to list value id). The status entry is
// omitted when the literal has no mapping.
func WriteBackValues(stats *models.Statistics, statusListValues map[string]string) map[string]any {
	summary := stats.Summary
	status := ComputeStatus(summary.TotalQuestions, summary.AnsweredQuestions, summary.ApprovedQuestions, HasSourceDocument(stats))

	values := map[string]any{
		models.FieldTotalQuestions:       summary.TotalQuestions,
		models.FieldCompleteQuestions:    summary.ApprovedQuestions,
		models.FieldOpenQuestions:        ComputeOpenQuestions(summary.TotalQuestions, summary.ApprovedQuestions),
		models.FieldHighConfidence:       summary.ConfidenceDistribution.VeryHigh,
		models.FieldMediumHighConfidence: summary.ConfidenceDistribution.High,
		models.FieldMediumLowConfidence:  summary.ConfidenceDistribution.Medium,
		models.FieldLowConfidence:        summary.ConfidenceDistribution.Low,
	}
	if guid, ok := statusListValues[status]; ok {
		values[models.FieldStatus] = guid
	}
	return values
}
