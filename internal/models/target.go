package models

import "time"

// TargetRecord is the ARRMS questionnaire returned by an upload.
type TargetRecord struct {
	ID                 string              `json:"id"`
	Name               string              `json:"name"`
	ExternalReferences []ExternalReference `json:"external_references"`
}

// ExternalReference links an ARRMS questionnaire to an (external_id,
// external_source) pair from the source system.
type ExternalReference struct {
	ID               string         `json:"id"`
	ExternalID       string         `json:"external_id"`
	ExternalSource   string         `json:"external_source"`
	ExternalMetadata map[string]any `json:"external_metadata"`
	SyncStatus       *string        `json:"sync_status"`
	LastSyncedAt     *time.Time     `json:"last_synced_at"`
}

// DocumentRef is returned by a supplementary document upload.
type DocumentRef struct {
	FileID string `json:"file_id"`
	Status string `json:"status"`
}

// Statistics is the questionnaire progress summary fetched from ARRMS.
type Statistics struct {
	Summary  StatisticsSummary  `json:"summary"`
	Metadata StatisticsMetadata `json:"metadata"`
}

type StatisticsSummary struct {
	TotalQuestions         int                    `json:"total_questions"`
	AnsweredQuestions      int                    `json:"answered_questions"`
	ApprovedQuestions      int                    `json:"approved_questions"`
	UnansweredQuestions    int                    `json:"unanswered_questions"`
	ConfidenceDistribution ConfidenceDistribution `json:"confidence_distribution"`
}

// ConfidenceDistribution partitions answered questions by confidence score:
// very_high >80%, high 50-80%, medium 25-50%, low <25%.
type ConfidenceDistribution struct {
	VeryHigh int `json:"very_high"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
}

type StatisticsMetadata struct {
	SourceDocument *SourceDocument `json:"source_document"`
}

type SourceDocument struct {
	URL string `json:"url"`
}
