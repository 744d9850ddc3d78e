package models

// TransformedPayload is the ARRMS-shaped questionnaire produced by the field
// transformer. Constructed fresh per sync attempt; persistence is ARRMS's
// responsibility.
type TransformedPayload struct {
	Title         string
	Description   *string
	DueDate       *string
	Notes         *string
	RequesterName *string

	ExternalID       string
	ExternalSource   string
	ExternalMetadata ExternalMetadata
}

// ExternalMetadata travels with the upload as a JSON form field and records
// where the questionnaire came from.
type ExternalMetadata struct {
	AppID          int            `json:"app_id"`
	OnspringStatus string         `json:"onspring_status,omitempty"`
	OnspringURL    string         `json:"onspring_url"`
	FieldIDs       map[string]int `json:"field_ids"`
	SyncedAt       string         `json:"synced_at"`
	SyncType       string         `json:"sync_type"`
}
