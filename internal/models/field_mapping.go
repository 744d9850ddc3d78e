package models

// Semantic field names used in the Onspring field mapping. The mapping itself
// is static configuration; these constants are the keys both the transformer
// and the write-back path look up.
const (
	FieldTitle       = "Title"
	FieldDescription = "Description"
	FieldDueDate     = "Due Date"
	FieldStatus      = "Status"
	FieldNotes       = "Scope Summary"
	FieldCompany     = "Company"

	FieldTotalQuestions       = "Total Assessment Questions"
	FieldCompleteQuestions    = "Complete Assessment Questions"
	FieldOpenQuestions        = "Open Assessment Questions"
	FieldHighConfidence       = "High Confidence Questions"
	FieldMediumHighConfidence = "Medium-High Confidence"
	FieldMediumLowConfidence  = "Medium-Low Confidence"
	FieldLowConfidence        = "Low Confidence Questions"
)

// FieldMapping translates semantic field names to Onspring field ids, scoped
// to one application. Loaded once at process start, read-only afterwards.
type FieldMapping map[string]int

// FieldID returns the Onspring field id mapped to the semantic name.
func (m FieldMapping) FieldID(name string) (int, bool) {
	id, ok := m[name]
	return id, ok
}

// RefTarget describes where a reference field points: the referenced
// application and the display field to extract from the referenced record.
type RefTarget struct {
	AppID   int `json:"app_id"`
	FieldID int `json:"field_id"`
}
