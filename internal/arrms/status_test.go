package arrms

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Beleza-Asureti/arrms-onspring-integration/internal/models"
)

func TestComputeStatus(t *testing.T) {
	tests := []struct {
		name        string
		total       int
		answered    int
		approved    int
		hasDocument bool
		want        string
	}{
		{"nothing answered", 100, 0, 0, false, StatusNotStarted},
		{"nothing answered with document", 100, 0, 0, true, StatusNotStarted},
		{"in progress", 100, 40, 10, false, StatusInProcess},
		{"all approved no document", 100, 100, 100, false, StatusInProcess},
		{"all approved with document", 100, 100, 100, true, StatusReadyForValidation},
		{"approved but not all", 100, 100, 99, true, StatusInProcess},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeStatus(tt.total, tt.answered, tt.approved, tt.hasDocument)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestComputeOpenQuestions(t *testing.T) {
	// Open is always total minus approved; answered-but-unapproved stays open.
	assert.Equal(t, 50, ComputeOpenQuestions(100, 50))
	assert.Equal(t, 0, ComputeOpenQuestions(100, 100))
	assert.Equal(t, 100, ComputeOpenQuestions(100, 0))
}

func TestHasSourceDocument(t *testing.T) {
	assert.False(t, HasSourceDocument(nil))
	assert.False(t, HasSourceDocument(&models.Statistics{}))
	assert.False(t, HasSourceDocument(&models.Statistics{
		Metadata: models.StatisticsMetadata{SourceDocument: &models.SourceDocument{}},
	}))
	assert.True(t, HasSourceDocument(&models.Statistics{
		Metadata: models.StatisticsMetadata{SourceDocument: &models.SourceDocument{URL: "https://files/doc.xlsx"}},
	}))
}

func TestWriteBackValues(t *testing.T) {
	stats := &models.Statistics{
		Summary: models.StatisticsSummary{
			TotalQuestions:    100,
			AnsweredQuestions: 70,
			ApprovedQuestions: 50,
			ConfidenceDistribution: models.ConfidenceDistribution{
				VeryHigh: 45,
				High:     30,
				Medium:   15,
				Low:      10,
			},
		},
	}
	listValues := map[string]string{
		StatusInProcess: "a1b2c3d4-0000-0000-0000-000000000001",
	}

	values := WriteBackValues(stats, listValues)

	assert.Equal(t, 100, values[models.FieldTotalQuestions])
	assert.Equal(t, 50, values[models.FieldCompleteQuestions])
	assert.Equal(t, 50, values[models.FieldOpenQuestions])
	assert.Equal(t, 45, values[models.FieldHighConfidence])
	assert.Equal(t, 30, values[models.FieldMediumHighConfidence])
	assert.Equal(t, 15, values[models.FieldMediumLowConfidence])
	assert.Equal(t, 10, values[models.FieldLowConfidence])
	assert.Equal(t, "a1b2c3d4-0000-0000-0000-000000000001", values[models.FieldStatus])
}

func TestWriteBackValuesSkipsUnmappedStatus(t *testing.T) {
	stats := &models.Statistics{
		Summary: models.StatisticsSummary{TotalQuestions: 10, AnsweredQuestions: 0},
	}

	values := WriteBackValues(stats, map[string]string{})
	_, ok := values[models.FieldStatus]
	assert.False(t, ok, "status without a list value mapping must be skipped")
	assert.Equal(t, 10, values[models.FieldOpenQuestions])
}
