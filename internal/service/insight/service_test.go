package insight

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andreyrocca-psiq/qsm-h-app/internal/model"
)

func week(n int) time.Time {
	return time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC).AddDate(0, 0, 7*n)
}

func entry(n int, depressive, activation int, habits map[string]interface{}) *model.Questionnaire {
	var answers json.RawMessage
	if habits != nil {
		answers, _ = json.Marshal(habits)
	}
	return &model.Questionnaire{
		ID:              uuid.New(),
		UserID:          uuid.Nil,
		DepressiveScore: depressive,
		ActivationScore: activation,
		Answers:         answers,
		CompletedAt:     week(n),
	}
}

func TestBuildReportEmpty(t *testing.T) {
	report := BuildReport(nil)
	assert.Empty(t, report.Trend)
	assert.Empty(t, report.Correlations)
	assert.Zero(t, report.DepressiveDelta)
}

func TestBuildReportTrendAndDeltas(t *testing.T) {
	// Deliberately out of order; the report sorts by completion time.
	items := []*model.Questionnaire{
		entry(2, 10, 6, nil),
		entry(0, 20, 2, nil),
		entry(1, 15, 4, nil),
	}

	report := BuildReport(items)
	require.Len(t, report.Trend, 3)
	assert.Equal(t, 20, report.Trend[0].DepressiveScore)
	assert.Equal(t, 10, report.Trend[2].DepressiveScore)

	// Deltas compare the last two weeks only.
	assert.Equal(t, -5, report.DepressiveDelta)
	assert.Equal(t, 2, report.ActivationDelta)
}

func TestBuildReportCorrelations(t *testing.T) {
	// Worse sleep quality tracks higher depressive scores exactly, so
	// the coefficient is -1 (quality is ordered worst to best).
	items := []*model.Questionnaire{
		entry(0, 24, 3, map[string]interface{}{"sleep_quality": "Muito ruim"}),
		entry(1, 18, 6, map[string]interface{}{"sleep_quality": "Ruim"}),
		entry(2, 12, 9, map[string]interface{}{"sleep_quality": "Regular"}),
		entry(3, 6, 12, map[string]interface{}{"sleep_quality": "Boa"}),
	}

	report := BuildReport(items)
	require.Len(t, report.Correlations, 2)

	var depressive, activation *Correlation
	for i := range report.Correlations {
		c := &report.Correlations[i]
		switch c.Score {
		case "depressive":
			depressive = c
		case "activation":
			activation = c
		}
	}

	require.NotNil(t, depressive)
	assert.Equal(t, "sleep_quality", depressive.Habit)
	assert.Equal(t, 4, depressive.SampleSize)
	assert.InDelta(t, -1.0, depressive.Coefficient, 1e-9)

	require.NotNil(t, activation)
	assert.InDelta(t, 1.0, activation.Coefficient, 1e-9)
}

func TestBuildReportSkipsSmallSamples(t *testing.T) {
	items := []*model.Questionnaire{
		entry(0, 10, 5, map[string]interface{}{"alcohol_use": "Não consumi"}),
		entry(1, 12, 4, map[string]interface{}{"alcohol_use": "1 a 2 doses"}),
	}

	report := BuildReport(items)
	assert.Empty(t, report.Correlations)
}

func TestBuildReportIgnoresUnknownOptions(t *testing.T) {
	items := []*model.Questionnaire{
		entry(0, 10, 5, map[string]interface{}{"sleep_quality": "Péssima"}),
		entry(1, 12, 4, map[string]interface{}{"sleep_quality": "Boa"}),
		entry(2, 14, 3, map[string]interface{}{"sleep_quality": "Regular"}),
	}

	// Only two usable points remain, below the minimum sample.
	report := BuildReport(items)
	assert.Empty(t, report.Correlations)
}

func TestPearsonDegenerateSeries(t *testing.T) {
	// Constant habit answers carry no signal.
	items := []*model.Questionnaire{
		entry(0, 10, 5, map[string]interface{}{"sleep_hours": "Entre 6 e 8 horas"}),
		entry(1, 15, 4, map[string]interface{}{"sleep_hours": "Entre 6 e 8 horas"}),
		entry(2, 20, 3, map[string]interface{}{"sleep_hours": "Entre 6 e 8 horas"}),
	}

	report := BuildReport(items)
	require.Len(t, report.Correlations, 2)
	for _, c := range report.Correlations {
		assert.Zero(t, c.Coefficient)
		assert.Equal(t, 3, c.SampleSize)
	}
}
