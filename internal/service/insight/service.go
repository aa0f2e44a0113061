package insight

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/andreyrocca-psiq/qsm-h-app/internal/model"
	"github.com/andreyrocca-psiq/qsm-h-app/internal/repository"
	"github.com/andreyrocca-psiq/qsm-h-app/internal/service/audit"
	"github.com/andreyrocca-psiq/qsm-h-app/internal/service/connection"
	"github.com/andreyrocca-psiq/qsm-h-app/internal/service/questionnaire"
	apperrors "github.com/andreyrocca-psiq/qsm-h-app/pkg/errors"
)

// habitScales maps categorical habit answers onto ordinals so they can
// be correlated with symptom scores. Order follows the questionnaire
// option order.
var habitScales = map[string][]string{
	"sleep_hours": {
		"Menos de 4 horas",
		"Entre 4 e 6 horas",
		"Entre 6 e 8 horas",
		"Entre 8 e 10 horas",
		"Mais de 10 horas",
	},
	"sleep_quality": {
		"Muito ruim",
		"Ruim",
		"Regular",
		"Boa",
		"Muito boa",
	},
	"sleep_routine": {
		"Sim, meus horários variaram muito",
		"Um pouco, tive alguma variação",
		"Não, mantive uma rotina regular",
	},
	"alcohol_use": {
		"Não consumi",
		"1 a 2 doses",
		"3 a 5 doses",
		"Mais de 5 doses",
	},
}

// TrendPoint is one questionnaire reduced to its scores.
type TrendPoint struct {
	CompletedAt     time.Time `json:"completed_at"`
	DepressiveScore int       `json:"depressive_score"`
	ActivationScore int       `json:"activation_score"`
}

// Correlation is the Pearson coefficient between one habit dimension
// and one symptom score, over the weeks where both are present.
type Correlation struct {
	Habit       string  `json:"habit"`
	Score       string  `json:"score"`
	Coefficient float64 `json:"coefficient"`
	SampleSize  int     `json:"sample_size"`
}

// Report is the aggregated view served to the dashboard.
type Report struct {
	Trend           []TrendPoint  `json:"trend"`
	DepressiveDelta int           `json:"depressive_delta"`
	ActivationDelta int           `json:"activation_delta"`
	Correlations    []Correlation `json:"correlations"`
}

type Service struct {
	repo        repository.QuestionnaireRepository
	connections *connection.Service
	auditor     *audit.Logger
}

func NewService(repo repository.QuestionnaireRepository, connections *connection.Service, auditor *audit.Logger) *Service {
	return &Service{
		repo:        repo,
		connections: connections,
		auditor:     auditor,
	}
}

// ForDoctor computes the report for a connected patient. Denied access
// is audited the same way as a denied questionnaire read.
func (s *Service) ForDoctor(ctx context.Context, doctorID, patientID uuid.UUID, meta connection.RequestMeta) (*Report, error) {
	connected, err := s.connections.HasActiveConnection(ctx, doctorID, patientID)
	if err != nil {
		return nil, err
	}
	if !connected {
		s.auditor.Log(ctx, audit.Entry{
			Actor:     doctorID,
			Target:    patientID,
			Action:    model.AuditActionAccessDenied,
			TableName: model.AuditTableQuestionnaires,
			Metadata:  map[string]interface{}{"reason": "no active connection"},
			IPAddress: meta.IPAddress,
			UserAgent: meta.UserAgent,
		})
		return nil, apperrors.Forbidden("no active connection to this patient", nil)
	}

	report, err := s.compute(ctx, patientID)
	if err != nil {
		return nil, err
	}

	s.auditor.Log(ctx, audit.Entry{
		Actor:     doctorID,
		Target:    patientID,
		Action:    model.AuditActionView,
		TableName: model.AuditTableQuestionnaires,
		Metadata:  map[string]interface{}{"relationship": "doctor-patient", "view": "insights"},
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
	})

	return report, nil
}

// ForPatient computes the report over the caller's own data.
func (s *Service) ForPatient(ctx context.Context, userID uuid.UUID) (*Report, error) {
	return s.compute(ctx, userID)
}

func (s *Service) compute(ctx context.Context, userID uuid.UUID) (*Report, error) {
	items, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperrors.Persistence(err)
	}

	report := BuildReport(items)
	return report, nil
}

// BuildReport reduces a set of questionnaires to trend and correlation
// figures. Exposed for tests; input order does not matter.
func BuildReport(items []*model.Questionnaire) *Report {
	sorted := make([]*model.Questionnaire, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].CompletedAt.Before(sorted[j].CompletedAt)
	})

	report := &Report{
		Trend:        make([]TrendPoint, 0, len(sorted)),
		Correlations: []Correlation{},
	}
	for _, q := range sorted {
		report.Trend = append(report.Trend, TrendPoint{
			CompletedAt:     q.CompletedAt,
			DepressiveScore: q.DepressiveScore,
			ActivationScore: q.ActivationScore,
		})
	}

	if n := len(report.Trend); n >= 2 {
		report.DepressiveDelta = report.Trend[n-1].DepressiveScore - report.Trend[n-2].DepressiveScore
		report.ActivationDelta = report.Trend[n-1].ActivationScore - report.Trend[n-2].ActivationScore
	}

	for habit := range habitScales {
		dep, act := correlationSeries(sorted, habit)
		if c, n := pearson(dep.x, dep.y); n >= 3 {
			report.Correlations = append(report.Correlations, Correlation{
				Habit: habit, Score: "depressive", Coefficient: c, SampleSize: n,
			})
		}
		if c, n := pearson(act.x, act.y); n >= 3 {
			report.Correlations = append(report.Correlations, Correlation{
				Habit: habit, Score: "activation", Coefficient: c, SampleSize: n,
			})
		}
	}

	sort.Slice(report.Correlations, func(i, j int) bool {
		if report.Correlations[i].Habit != report.Correlations[j].Habit {
			return report.Correlations[i].Habit < report.Correlations[j].Habit
		}
		return report.Correlations[i].Score < report.Correlations[j].Score
	})

	return report
}

type series struct {
	x, y []float64
}

func correlationSeries(items []*model.Questionnaire, habit string) (dep, act series) {
	scale := habitScales[habit]
	for _, q := range items {
		answers, err := questionnaire.ParseHabitAnswers(q)
		if err != nil {
			continue
		}
		raw, ok := answers[habit].(string)
		if !ok {
			continue
		}
		ordinal := -1
		for i, option := range scale {
			if option == raw {
				ordinal = i
				break
			}
		}
		if ordinal < 0 {
			continue
		}
		dep.x = append(dep.x, float64(ordinal))
		dep.y = append(dep.y, float64(q.DepressiveScore))
		act.x = append(act.x, float64(ordinal))
		act.y = append(act.y, float64(q.ActivationScore))
	}
	return dep, act
}

// pearson returns the correlation coefficient and sample size; a
// degenerate series (constant input) yields 0.
func pearson(x, y []float64) (float64, int) {
	n := len(x)
	if n == 0 || n != len(y) {
		return 0, 0
	}

	var sumX, sumY float64
	for i := 0; i < n; i++ {
		sumX += x[i]
		sumY += y[i]
	}
	meanX, meanY := sumX/float64(n), sumY/float64(n)

	var cov, varX, varY float64
	for i := 0; i < n; i++ {
		dx, dy := x[i]-meanX, y[i]-meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}
	if varX == 0 || varY == 0 {
		return 0, n
	}
	return cov / math.Sqrt(varX*varY), n
}
