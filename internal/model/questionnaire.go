package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Questionnaire is one completed weekly mood survey: nine depressive
// items, nine activation items (0-3 each) and categorical habit
// answers (sleep, medication, substance use) kept as raw JSON.
type Questionnaire struct {
	ID              uuid.UUID       `json:"id" db:"id"`
	UserID          uuid.UUID       `json:"user_id" db:"user_id"`
	DepressiveScore int             `json:"depressive_score" db:"depressive_score"`
	ActivationScore int             `json:"activation_score" db:"activation_score"`
	Answers         json.RawMessage `json:"answers" db:"answers"`
	CompletedAt     time.Time       `json:"completed_at" db:"completed_at"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
}

const (
	questionCount = 9
	maxItemScore  = 3
)

// MaxSectionScore is the ceiling for either symptom section.
const MaxSectionScore = questionCount * maxItemScore

type SubmitQuestionnaireRequest struct {
	DepressiveAnswers []int   `json:"depressive_answers" binding:"required,len=9,dive,min=0,max=3"`
	ActivationAnswers []int   `json:"activation_answers" binding:"required,len=9,dive,min=0,max=3"`
	HabitAnswers      JSONMap `json:"habit_answers"`
}

// Scores sums the two symptom sections.
func (r *SubmitQuestionnaireRequest) Scores() (depressive, activation int) {
	for _, v := range r.DepressiveAnswers {
		depressive += v
	}
	for _, v := range r.ActivationAnswers {
		activation += v
	}
	return depressive, activation
}
