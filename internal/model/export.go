package model

import "time"

// ExportBundle is the complete machine-readable snapshot of one data
// subject's personal data, returned by the portability endpoint. It is
// all-or-nothing: a failed sub-fetch fails the whole export.
type ExportBundle struct {
	Profile        *Profile          `json:"profile"`
	Questionnaires []*Questionnaire  `json:"questionnaires"`
	Consents       []*ConsentRecord  `json:"consents"`
	AuditLogs      []*AuditLog       `json:"audit_logs"`
	Connections    []*ConnectionView `json:"connections"`
	GeneratedAt    time.Time         `json:"generated_at"`
}
