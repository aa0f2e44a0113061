package audit

import (
	"context"

	"github.com/andreyrocca-psiq/qsm-h-app/pkg/logger"
	"github.com/andreyrocca-psiq/qsm-h-app/pkg/metrics"
)

// Logger is the best-effort front to the audit trail: the entry is
// attempted synchronously before the primary action returns, but its
// failure is swallowed so it can never abort that action.
type Logger struct {
	service *Service
	log     *logger.Logger
	metrics *metrics.Metrics
}

func NewLogger(service *Service, log *logger.Logger, m *metrics.Metrics) *Logger {
	return &Logger{
		service: service,
		log:     log,
		metrics: m,
	}
}

// Log attempts one append and discards the error.
func (l *Logger) Log(ctx context.Context, e Entry) {
	if err := l.service.Append(ctx, e); err != nil {
		l.metrics.AuditAppendFailures.Inc()
		l.log.Error(err, "audit append failed",
			"action", string(e.Action),
			"table", e.TableName,
			"target", e.Target.String(),
		)
	}
}

// LogSync appends and surfaces the error; used where the entry is part
// of the operation's contract, e.g. data export.
func (l *Logger) LogSync(ctx context.Context, e Entry) error {
	return l.service.Append(ctx, e)
}
