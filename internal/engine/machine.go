package engine

import (
	"log/slog"

	"github.com/pulsewatch/pulsewatch/internal/metrics"
	"github.com/pulsewatch/pulsewatch/internal/model"
)

// observe advances the hysteresis state machine of one alert by a single
// observation and returns the notification requests the transition
// produced. It mutates cfg.State; the caller must hold the alert's lock
// and persist the state before dispatching the requests.
//
// When missing is true the observation is a synthetic breach from the
// missing-data sweep and value carries the "no data" sentinel.
func observe(cfg *model.AlertConfig, value string, ts int64, missing bool) []*model.NotificationRequest {
	breach := missing
	if !missing {
		var ok bool
		breach, ok = evalCondition(value, cfg.Condition, cfg.Threshold)
		if !ok {
			// Fail-open: unparseable value or threshold counts as a
			// non-breach, observable only through logs.
			slog.Debug("engine: non-numeric value or threshold, treating as non-breach",
				"alert_id", cfg.ID, "value", value, "threshold", cfg.Threshold)
		}
		if breach {
			metrics.EvaluationsTotal.WithLabelValues("breach").Inc()
		} else {
			metrics.EvaluationsTotal.WithLabelValues("clear").Inc()
		}
	}

	st := &cfg.State
	var out []*model.NotificationRequest

	emit := func(kind model.TransitionKind) {
		req := &model.NotificationRequest{
			TenantID:              cfg.TenantID,
			Alert:                 cfg.Ref(),
			Value:                 value,
			Timestamp:             ts,
			Kind:                  kind,
			ConsecutiveBreaches:   st.ConsecutiveBreaches,
			ConsecutiveRecoveries: st.ConsecutiveRecoveries,
		}
		if missing {
			req.Reason = model.ReasonMissingData
		}
		out = append(out, req)
	}

	switch {
	case !st.Active && breach:
		st.ConsecutiveBreaches++
		if st.ConsecutiveBreaches >= cfg.EnterThreshold {
			st.Active = true
			st.ConsecutiveRecoveries = 0
			st.LastNotifiedAt = ts
			emit(model.KindEntered)
		}

	case !st.Active && !breach:
		// Cosmetic only: lets the UI show breaching→clean movement.
		st.ConsecutiveBreaches = 0
		st.ConsecutiveRecoveries++

	case st.Active && breach:
		st.ConsecutiveBreaches++
		// Contested recovery: a stray breach mid-recovery keeps the
		// recovery progress unless breaches reach a full re-entry.
		if st.ConsecutiveRecoveries > 0 && st.ConsecutiveBreaches >= cfg.EnterThreshold {
			st.ConsecutiveRecoveries = 0
		}
		if ts-st.LastNotifiedAt >= cfg.RepeatInterval {
			st.LastNotifiedAt = ts
			emit(model.KindActive)
		}

	case st.Active && !breach:
		st.ConsecutiveBreaches = 0
		st.ConsecutiveRecoveries++
		if st.ConsecutiveRecoveries >= cfg.ExitThreshold {
			st.Active = false
			// LastNotifiedAt is preserved across recovery.
			emit(model.KindRecovered)
		}
	}

	return out
}
