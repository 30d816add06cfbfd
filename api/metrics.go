package api

import (
	"time"

	log "github.com/sirupsen/logrus"
)

type boardRequestMetrics struct {
	logger         *log.Logger
	route          string
	start          time.Time
	authDuration   time.Duration
	loadDuration   time.Duration
	applyDuration  time.Duration
	encodeDuration time.Duration
	changed        bool
	duplicate      bool
	errorStage     string
}

func newBoardRequestMetrics(logger *log.Logger, route string) *boardRequestMetrics {
	return &boardRequestMetrics{
		logger: logger,
		route:  route,
		start:  time.Now(),
	}
}

func (m *boardRequestMetrics) ObserveAuth(d time.Duration)   { m.authDuration = d }
func (m *boardRequestMetrics) ObserveLoad(d time.Duration)   { m.loadDuration = d }
func (m *boardRequestMetrics) ObserveApply(d time.Duration)  { m.applyDuration = d }
func (m *boardRequestMetrics) ObserveEncode(d time.Duration) { m.encodeDuration = d }

func (m *boardRequestMetrics) SetChanged(changed bool)     { m.changed = changed }
func (m *boardRequestMetrics) SetDuplicate(duplicate bool) { m.duplicate = duplicate }

func (m *boardRequestMetrics) SetErrorStage(stage string) {
	if stage == "" {
		return
	}
	m.errorStage = stage
}

func (m *boardRequestMetrics) Log(status int, err error) {
	if m == nil || m.logger == nil {
		return
	}

	fields := log.Fields{
		"route":    m.route,
		"status":   status,
		"total_ms": durationToMillis(time.Since(m.start)),
	}
	for name, d := range map[string]time.Duration{
		"auth_ms":   m.authDuration,
		"load_ms":   m.loadDuration,
		"apply_ms":  m.applyDuration,
		"encode_ms": m.encodeDuration,
	} {
		if d > 0 {
			fields[name] = durationToMillis(d)
		}
	}
	if m.changed {
		fields["changed"] = true
	}
	if m.duplicate {
		fields["duplicate"] = true
	}
	if m.errorStage != "" {
		fields["error_stage"] = m.errorStage
	}
	if err != nil {
		fields["error"] = err.Error()
	}

	m.logger.WithFields(fields).Info("board.request.metrics")
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
