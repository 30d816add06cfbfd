package board

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName    = "prism-board/board"
	syncSpanName  = "board.sync"
	syncEventName = "board.sync.metrics"
)

type syncMetrics struct {
	logger  log.FieldLogger
	span    trace.Span
	start   time.Time
	syncID  string
	entries int
	lanes   int
	failed  int
}

func newSyncMetrics(ctx context.Context, logger log.FieldLogger, syncID string, entries, lanes int) (*syncMetrics, context.Context) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, syncSpanName, trace.WithAttributes(
		attribute.String("board.sync.id", syncID),
		attribute.Int("board.sync.entries", entries),
		attribute.Int("board.sync.lanes", lanes),
	))
	return &syncMetrics{
		logger:  logger,
		span:    span,
		start:   time.Now(),
		syncID:  syncID,
		entries: entries,
		lanes:   lanes,
	}, ctx
}

func (m *syncMetrics) SetFailed(n int) {
	if n < 0 {
		n = 0
	}
	m.failed = n
}

// Finish ends the span and emits the structured sync event.
func (m *syncMetrics) Finish(err error) {
	if m == nil {
		return
	}
	total := durationToMillis(time.Since(m.start))
	outcome := "ok"
	if err != nil {
		outcome = "failed"
	}

	m.span.SetAttributes(
		attribute.Int("board.sync.failed", m.failed),
		attribute.Float64("board.sync.total_ms", total),
		attribute.String("board.sync.outcome", outcome),
	)
	if err != nil {
		m.span.RecordError(err)
		m.span.SetStatus(codes.Error, err.Error())
	} else {
		m.span.SetStatus(codes.Ok, "")
	}
	m.span.End()

	if m.logger == nil {
		return
	}
	fields := log.Fields{
		"sync_id":  m.syncID,
		"entries":  m.entries,
		"lanes":    m.lanes,
		"failed":   m.failed,
		"total_ms": total,
		"outcome":  outcome,
	}
	if sc := m.span.SpanContext(); sc.HasTraceID() {
		fields["trace_id"] = sc.TraceID().String()
	}
	entry := m.logger.WithFields(fields)
	if err != nil {
		entry.WithError(err).Warn(syncEventName)
		return
	}
	entry.Info(syncEventName)
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
