package main

import (
	"log/slog"

	"github.com/google/uuid"

	"perpengine/core/events"
	"perpengine/observability/metrics"
)

// logEmitter fans every engine event out to the structured log stream and
// bumps the matching Prometheus counters, the same "every mutation is
// observable" discipline the engine's own packages follow for events
// themselves. Every event line carries the process's run_id so a log
// aggregator can correlate a deployment's events without parsing timestamps.
type logEmitter struct {
	logger *slog.Logger
	runID  string
}

func newLogEmitter(logger *slog.Logger) *logEmitter {
	return &logEmitter{logger: logger, runID: uuid.NewString()}
}

func (e *logEmitter) Emit(ev events.Event) {
	e.logger.Info("event", "type", ev.EventType(), "run_id", e.runID)
	m := metrics.Default()
	switch ev.(type) {
	case events.OrderCreated:
		m.OrderSubmitted()
	case events.OrderCancelled:
		m.OrderCancelled()
	case events.OrderExecuted:
		m.OrderExecuted()
	case events.PositionLiquidated:
		m.Liquidation()
	}
}
