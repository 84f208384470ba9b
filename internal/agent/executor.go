package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"

	"github.com/annai-ai/annai/internal/bus"
	"github.com/annai-ai/annai/internal/model"
)

var agentMeter = otel.GetMeterProvider().Meter("annai/agent")

// Executor runs agents under a tracking wrapper: duration measurement,
// provenance stamping, timeout enforcement, and panic containment. Every
// failure mode becomes a structured result, never an unhandled fault.
type Executor struct {
	bus            *bus.Bus
	logger         *slog.Logger
	defaultTimeout time.Duration
}

// NewExecutor creates an executor. defaultTimeout applies to agents whose
// descriptor leaves Timeout zero.
func NewExecutor(b *bus.Bus, defaultTimeout time.Duration, logger *slog.Logger) *Executor {
	return &Executor{
		bus:            b,
		logger:         logger,
		defaultTimeout: defaultTimeout,
	}
}

// Execute runs a.Process with the agent's timeout and returns a result with
// provenance stamped. A timed-out agent's goroutine is abandoned; its late
// result is discarded.
func (e *Executor) Execute(ctx context.Context, a Agent, req model.AgentRequest, rctx *Context) model.AgentResult {
	desc := a.Descriptor()
	timeout := desc.Timeout
	if timeout <= 0 {
		timeout = e.defaultTimeout
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	e.bus.Emit(model.EventAgentStarted, map[string]any{
		"agent_id":   desc.ID,
		"request_id": req.ID.String(),
	})

	start := time.Now()
	type outcome struct {
		result model.AgentResult
		err    error
	}
	ch := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				e.logger.Error("agent: process panicked", "agent_id", desc.ID, "panic", r)
				ch <- outcome{err: fmt.Errorf("agent %s panicked: %v", desc.ID, r)}
			}
		}()
		res, err := a.Process(runCtx, req, rctx)
		ch <- outcome{result: res, err: err}
	}()

	var result model.AgentResult
	select {
	case o := <-ch:
		if o.err != nil {
			result = model.AgentResult{
				Message:   "something went wrong handling that request",
				ErrorKind: model.ErrKindAgentInternal,
			}
			result.Provenance = e.provenance(desc.ID, req, model.StatusFailed, start)
			e.logger.Warn("agent: process failed", "agent_id", desc.ID, "error", o.err)
		} else {
			result = o.result
			result.Provenance = e.provenance(desc.ID, req, model.StatusSucceeded, start)
		}
	case <-runCtx.Done():
		result = model.AgentResult{
			Message:   "the request took too long and was cancelled",
			ErrorKind: model.ErrKindAgentTimeout,
		}
		result.Provenance = e.provenance(desc.ID, req, model.StatusTimedOut, start)
	}

	status := string(result.Provenance.Status)
	if counter, err := agentMeter.Int64Counter("annai.agent.executions"); err == nil {
		counter.Add(context.Background(), 1, otelmetric.WithAttributes(
			attribute.String("agent", desc.ID),
			attribute.String("status", status),
		))
	}

	event := model.EventAgentCompleted
	if result.Provenance.Status != model.StatusSucceeded {
		event = model.EventAgentFailed
	}
	e.bus.Emit(event, map[string]any{
		"agent_id":    desc.ID,
		"request_id":  req.ID.String(),
		"status":      status,
		"duration_ms": result.Provenance.DurationMS,
	})
	return result
}

func (e *Executor) provenance(agentID string, req model.AgentRequest, status model.ResultStatus, start time.Time) model.Provenance {
	return model.Provenance{
		AgentID:    agentID,
		Operation:  "process",
		Status:     status,
		Timestamp:  start.UTC(),
		DurationMS: time.Since(start).Milliseconds(),
	}
}
