// Package engine wires the per-call decision pipeline together: the
// session registry, utterance normalizer, intent classifier, state machine,
// and result emission.
//
// The engine performs no outbound network calls while deciding a turn; the
// directive is a pure return value for the transport adapter to render.
// Result emission to the sink happens after the directive is computed, on a
// separate goroutine, and is best-effort.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/callyx/internal/call"
	"github.com/MrWong99/callyx/internal/intent"
	"github.com/MrWong99/callyx/internal/normalize"
	"github.com/MrWong99/callyx/internal/observe"
)

// emitTimeout bounds one result emission to the sink.
const emitTimeout = 10 * time.Second

// Event is one inbound conversational turn from the carrier.
type Event struct {
	// CallID is the carrier-assigned call identifier.
	CallID string

	// Status is the carrier's call status field, informational only.
	Status string

	// SpeechText is the raw transcription of what the remote system said.
	// May be empty on pure DTMF or connection events.
	SpeechText string

	// Digits holds DTMF digits received alongside or instead of speech.
	Digits string
}

// ResultSink receives terminal call results. Implementations must be safe
// for concurrent use.
type ResultSink interface {
	EmitResult(ctx context.Context, res call.Result) error
}

// Engine is the IVR navigation decision engine. All methods are safe for
// concurrent use; per-call serialization is provided by the registry.
type Engine struct {
	reg     *Registry
	cls     *intent.Classifier
	machine *call.Machine
	sink    ResultSink
	met     *observe.Metrics
}

// New creates an [Engine]. sink may be nil, in which case terminal results
// are only logged.
func New(cls *intent.Classifier, machine *call.Machine, sink ResultSink, met *observe.Metrics) *Engine {
	return &Engine{
		reg:     NewRegistry(),
		cls:     cls,
		machine: machine,
		sink:    sink,
		met:     met,
	}
}

// Setup creates the session for a new call and stores the caller identity
// from the carrier's setup parameters. Calling Setup again for a live call
// only refreshes the identity.
func (e *Engine) Setup(ctx context.Context, callID string, identity call.CallerIdentity) {
	created := false
	e.reg.WithSession(callID, time.Now(), func(s *call.Session) bool {
		created = s.CountOnce()
		s.Identity = identity
		return false
	})
	if created {
		e.met.ActiveCalls.Add(ctx, 1)
	}
	observe.Logger(ctx).Info("call session ready",
		slog.String("call_id", callID),
		slog.Bool("identity_known", identity.Partial()),
	)
}

// ProcessTurn handles one inbound event and returns the outbound directive.
// Events for a previously-unseen call ID create a session on the spot, so a
// missed setup message degrades the call rather than faulting it.
func (e *Engine) ProcessTurn(ctx context.Context, ev Event) (call.Directive, error) {
	if ev.CallID == "" {
		return call.Directive{}, fmt.Errorf("engine: event without call_id")
	}

	ctx, span := observe.StartSpan(ctx, "engine.ProcessTurn")
	defer span.End()

	start := time.Now()
	var (
		turn    call.Turn
		cls     intent.Classification
		created bool
	)
	e.reg.WithSession(ev.CallID, start, func(s *call.Session) bool {
		created = s.CountOnce()
		norm := normalize.Utterance(ev.SpeechText)
		cls = e.cls.Classify(norm, s.View(ev.Digits != ""))
		turn = e.machine.Advance(s, cls, ev.SpeechText, start)
		return turn.Result != nil
	})
	if created {
		e.met.ActiveCalls.Add(ctx, 1)
	}

	e.met.RecordTurn(ctx, string(cls.Kind), string(cls.Confidence), time.Since(start).Seconds())
	e.met.RecordDirective(ctx, string(turn.Directive.Action))

	log := observe.Logger(ctx).With(
		slog.String("call_id", ev.CallID),
		slog.String("intent", string(cls.Kind)),
		slog.String("confidence", string(cls.Confidence)),
		slog.String("action", string(turn.Directive.Action)),
	)
	if turn.Result != nil {
		log.Info("call finished", slog.String("outcome", string(turn.Result.Outcome)))
		e.retire(ctx, *turn.Result)
	} else {
		log.Debug("turn processed")
	}

	return turn.Directive, nil
}

// Teardown handles the carrier's session-teardown signal. It is idempotent:
// tearing down an unknown or already-terminal call is a no-op.
func (e *Engine) Teardown(ctx context.Context, callID string, reason call.FailureReason) {
	outcome := call.OutcomeTimeout
	if reason == call.FailCarrierError {
		outcome = call.OutcomeError
	}

	var res *call.Result
	e.reg.WithExisting(callID, func(s *call.Session) bool {
		res = e.machine.Abort(s, outcome, reason, time.Now())
		return true
	})
	if res == nil {
		return
	}
	observe.Logger(ctx).Info("call torn down",
		slog.String("call_id", callID),
		slog.String("reason", string(reason)),
	)
	e.retire(ctx, *res)
}

// ActiveCalls returns the number of live sessions, for readiness reporting.
func (e *Engine) ActiveCalls() int {
	return e.reg.Len()
}

// retire records the outcome and hands the result to the sink without
// blocking the turn path.
func (e *Engine) retire(ctx context.Context, res call.Result) {
	e.met.RecordOutcome(ctx, string(res.Outcome))
	e.met.ActiveCalls.Add(ctx, -1)

	if e.sink == nil {
		return
	}
	// Emission must not delay the directive; the carrier deadline applies
	// to the turn, not to bookkeeping.
	go func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, emitTimeout)
		defer cancel()
		if err := e.sink.EmitResult(ctx, res); err != nil {
			e.met.SinkErrors.Add(ctx, 1)
			observe.Logger(ctx).Error("result emission failed",
				slog.String("call_id", res.CallID),
				slog.String("outcome", string(res.Outcome)),
				slog.Any("error", err),
			)
		}
	}(context.WithoutCancel(ctx))
}

// RunSweeper fails and retires sessions idle past idleTimeout, as a
// backstop against carrier-side silent abandonment. It blocks until ctx is
// cancelled.
func (e *Engine) RunSweeper(ctx context.Context, interval, idleTimeout time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			e.sweep(ctx, now.Add(-idleTimeout))
		}
	}
}

// sweep aborts every session idle past the cutoff.
func (e *Engine) sweep(ctx context.Context, cutoff time.Time) {
	var g errgroup.Group
	for _, callID := range e.reg.IdleBefore(cutoff) {
		g.Go(func() error {
			var res *call.Result
			e.reg.WithExisting(callID, func(s *call.Session) bool {
				// Re-check under the lock: an event may have landed since
				// the snapshot.
				if !s.LastEventAt().Before(cutoff) {
					return false
				}
				res = e.machine.Abort(s, call.OutcomeTimeout, call.FailIdleTimeout, time.Now())
				return res != nil
			})
			if res != nil {
				observe.Logger(ctx).Warn("idle session swept", slog.String("call_id", callID))
				e.retire(ctx, *res)
			}
			return nil
		})
	}
	_ = g.Wait()
}
