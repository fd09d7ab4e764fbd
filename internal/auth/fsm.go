package auth

import (
	"context"
	"errors"

	"greenhouse_monitor/internal/logger"

	"github.com/looplab/fsm"
)

// Phases of an auth operation.
const (
	PhaseIdle       = "idle"
	PhaseValidating = "validating"
	PhaseInFlight   = "in_flight"
	PhaseSucceeded  = "succeeded"
	PhaseFailed     = "failed"
)

const (
	eventValidate = "validate"
	eventReject   = "reject"
	eventSubmit   = "submit"
	eventSucceed  = "succeed"
	eventFail     = "fail"
	eventFinalize = "finalize"
)

// flight is the operation lifecycle shared by all guarded operations.
// Only one operation can leave idle at a time; callers hold Coordinator.mu around transitions.
type flight struct {
	*fsm.FSM
	log *logger.Logger
}

func newFlight(log *logger.Logger) *flight {
	f := &flight{log: log}
	f.FSM = fsm.NewFSM(
		PhaseIdle,
		fsm.Events{
			{Name: eventValidate, Src: []string{PhaseIdle}, Dst: PhaseValidating},
			{Name: eventReject, Src: []string{PhaseValidating}, Dst: PhaseIdle},
			{Name: eventSubmit, Src: []string{PhaseValidating}, Dst: PhaseInFlight},
			{Name: eventSucceed, Src: []string{PhaseInFlight}, Dst: PhaseSucceeded},
			{Name: eventFail, Src: []string{PhaseInFlight}, Dst: PhaseFailed},
			{Name: eventFinalize, Src: []string{PhaseSucceeded, PhaseFailed}, Dst: PhaseIdle},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				if f.log != nil {
					f.log.Debugw("auth_phase", "op", opName(e), "from", e.Src, "to", e.Dst)
				}
			},
		},
	)
	return f
}

// fire runs a transition. An event not allowed in the current phase reports false.
// Cancellation of ctx never blocks a transition.
func (f *flight) fire(ctx context.Context, event string, op string) bool {
	err := f.Event(context.WithoutCancel(ctx), event, op)
	var invalid fsm.InvalidEventError
	if errors.As(err, &invalid) {
		return false
	}
	if err != nil && f.log != nil {
		f.log.Errorw("auth_phase_failed", "op", op, "event", event, "err", err)
	}
	return err == nil
}

func opName(e *fsm.Event) string {
	if len(e.Args) > 0 {
		if s, ok := e.Args[0].(string); ok {
			return s
		}
	}
	return ""
}
