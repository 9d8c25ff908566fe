package tenant

import (
	"errors"
	"fmt"
	"slices"
)

// Phase is a step of the per-request tenant lifecycle.
type Phase string

const (
	PhaseInit             Phase = "init"
	PhaseResolved         Phase = "resolved"
	PhaseValidated        Phase = "validated"
	PhasePropagated       Phase = "propagated"
	PhaseHandlerExecuting Phase = "handler_executing"
	PhaseCleaned          Phase = "cleaned"
	PhaseDenied           Phase = "denied"
	PhaseFailed           Phase = "failed"
)

// ErrInvalidTransition is returned when the lifecycle is driven out of order.
var ErrInvalidTransition = errors.New("tenant.invalid_transition")

var transitions = map[Phase][]Phase{
	PhaseInit:             {PhaseResolved, PhaseDenied, PhaseFailed, PhaseCleaned},
	PhaseResolved:         {PhaseValidated, PhaseDenied, PhaseFailed, PhaseCleaned},
	PhaseValidated:        {PhasePropagated, PhaseFailed, PhaseCleaned},
	PhasePropagated:       {PhaseHandlerExecuting, PhaseFailed, PhaseCleaned},
	PhaseHandlerExecuting: {PhaseCleaned, PhaseFailed},
	PhaseDenied:           {PhaseCleaned},
	PhaseFailed:           {PhaseCleaned},
}

// CanTransition reports whether the lifecycle may move from one phase to another.
func CanTransition(from, to Phase) bool {
	return slices.Contains(transitions[from], to)
}

// lifecycle tracks one request through the phases.
type lifecycle struct {
	phase    Phase
	outcome  Phase
	user     *User
	res      Resolution
	decision Decision
	err      error
}

func newLifecycle() *lifecycle {
	return &lifecycle{phase: PhaseInit, outcome: PhaseInit, res: emptyResolution()}
}

func (l *lifecycle) advance(to Phase) error {
	if !CanTransition(l.phase, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, l.phase, to)
	}
	l.phase = to
	if to != PhaseCleaned {
		l.outcome = to
	}
	return nil
}

func (l *lifecycle) deny(d Decision) {
	l.decision = d
	if err := l.advance(PhaseDenied); err != nil {
		l.fail(err)
	}
}

// fail moves to Failed from any non-terminal phase. The first error wins.
func (l *lifecycle) fail(err error) {
	if l.err == nil {
		l.err = err
	}
	if l.phase == PhaseFailed || l.phase == PhaseCleaned {
		return
	}
	l.phase = PhaseFailed
	l.outcome = PhaseFailed
	l.decision = Decision{}
}

// terminal returns the phase reported in the audit event.
func (l *lifecycle) terminal() Phase {
	switch l.outcome {
	case PhaseDenied, PhaseFailed:
		return l.outcome
	default:
		return PhaseCleaned
	}
}
