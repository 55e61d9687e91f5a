package model

import (
	"context"
	"fmt"

	"github.com/anggasct/fluo/pkg/builders"
	"github.com/anggasct/fluo/pkg/core"
)

// Event names a workflow trigger.
type Event string

// EventAprovar is the manual approval of a captured document.
const EventAprovar Event = "aprovar"

// InitialStatus is the status every captured document starts in.
const InitialStatus = StatusCapturado

// newWorkflow builds the document lifecycle. Pago and Cancelado are declared
// final states with no incoming transition yet.
func newWorkflow() (*core.StateMachine, error) {
	return builders.NewStateMachineBuilder("documento-fiscal").
		AddSimpleState(StatusCapturado.String()).
		AddSimpleState(StatusProntoParaPagamento.String()).
		AddFinalState(StatusPago.String()).
		AddFinalState(StatusCancelado.String()).
		SetInitialState(InitialStatus.String()).
		AddTransition(StatusCapturado.String(), StatusProntoParaPagamento.String(), string(EventAprovar)).
		Build()
}

// Next returns the status reached by firing e from s. Each call runs on a
// fresh machine positioned at s, so it is safe for concurrent use.
func (s Status) Next(e Event) (Status, error) {
	if !s.IsValid() {
		return "", fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, s)
	}

	sm, err := newWorkflow()
	if err != nil {
		return "", fmt.Errorf("build workflow: %w", err)
	}

	// Start initialises the machine context; the event loop is not needed
	// because events are handled synchronously below.
	ctx := context.Background()
	if err := sm.Start(ctx); err != nil {
		return "", fmt.Errorf("start workflow: %w", err)
	}
	sm.Stop(ctx)

	sm.SetCurrentState(sm.GetState(s.String()))
	if err := sm.HandleEvent(ctx, core.NewEvent(string(e))); err != nil {
		return "", fmt.Errorf("%w: %q from %q: %v", ErrInvalidTransition, e, s, err)
	}

	next := Status(sm.GetCurrentStateName())
	if next == s {
		return "", fmt.Errorf("%w: %q from %q", ErrInvalidTransition, e, s)
	}
	return next, nil
}

// CanFire reports whether e has a transition out of s.
func (s Status) CanFire(e Event) bool {
	_, err := s.Next(e)
	return err == nil
}

// Target returns the status e leads to, regardless of the source status.
func Target(e Event) (Status, error) {
	for _, from := range []Status{StatusCapturado, StatusProntoParaPagamento, StatusPago, StatusCancelado} {
		if next, err := from.Next(e); err == nil {
			return next, nil
		}
	}
	return "", fmt.Errorf("%w: unknown event %q", ErrInvalidTransition, e)
}
