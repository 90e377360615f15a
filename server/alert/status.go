package alert

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// DefaultSentDisplaySeconds is how long the terminal 'sent' state is held
// before the controller returns to idle on its own.
const DefaultSentDisplaySeconds = 5

type Status string

const (
	StatusIdle      Status = "idle"
	StatusRecording Status = "recording"
	StatusSending   Status = "sending"
	StatusSent      Status = "sent"
	StatusError     Status = "error"
)

var ErrInvalidTransition = errors.New("invalid alert status transition")

// The lifecycle is strictly linear; cancel & retry are the only ways back.
var validTransitions = map[Status]map[Status]bool{
	StatusIdle:      {StatusRecording: true},
	StatusRecording: {StatusSending: true},
	StatusSending:   {StatusSent: true, StatusError: true},
	StatusSent:      {StatusIdle: true},
	StatusError:     {StatusIdle: true},
}

// StatusController drives the alert lifecycle state machine:
// idle -> recording -> sending -> {sent | error}, with an automatic return
// to idle a fixed delay after 'sent', a manual retry from 'error' & a cancel
// path from the two in-flight states straight back to idle.
type StatusController struct {
	mu         sync.Mutex
	current    Status
	resetDelay time.Duration
	resetTimer *time.Timer
	session    *CaptureSession
}

func NewStatusController(resetDelay time.Duration) *StatusController {
	if resetDelay <= 0 {
		resetDelay = DefaultSentDisplaySeconds * time.Second
	}

	return &StatusController{current: StatusIdle, resetDelay: resetDelay}
}

func (controller *StatusController) Current() Status {
	controller.mu.Lock()
	defer controller.mu.Unlock()
	return controller.current
}

// To moves the controller to 'next', rejecting anything outside the linear
// lifecycle.
func (controller *StatusController) To(next Status) error {
	controller.mu.Lock()
	defer controller.mu.Unlock()
	return controller.transitionTo(next)
}

// AttachSession hands the controller the capture session to tear down if the
// flow is cancelled while in-flight.
func (controller *StatusController) AttachSession(session *CaptureSession) {
	controller.mu.Lock()
	defer controller.mu.Unlock()
	controller.session = session
}

// MarkSent records the terminal success state & schedules the automatic
// return to idle.
func (controller *StatusController) MarkSent() error {
	controller.mu.Lock()
	defer controller.mu.Unlock()

	if err := controller.transitionTo(StatusSent); err != nil {
		return err
	}

	controller.resetTimer = time.AfterFunc(controller.resetDelay, func() {
		controller.mu.Lock()
		defer controller.mu.Unlock()

		if controller.current == StatusSent {
			controller.current = StatusIdle
		}
	})

	return nil
}

// MarkError records the terminal failure state. A manual Retry leads back
// to idle.
func (controller *StatusController) MarkError() error {
	controller.mu.Lock()
	defer controller.mu.Unlock()
	return controller.transitionTo(StatusError)
}

// Retry acknowledges a failure & returns the controller to idle.
func (controller *StatusController) Retry() error {
	controller.mu.Lock()
	defer controller.mu.Unlock()

	if controller.current != StatusError {
		return fmt.Errorf("%w: retry from %v", ErrInvalidTransition, controller.current)
	}

	controller.current = StatusIdle
	return nil
}

// Cancel tears down the in-flight lifecycle: the capture session (if any) is
// stopped - which releases the media stream & countdown deterministically -
// and the controller returns straight to idle, discarding the partial alert.
// In-flight network calls already issued are not chased. Cancelling from a
// terminal or idle state is a no-op.
func (controller *StatusController) Cancel() {
	controller.mu.Lock()
	defer controller.mu.Unlock()

	if controller.current != StatusRecording && controller.current != StatusSending {
		return
	}

	if controller.session != nil {
		controller.session.Stop()
		controller.session = nil
	}

	controller.current = StatusIdle
}

func (controller *StatusController) transitionTo(next Status) error {
	if !validTransitions[controller.current][next] {
		return fmt.Errorf("%w: %v -> %v", ErrInvalidTransition, controller.current, next)
	}

	if controller.resetTimer != nil {
		controller.resetTimer.Stop()
		controller.resetTimer = nil
	}

	controller.current = next
	return nil
}
