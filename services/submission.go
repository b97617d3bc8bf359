package services

import (
	"context"
	"errors"
	"sync"

	"github.com/Spare-Link/storefront/apperrors"
	"github.com/Spare-Link/storefront/clients"
	"github.com/Spare-Link/storefront/models"
)

var (
	ErrSubmissionInFlight = errors.New("a submission for this step is already in progress")
	ErrNoShippingMethod   = errors.New("select a delivery method to continue")
)

// Submission tracks the mutating action of one checkout step:
// idle, then pending, then success or error. Only one run may be pending.
type Submission struct {
	mu    sync.Mutex
	phase models.SubmissionPhase
	err   error
	step  models.Step
}

func NewSubmission() *Submission {
	return &Submission{phase: models.PhaseIdle}
}

// Run executes fn unless a previous run is still pending. The previous error
// is cleared as soon as the new attempt starts.
func (s *Submission) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	if s.phase == models.PhasePending {
		s.mu.Unlock()
		return ErrSubmissionInFlight
	}
	s.phase = models.PhasePending
	s.err = nil
	s.mu.Unlock()

	err := fn(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.phase = models.PhaseError
		s.err = err
	} else {
		s.phase = models.PhaseSuccess
	}
	return err
}

func (s *Submission) State() models.SubmissionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := models.SubmissionState{Phase: s.phase}
	if s.err != nil {
		state.Error = UserMessage(s.err)
	}
	return state
}

// StepChanged records the active step. Moving away from the observed step
// drops a retained error.
func (s *Submission) StepChanged(step models.Step) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.step == step {
		return
	}
	prev := s.step
	s.step = step
	if prev != "" && s.phase == models.PhaseError {
		s.phase = models.PhaseIdle
		s.err = nil
	}
}

// UserMessage turns an error into the text shown next to the form.
func UserMessage(err error) string {
	var upErr *clients.UpstreamError
	if errors.As(err, &upErr) {
		return upErr.Message()
	}
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return vErr.Error()
	}
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}
