package engine

import (
	"errors"
	"fmt"

	"github.com/RealZimboGuy/onboardflow/internal/repository"
	"github.com/RealZimboGuy/onboardflow/pkg/onboardflow/models"
)

var (
	ErrGated                  = errors.New("case is waiting for outside input")
	ErrTerminal               = errors.New("case is completed")
	ErrNoRetryOrigin          = errors.New("case is in ERROR without a step to retry")
	ErrStoreBusy              = errors.New("another change to this case is in flight")
	ErrCaseBusy               = errors.New("case is being processed")
	ErrCaseNotFound           = errors.New("case not found")
	ErrStaleCase              = repository.ErrStaleCase
	ErrNotUnderReview         = errors.New("case is not awaiting review")
	ErrDecisionNotOffered     = errors.New("decision is not offered for this review")
	ErrJustificationRequired  = errors.New("analyst justification is required")
	ErrInvalidIntake          = errors.New("invalid intake")
	ErrNotAwaitingCustomer    = errors.New("case is not waiting for a customer document")
	ErrWorkerInvocation       = errors.New("worker invocation failed")
	ErrNormalization          = errors.New("worker output is unusable")
	ErrTransitionUnrecognized = errors.New("worker recommended an unrecognized state")
	ErrSendFailure            = errors.New("notification send failed")
)

// ErrorKind classifies a failed step.
type ErrorKind string

const (
	KindNormalization          ErrorKind = "NormalizationError"
	KindWorkerInvocation       ErrorKind = "WorkerInvocationError"
	KindTransitionUnrecognized ErrorKind = "TransitionUnrecognized"
	KindSendFailure            ErrorKind = "SendFailure"
)

// StepError is returned by Advance when a step did not reach its intended
// next state. The case stays retryable in State.
type StepError struct {
	State  models.CaseStatus
	Worker string
	Kind   ErrorKind
	Err    error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s failed (%s): %v", e.Worker, e.Kind, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

func (e *StepError) Is(target error) bool {
	switch target {
	case ErrNormalization:
		return e.Kind == KindNormalization
	case ErrWorkerInvocation:
		return e.Kind == KindWorkerInvocation
	case ErrTransitionUnrecognized:
		return e.Kind == KindTransitionUnrecognized
	case ErrSendFailure:
		return e.Kind == KindSendFailure
	}
	return false
}
