package session

import (
	"time"

	"github.com/google/uuid"

	"visa-assessor/models"
)

// Error payload kinds attached to a session after a failed analysis.
const (
	ErrorNone    = ""
	ErrorGeneric = "generic"
	ErrorQuota   = "quota"
)

// Session carries the navigation state and the single retained
// assessment/result pair for one client. Exactly one step is active at a
// time; results and payment steps require a stored result.
type Session struct {
	ID              string                 `json:"id"`
	UserID          string                 `json:"userId,omitempty"`
	Step            models.Step            `json:"step"`
	Premium         bool                   `json:"premium"`
	Submitting      bool                   `json:"submitting"`
	SubmittingSince time.Time              `json:"submittingSince,omitempty"`
	ErrorKind       string                 `json:"errorKind,omitempty"`
	Assessment      *models.AssessmentData `json:"assessment,omitempty"`
	Result          *models.AnalysisResult `json:"result,omitempty"`
	CreatedAt       time.Time              `json:"createdAt"`
	UpdatedAt       time.Time              `json:"updatedAt"`
}

// New returns a fresh session on the landing step.
func New() *Session {
	now := time.Now().UTC()
	return &Session{
		ID:        uuid.NewString(),
		Step:      models.StepLanding,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// HasResult reports whether an analysis result is retained.
func (s *Session) HasResult() bool {
	return s.Result != nil
}

// SubmitGuardActive reports whether a submit is already in flight and its
// guard has not yet expired. The guard expiry does not cancel the underlying
// request; it only re-opens the form.
func (s *Session) SubmitGuardActive(ttl time.Duration) bool {
	return s.Submitting && time.Since(s.SubmittingSince) < ttl
}

// BeginSubmit marks a submission in flight.
func (s *Session) BeginSubmit() {
	s.Submitting = true
	s.SubmittingSince = time.Now().UTC()
}

// EndSubmit clears the in-flight marker.
func (s *Session) EndSubmit() {
	s.Submitting = false
	s.SubmittingSince = time.Time{}
}

// Transition moves the session to target if the step machine allows it and
// the target's preconditions hold.
func (s *Session) Transition(target models.Step) bool {
	if !s.Step.CanTransitionTo(target) {
		return false
	}
	if target.RequiresResult() && !s.HasResult() {
		return false
	}
	s.Step = target
	return true
}

// Reset returns the session to the landing step. The retained assessment
// and the premium flag survive; premium is never revoked within a session.
func (s *Session) Reset() {
	s.Step = models.StepLanding
	s.ErrorKind = ErrorNone
	s.EndSubmit()
}
