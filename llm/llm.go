package llm

import (
	"context"
	"fmt"
	"strings"

	"visa-assessor/models"
)

// Client abstracts an LLM provider used by the assessor.
// Implementations must be concurrency-safe if used across goroutines.
type Client interface {
	// AnalyzeCandidate takes the submitted questionnaire and returns a single
	// JSON string per the analysis schema. One attempt per call; retry policy
	// is the caller's business.
	AnalyzeCandidate(ctx context.Context, data *models.AssessmentData) (string, error)
	// SourceName returns a short provider label to persist with results
	// (e.g., "Gemini", "ChatGPT", "Sandbox").
	SourceName() string
}

// Kind classifies a failed provider call.
type Kind string

const (
	// KindRateLimited covers quota and rate-limit rejections. Callers offer
	// the sandbox path for these.
	KindRateLimited Kind = "rate_limited"
	// KindTransient covers upstream 5xx and network failures.
	KindTransient Kind = "transient"
	// KindFatal covers everything else (bad request, auth, malformed output).
	KindFatal Kind = "fatal"
)

// Error is a classified provider failure.
type Error struct {
	Kind    Kind
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("llm %s (status %d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("llm %s: %s", e.Kind, e.Message)
}

// quotaMarkers are message fragments providers bury quota conditions in when
// the HTTP status alone doesn't say so.
var quotaMarkers = []string{"quota", "429", "rate limit", "resource_exhausted", "resource has been exhausted"}

// Classify maps an HTTP status and response body to a typed provider error.
func Classify(status int, message string) *Error {
	kind := KindFatal
	switch {
	case status == 429:
		kind = KindRateLimited
	case status >= 500:
		kind = KindTransient
	case status == 0:
		// No response at all: treat network-level failures as transient.
		kind = KindTransient
	}
	if kind == KindFatal {
		lower := strings.ToLower(message)
		for _, marker := range quotaMarkers {
			if strings.Contains(lower, marker) {
				kind = KindRateLimited
				break
			}
		}
	}
	return &Error{Kind: kind, Status: status, Message: message}
}

// KindOf returns the classification of err, defaulting unknown errors to
// KindTransient (they get the generic failure path, not the sandbox one).
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	if lerr, ok := err.(*Error); ok {
		return lerr.Kind
	}
	return Classify(0, err.Error()).Kind
}

// CandidateContext renders the questionnaire into the prompt block shared by
// all providers. Evidence file contents are never transmitted; only the
// count and names travel.
func CandidateContext(data *models.AssessmentData) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CANDIDATE PROFILE:\n")
	fmt.Fprintf(&b, "- Name: %s\n", data.Name)
	fmt.Fprintf(&b, "- Email: %s\n", data.Email)
	fmt.Fprintf(&b, "- Endorsement route: %s\n", data.Route)
	fmt.Fprintf(&b, "- Job title: %s\n", data.JobTitle)
	fmt.Fprintf(&b, "- Years of experience: %s\n", data.Experience)
	fmt.Fprintf(&b, "- Personal statement:\n%s\n", data.PersonalStatement)
	fmt.Fprintf(&b, "- Evidence files attached: %d\n", len(data.EvidenceFiles))
	if len(data.EvidenceFiles) > 0 {
		fmt.Fprintf(&b, "- Evidence file names: %s\n", strings.Join(data.EvidenceFiles, ", "))
	}
	return b.String()
}
