package llm

import (
	"errors"
	"strings"
	"testing"

	"visa-assessor/models"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		message string
		want    Kind
	}{
		{"http 429", 429, "too many requests", KindRateLimited},
		{"http 500", 500, "internal error", KindTransient},
		{"http 503", 503, "unavailable", KindTransient},
		{"network failure", 0, "connection refused", KindTransient},
		{"http 400", 400, "bad request", KindFatal},
		{"http 401", 401, "invalid api key", KindFatal},
		{"quota buried in 200-level message", 200, "RESOURCE_EXHAUSTED: quota exceeded for model", KindRateLimited},
		{"rate limit phrase in body", 403, "You have hit your rate limit.", KindRateLimited},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.status, tt.message)
			if got.Kind != tt.want {
				t.Errorf("Classify(%d, %q).Kind = %s, want %s", tt.status, tt.message, got.Kind, tt.want)
			}
			if got.Status != tt.status {
				t.Errorf("status = %d, want %d", got.Status, tt.status)
			}
		})
	}
}

func TestKindOf(t *testing.T) {
	if got := KindOf(&Error{Kind: KindRateLimited}); got != KindRateLimited {
		t.Errorf("KindOf(typed) = %s, want rate_limited", got)
	}
	if got := KindOf(errors.New("dial tcp: connection refused")); got != KindTransient {
		t.Errorf("KindOf(plain error) = %s, want transient", got)
	}
	if got := KindOf(nil); got != "" {
		t.Errorf("KindOf(nil) = %s, want empty", got)
	}
}

func TestCandidateContext(t *testing.T) {
	data := &models.AssessmentData{
		Name:              "Ada Lovelace",
		Email:             "ada@example.com",
		Route:             models.RouteDigitalTechnology,
		JobTitle:          "Staff Engineer",
		Experience:        models.ExperienceSenior,
		PersonalStatement: "I build compilers.",
		EvidenceFiles:     []string{"cv.pdf", "talk.pdf"},
	}

	block := CandidateContext(data)
	for _, want := range []string{"Ada Lovelace", "digital-technology", "Staff Engineer", "I build compilers.", "cv.pdf, talk.pdf", "Evidence files attached: 2"} {
		if !strings.Contains(block, want) {
			t.Errorf("prompt block missing %q:\n%s", want, block)
		}
	}
}
