package stubllm

import (
	"context"
	"testing"

	"visa-assessor/models"
	"visa-assessor/parser"
)

func testData() *models.AssessmentData {
	return &models.AssessmentData{
		Name:              "Ada Lovelace",
		Email:             "ada@example.com",
		Route:             models.RouteDigitalTechnology,
		JobTitle:          "Staff Engineer",
		Experience:        models.ExperienceSenior,
		PersonalStatement: "I build compilers.",
		EvidenceFiles:     []string{"cv.pdf"},
	}
}

func TestSandboxIsDeterministic(t *testing.T) {
	c := NewClient()
	ctx := context.Background()

	first, err := c.AnalyzeCandidate(ctx, testData())
	if err != nil {
		t.Fatalf("AnalyzeCandidate() error: %v", err)
	}
	second, err := c.AnalyzeCandidate(ctx, testData())
	if err != nil {
		t.Fatalf("AnalyzeCandidate() error: %v", err)
	}
	if first != second {
		t.Error("sandbox output differs across identical submissions")
	}

	other := testData()
	other.Email = "other@example.com"
	third, err := c.AnalyzeCandidate(ctx, other)
	if err != nil {
		t.Fatalf("AnalyzeCandidate() error: %v", err)
	}
	if first == third {
		t.Error("sandbox output identical for different candidates")
	}
}

func TestSandboxOutputParses(t *testing.T) {
	c := NewClient()
	raw, err := c.AnalyzeCandidate(context.Background(), testData())
	if err != nil {
		t.Fatalf("AnalyzeCandidate() error: %v", err)
	}

	result, err := parser.ParseAnalysis(raw)
	if err != nil {
		t.Fatalf("sandbox output fails the response schema: %v", err)
	}
	if result.Score < 52 || result.Score > 89 {
		t.Errorf("score = %d, want within the sandbox band [52, 89]", result.Score)
	}
	if len(result.MandatoryCriteria) == 0 || len(result.OptionalCriteria) == 0 {
		t.Error("sandbox output missing criteria")
	}
	// Senior bucket maps to a met mandatory criterion.
	if !result.MandatoryCriteria[0].Met {
		t.Error("senior experience should satisfy the heuristic mandatory criterion")
	}
}
