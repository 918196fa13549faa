package stubllm

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"

	"visa-assessor/llm"
	"visa-assessor/models"
)

// Client is a deterministic, no-network provider used for the sandbox/demo
// path (offered after quota rejections) and for CI. It returns schema-valid
// JSON so downstream parsing and persistence exercise the full flow.
type Client struct{}

func NewClient() *Client { return &Client{} }

func (c *Client) SourceName() string { return "Sandbox" }

var _ llm.Client = (*Client)(nil)

func (c *Client) AnalyzeCandidate(_ context.Context, data *models.AssessmentData) (string, error) {
	// Deterministic per-candidate so repeated sandbox runs are stable.
	sum := sha256.Sum256([]byte(data.Name + "|" + data.Email + "|" + data.PersonalStatement))
	score := 52 + int(sum[0])%38

	senior := data.Experience == models.ExperienceSenior
	hasEvidence := len(data.EvidenceFiles) > 0

	out := map[string]any{
		"score": score,
		"summary": fmt.Sprintf(
			"Sandbox estimate for the %s route: a %s with %s years of experience has a plausible but unverified case. This demo analysis is generated locally, not by the live model.",
			routeLabel(data.Route), fallback(data.JobTitle, "professional"), data.Experience),
		"mandatoryCriteria": []map[string]any{
			{
				"title":     "Recognition as a leading talent in the field",
				"met":       senior,
				"reasoning": "Sandbox heuristic: the senior experience bucket is treated as prima facie leadership; junior and mid buckets are not.",
			},
		},
		"optionalCriteria": []map[string]any{
			{
				"title":     "Significant technical or commercial contribution",
				"met":       hasEvidence,
				"reasoning": "Sandbox heuristic: attached evidence file names suggest supporting material exists, but contents were not reviewed.",
			},
			{
				"title":     "Academic contribution or peer recognition",
				"met":       false,
				"reasoning": "No publications or peer-recognition signals are inferable from the questionnaire alone.",
			},
		},
		"evidenceGaps": []string{
			"Signed recommendation letters from established leaders in the field",
			"Proof of external recognition (press, awards, conference talks)",
		},
		"recommendations": []string{
			"Collect three recommendation letters covering different aspects of your work",
			"Assemble dated proof for every claim in the personal statement",
			"Re-run the full analysis once live capacity is available",
		},
		"fieldAnalysis": "Sandbox mode cannot place the candidate within their field; this text stands in for the model's comparative paragraph.",
	}

	b, err := json.Marshal(out)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func routeLabel(route string) string {
	switch route {
	case models.RouteDigitalTechnology:
		return "digital technology"
	case models.RouteArtsCulture:
		return "arts and culture"
	case models.RouteAcademiaResearch:
		return "academia and research"
	case models.RouteExceptionalPromise:
		return "exceptional promise"
	}
	return "selected"
}

func fallback(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
