package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"visa-assessor/llm"
	"visa-assessor/models"
)

const promptSystem = `
You are **Global Talent Assessor**, an expert on UK Global Talent visa endorsement criteria who converts a short candidate questionnaire into a scored eligibility analysis.

########################################
# 1. MISSION
########################################
For every candidate profile you MUST:

Step 1: ========: Identify the endorsement route and the endorsing body's published criteria for that route (Tech Nation-style digital technology, Arts Council, UKRI/British Academy/Royal Society academia, or exceptional promise).
Step 2: ========: Judge each mandatory criterion and each optional criterion against the candidate's job title, experience bucket and personal statement. Be strict: an unsupported claim is an unmet criterion.
Step 3: ========: List concrete evidence gaps. The candidate attached file NAMES only; the contents were not reviewed, so treat attachments as claimed-but-unverified evidence.
Step 4: ========: Fill every field in the JSON schema (see § 3).
Step 5: ========: Output a **single, valid JSON object** and nothing else.

########################################
# 2. OUTPUT RULES
########################################
* JSON only — no wrapping markdown.
* The score is an integer from 0 to 100 reflecting endorsement probability.
* The summary must reference the chosen route and the candidate's seniority.
* mandatoryCriteria must contain exactly the route's mandatory criteria, in order.
* optionalCriteria must contain the route's optional criteria, in order.
* Each criterion reasoning must cite something concrete from the statement or explain what is missing.
* recommendations must contain at least 3 actionable items.
* fieldAnalysis is one paragraph placing the candidate within their field.

########################################
# 3. OUTPUT SCHEMA
{
  "score":             <0-100 integer>,
  "summary":           "<2-3 sentence verdict>",
  "mandatoryCriteria": [{"title": "<criterion>", "met": <true|false>, "reasoning": "<evidence-based judgement>"}],
  "optionalCriteria":  [{"title": "<criterion>", "met": <true|false>, "reasoning": "<evidence-based judgement>"}],
  "evidenceGaps":      ["<missing document or proof point>"],
  "recommendations":   ["<actionable step>"],
  "fieldAnalysis":     "<one paragraph>"
}
########################################
`

type part struct {
	Text string `json:"text,omitempty"`
}

type content struct {
	Role  string `json:"role"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	ResponseMimeType string `json:"response_mime_type,omitempty"`
}

type geminiRequest struct {
	GenerationConfig generationConfig `json:"generationConfig,omitempty"`
	Contents         []content        `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text,omitempty"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

type Client struct {
	apiKey string
	model  string
	http   *http.Client
}

func NewClient(apiKey, model string) *Client {
	return &Client{
		apiKey: apiKey,
		model:  model,
		http:   &http.Client{},
	}
}

func (c *Client) SourceName() string {
	return "Gemini"
}

// AnalyzeCandidate runs the scored eligibility analysis for one submission.
func (c *Client) AnalyzeCandidate(ctx context.Context, data *models.AssessmentData) (string, error) {
	reqBody := geminiRequest{
		GenerationConfig: generationConfig{ResponseMimeType: "application/json"},
		Contents: []content{
			{
				Role: "user",
				Parts: []part{
					{Text: promptSystem},
					{Text: llm.CandidateContext(data)},
				},
			},
		},
	}
	return c.generateContent(ctx, reqBody)
}

func (c *Client) generateContent(ctx context.Context, body geminiRequest) (string, error) {
	// try v1beta first, then v1
	endpoints := []string{
		fmt.Sprintf("https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent?key=%s", c.model, c.apiKey),
		fmt.Sprintf("https://generativelanguage.googleapis.com/v1/models/%s:generateContent?key=%s", c.model, c.apiKey),
	}

	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	for _, ep := range endpoints {
		req, err := http.NewRequestWithContext(ctx, "POST", ep, bytes.NewBuffer(data))
		if err != nil {
			lastErr = fmt.Errorf("failed to create request: %w", err)
			continue
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = llm.Classify(0, err.Error())
			continue
		}
		bodyBytes, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to read response: %w", err)
			continue
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			lastErr = llm.Classify(resp.StatusCode, string(bodyBytes))
			// a quota rejection will hit the second endpoint too; stop here
			if resp.StatusCode == http.StatusTooManyRequests {
				return "", lastErr
			}
			continue
		}
		var gr geminiResponse
		if err := json.Unmarshal(bodyBytes, &gr); err != nil {
			lastErr = fmt.Errorf("failed to parse response: %w", err)
			continue
		}
		if len(gr.Candidates) == 0 {
			lastErr = fmt.Errorf("no candidates in response")
			continue
		}
		// find first text part
		for _, p := range gr.Candidates[0].Content.Parts {
			if p.Text != "" {
				return p.Text, nil
			}
		}
		lastErr = fmt.Errorf("no text part in response")
	}
	return "", lastErr
}
