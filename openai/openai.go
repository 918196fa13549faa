package openai

import (
	"context"
	"errors"
	"fmt"

	goopenai "github.com/sashabaranov/go-openai"

	"visa-assessor/llm"
	"visa-assessor/models"
)

const promptSystem = `You are **Global Talent Assessor**, an expert on UK Global Talent visa endorsement criteria.
Given a candidate questionnaire, judge the route's mandatory and optional criteria strictly against the
candidate's job title, experience bucket and personal statement, list concrete evidence gaps
(file names were attached but contents were NOT reviewed), and output a single JSON object with exactly
these fields and no others:

{
  "score":             <0-100 integer endorsement probability>,
  "summary":           "<2-3 sentence verdict naming the route and seniority>",
  "mandatoryCriteria": [{"title": "...", "met": true|false, "reasoning": "..."}],
  "optionalCriteria":  [{"title": "...", "met": true|false, "reasoning": "..."}],
  "evidenceGaps":      ["..."],
  "recommendations":   ["...", "...", "..."],
  "fieldAnalysis":     "<one paragraph placing the candidate within their field>"
}

Output JSON only, no markdown.`

// Client implements llm.Client against the OpenAI chat completions API.
type Client struct {
	api   *goopenai.Client
	model string
}

// NewClient creates a new OpenAI client
func NewClient(apiKey, model string) *Client {
	return &Client{
		api:   goopenai.NewClient(apiKey),
		model: model,
	}
}

// SourceName identifies this provider in saved analyses
func (c *Client) SourceName() string {
	return "ChatGPT"
}

// AnalyzeCandidate runs the scored eligibility analysis for one submission.
func (c *Client) AnalyzeCandidate(ctx context.Context, data *models.AssessmentData) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model: c.model,
		ResponseFormat: &goopenai.ChatCompletionResponseFormat{
			Type: goopenai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: promptSystem},
			{Role: goopenai.ChatMessageRoleUser, Content: llm.CandidateContext(data)},
		},
	})
	if err != nil {
		var apiErr *goopenai.APIError
		if errors.As(err, &apiErr) {
			return "", llm.Classify(apiErr.HTTPStatusCode, apiErr.Message)
		}
		return "", llm.Classify(0, err.Error())
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}
