package parser

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"visa-assessor/models"
)

// analysisSchema pins the shape of a model response: field names and types
// only. Score bounds, list lengths and text content are deliberately not
// checked here; the response is display data.
const analysisSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["score", "summary", "mandatoryCriteria", "optionalCriteria", "evidenceGaps", "recommendations", "fieldAnalysis"],
	"properties": {
		"score":   {"type": "integer"},
		"summary": {"type": "string"},
		"mandatoryCriteria": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["title", "met", "reasoning"],
				"properties": {
					"title":     {"type": "string"},
					"met":       {"type": "boolean"},
					"reasoning": {"type": "string"}
				}
			}
		},
		"optionalCriteria": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["title", "met", "reasoning"],
				"properties": {
					"title":     {"type": "string"},
					"met":       {"type": "boolean"},
					"reasoning": {"type": "string"}
				}
			}
		},
		"evidenceGaps":    {"type": "array", "items": {"type": "string"}},
		"recommendations": {"type": "array", "items": {"type": "string"}},
		"fieldAnalysis":   {"type": "string"}
	}
}`

var schemaLoader = gojsonschema.NewStringLoader(analysisSchema)

// ExtractJSONFromMarkdown extracts JSON from markdown code blocks
func ExtractJSONFromMarkdown(response string) string {
	// Look for JSON code blocks with ``` markers
	startMarker := "```"
	endMarker := "```"

	startIdx := strings.Index(response, startMarker)
	if startIdx == -1 {
		// No code block found, try to find JSON object directly
		startIdx = strings.Index(response, "{")
		if startIdx == -1 {
			return response
		}
		endIdx := strings.LastIndex(response, "}")
		if endIdx == -1 {
			return response
		}
		return strings.TrimSpace(response[startIdx : endIdx+1])
	}

	// Find the end of the first code block
	endIdx := strings.Index(response[startIdx+len(startMarker):], endMarker)
	if endIdx == -1 {
		return response
	}
	endIdx += startIdx + len(startMarker)

	// Extract content between the markers
	content := response[startIdx+len(startMarker) : endIdx]

	// Remove the language identifier if present (e.g., "json")
	lines := strings.Split(strings.TrimSpace(content), "\n")
	if len(lines) > 0 && (strings.TrimSpace(lines[0]) == "json" || strings.TrimSpace(lines[0]) == "") {
		content = strings.Join(lines[1:], "\n")
	}

	return strings.TrimSpace(content)
}

// ParseAnalysis parses a model response and validates it against the fixed
// response schema.
func ParseAnalysis(response string) (*models.AnalysisResult, error) {
	cleaned := strings.TrimSpace(response)

	// Extract JSON from markdown if present
	jsonContent := ExtractJSONFromMarkdown(cleaned)

	validation, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewStringLoader(jsonContent))
	if err != nil {
		return nil, errors.New("failed to parse JSON response: " + err.Error())
	}
	if !validation.Valid() {
		var problems []string
		for _, desc := range validation.Errors() {
			problems = append(problems, desc.String())
		}
		return nil, fmt.Errorf("response does not match analysis schema: %s", strings.Join(problems, "; "))
	}

	var result models.AnalysisResult
	if err := json.Unmarshal([]byte(jsonContent), &result); err != nil {
		return nil, errors.New("failed to parse JSON response: " + err.Error())
	}
	return &result, nil
}
