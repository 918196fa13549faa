package models

import (
	"encoding/json"
	"time"
)

// Endorsement routes accepted on the intake form.
const (
	RouteDigitalTechnology  = "digital-technology"
	RouteArtsCulture        = "arts-culture"
	RouteAcademiaResearch   = "academia-research"
	RouteExceptionalPromise = "exceptional-promise"
)

// Experience buckets accepted on the intake form.
const (
	ExperienceJunior = "0-3"
	ExperienceMid    = "4-8"
	ExperienceSenior = "9+"
)

// EvidenceFileLimit caps how many evidence file names a submission carries.
// Names past the limit are dropped, not rejected.
const EvidenceFileLimit = 6

// ValidRoute reports whether route is one of the fixed endorsement routes.
func ValidRoute(route string) bool {
	switch route {
	case RouteDigitalTechnology, RouteArtsCulture, RouteAcademiaResearch, RouteExceptionalPromise:
		return true
	}
	return false
}

// ValidExperience reports whether bucket is one of the fixed experience buckets.
func ValidExperience(bucket string) bool {
	switch bucket {
	case ExperienceJunior, ExperienceMid, ExperienceSenior:
		return true
	}
	return false
}

// AssessmentData is the candidate-submitted questionnaire. It is immutable
// once handed to the analysis call and is persisted verbatim alongside its
// result.
type AssessmentData struct {
	Name              string   `json:"name"`
	Email             string   `json:"email"`
	Route             string   `json:"route"`
	JobTitle          string   `json:"jobTitle"`
	Experience        string   `json:"experience"`
	PersonalStatement string   `json:"personalStatement"`
	EvidenceFiles     []string `json:"evidenceFiles,omitempty"`
	HasEvidence       bool     `json:"hasEvidence"`
}

// CapEvidence truncates the evidence file list to EvidenceFileLimit and
// recomputes HasEvidence from what remains.
func (a *AssessmentData) CapEvidence() {
	if len(a.EvidenceFiles) > EvidenceFileLimit {
		a.EvidenceFiles = a.EvidenceFiles[:EvidenceFileLimit]
	}
	a.HasEvidence = len(a.EvidenceFiles) > 0
}

// Criterion is one scored endorsement criterion in an analysis.
type Criterion struct {
	Title     string `json:"title"`
	Met       bool   `json:"met"`
	Reasoning string `json:"reasoning"`
}

// AnalysisResult is the model's response, treated as opaque display data.
// The score is whatever integer the model returned; bounds are not enforced
// here.
type AnalysisResult struct {
	Score             int         `json:"score"`
	Summary           string      `json:"summary"`
	MandatoryCriteria []Criterion `json:"mandatoryCriteria"`
	OptionalCriteria  []Criterion `json:"optionalCriteria"`
	EvidenceGaps      []string    `json:"evidenceGaps"`
	Recommendations   []string    `json:"recommendations"`
	FieldAnalysis     string      `json:"fieldAnalysis"`
}

// Lead is an admin-facing read model for captured newsletter emails.
type Lead struct {
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// AssessmentRecord is an admin-facing read model for stored assessments.
type AssessmentRecord struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Email      string          `json:"email"`
	Route      string          `json:"route"`
	Score      int             `json:"score"`
	Source     string          `json:"source"`
	InputData  json.RawMessage `json:"input_data,omitempty"`
	ResultData json.RawMessage `json:"result_data,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// ErrorResponse is the standard error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}

// MessageResponse is the standard success payload.
type MessageResponse struct {
	Message string `json:"message"`
}
