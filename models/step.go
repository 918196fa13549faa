package models

// Step identifies the screen a session is currently on. It is the sole
// driver of what the client renders; transitions happen only through
// explicit user actions or completion of the analysis call.
type Step string

const (
	StepLanding        Step = "landing"
	StepForm           Step = "form"
	StepAnalyzing      Step = "analyzing"
	StepResultsFree    Step = "results_free"
	StepPayment        Step = "payment"
	StepResultsPremium Step = "results_premium"

	// Static content family, reachable from the guide hub.
	StepGuides        Step = "guides"
	StepGuideGeneral  Step = "guide_general"
	StepGuideTech     Step = "guide_tech"
	StepGuideArts     Step = "guide_arts"
	StepGuideAcademia Step = "guide_academia"
	StepPrivacy       Step = "privacy"
	StepCriteria      Step = "criteria"
	StepAPIDocs       Step = "api_docs"
)

var transitions = map[Step][]Step{
	StepLanding:        {StepForm, StepGuides},
	StepForm:           {StepAnalyzing},
	StepAnalyzing:      {StepResultsFree, StepForm},
	StepResultsFree:    {StepPayment},
	StepPayment:        {StepResultsPremium, StepResultsFree},
	StepResultsPremium: {},

	StepGuides:        {StepGuideGeneral, StepGuideTech, StepGuideArts, StepGuideAcademia},
	StepGuideGeneral:  {StepGuides, StepPrivacy, StepCriteria, StepAPIDocs},
	StepGuideTech:     {StepGuides},
	StepGuideArts:     {StepGuides},
	StepGuideAcademia: {StepGuides},
	StepPrivacy:       {StepGuideGeneral},
	StepCriteria:      {StepGuideGeneral},
	StepAPIDocs:       {StepGuideGeneral},
}

// ParseStep returns the Step for s, or false if s names no known step.
func ParseStep(s string) (Step, bool) {
	step := Step(s)
	_, ok := transitions[step]
	return step, ok
}

// CanTransitionTo reports whether moving from s to target is a legal
// transition. A global reset to the landing step is allowed from anywhere.
func (s Step) CanTransitionTo(target Step) bool {
	if target == StepLanding {
		return true
	}
	for _, t := range transitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// RequiresResult reports whether the step belongs to the results/payment
// family, which is only reachable once an analysis result exists.
func (s Step) RequiresResult() bool {
	switch s {
	case StepResultsFree, StepPayment, StepResultsPremium:
		return true
	}
	return false
}
