package content

// Page is a static content page served to the client verbatim.
type Page struct {
	Slug    string `json:"slug"`
	Title   string `json:"title"`
	Body    string `json:"body"`
	Gated   bool   `json:"gated"` // requires a captured lead to view
	Updated string `json:"updated"`
}

var pages = map[string]Page{
	"guide-general": {
		Slug:  "guide-general",
		Title: "Global Talent Visa: Application Guide",
		Gated: true,
		Body: `The Global Talent visa is a two-stage route. Stage one is the
endorsement: an expert body in your field reviews your evidence and
confirms you are a leader or a potential leader. Stage two is the visa
application itself, handled by the Home Office.

You must meet one mandatory criterion and at least two optional
criteria for your route. Your evidence pack is capped at ten items,
each no longer than three A4 pages, plus three recommendation letters
from established figures in your field.

Timelines vary by endorsing body. Budget for eight weeks end to end;
fast-track schemes exist for some routes. The endorsement fee and visa
fee are paid separately.`,
		Updated: "2025-11-18",
	},
	"guide-tech": {
		Slug:  "guide-tech",
		Title: "Digital Technology Route",
		Gated: true,
		Body: `The digital technology route is endorsed by Tech Nation. It covers
technical and business roles in product-led digital companies.

Exceptional Talent requires proof you have been recognised as a leader
in the last five years. Exceptional Promise suits earlier-career
applicants showing potential for leadership.

Strong evidence includes: significant open-source contributions,
leading the growth of a product past meaningful revenue or user
milestones, speaking at major conferences, and salary or equity
documentation showing senior-level compensation.`,
		Updated: "2025-11-18",
	},
	"guide-arts": {
		Slug:  "guide-arts",
		Title: "Arts & Culture Route",
		Gated: true,
		Body: `Arts Council England endorses the arts and culture route, with
sub-bodies for film and television, fashion, and architecture.

You must show a track record of professional engagements across at
least two countries, media recognition, and awards or nominations.
Promise-level applicants need evidence of a developing international
profile.

Your three letters matter heavily here: at least one must come from a
UK-based organisation or expert familiar with your work.`,
		Updated: "2025-11-18",
	},
	"guide-academia": {
		Slug:  "guide-academia",
		Title: "Academia & Research Route",
		Gated: true,
		Body: `Academic and research applicants are endorsed by the British Academy,
the Royal Academy of Engineering, the Royal Society, or UKRI, depending
on field and role.

Several fast-track paths exist: holding an eligible senior appointment,
hosting an approved fellowship, or leading an approved research grant.
These bypass the full peer-review stage and are usually decided within
two weeks.

Without a fast-track, the full peer review weighs publications,
citations, grants won as principal investigator, and international
collaboration.`,
		Updated: "2025-11-18",
	},
	"privacy": {
		Slug:  "privacy",
		Title: "Privacy Policy",
		Body: `We store the answers you submit, the generated analysis, and the email
address you provide. Assessment inputs are sent to a third-party
language-model provider for scoring and are not used to train models.

Your email is used to deliver the guides you requested and occasional
product updates. Unsubscribe at any time.

Profile data stays on this service and is deleted in full when you use
the wipe option. We do not sell personal data.`,
		Updated: "2025-09-02",
	},
	"criteria": {
		Slug:  "criteria",
		Title: "Endorsement Criteria Reference",
		Body: `Mandatory criterion: recognition as a leading talent (Exceptional
Talent) or recognition of potential (Exceptional Promise) in your
field within the last five years.

Optional criteria, choose at least two:
1. Innovation as a founder, senior executive or board member, or as an
   employee working on a new digital field or concept.
2. Proof of recognition for work beyond your immediate occupation that
   contributes to the advancement of your field.
3. Significant technical, commercial or entrepreneurial contributions
   to the field as a founder, senior executive, board member or
   employee.
4. Exceptional ability in the field demonstrated by academic
   contributions through research endorsed by an expert.`,
		Updated: "2025-09-02",
	},
	"api-docs": {
		Slug:  "api-docs",
		Title: "API Reference",
		Body: `All endpoints live under /api/v1 and exchange JSON.

POST /session            create a session
GET  /session/:id        fetch session state
POST /session/:id/start  landing -> form
POST /session/:id/navigate {"step": "..."}
POST /session/:id/reset  return to landing, result retained

POST /session/:id/assess          run the analysis
POST /session/:id/assess/sandbox  deterministic sandbox analysis
POST /session/:id/checkout        begin premium purchase
POST /session/:id/payment/complete {"mode": "checkout|native|demo"}
POST /session/:id/payment/cancel

POST /leads              capture an email
GET  /content/:slug      static pages
GET  /advisors?lat=&lon= advisor directory

GET/PUT/DELETE /profile/:userId   user profile
GET  /profile/:userId/last-assessment

Admin reads require a bearer token:
GET /admin/leads
GET /admin/assessments`,
		Updated: "2026-01-12",
	},
}

// GuideSlugs lists the gated guide pages in display order.
var GuideSlugs = []string{"guide-general", "guide-tech", "guide-arts", "guide-academia"}

// Get returns the page for a slug.
func Get(slug string) (Page, bool) {
	p, ok := pages[slug]
	return p, ok
}

// Guides returns the gated guide pages in display order.
func Guides() []Page {
	out := make([]Page, 0, len(GuideSlugs))
	for _, slug := range GuideSlugs {
		out = append(out, pages[slug])
	}
	return out
}
