package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/google/uuid"

	"visa-assessor/config"
	"visa-assessor/database"
	"visa-assessor/email"
	"visa-assessor/gemini"
	"visa-assessor/llm"
	"visa-assessor/metrics"
	"visa-assessor/models"
	"visa-assessor/openai"
	"visa-assessor/parser"
	"visa-assessor/payment"
	"visa-assessor/queue"
	"visa-assessor/session"
	"visa-assessor/stubllm"
)

// Sentinel errors mapped to HTTP statuses by the handlers.
var (
	ErrSubmitInFlight     = errors.New("a submission is already in progress")
	ErrInvalidTransition  = errors.New("step transition not allowed")
	ErrResultRequired     = errors.New("no analysis result available")
	ErrAnalysisFailed     = errors.New("analysis failed")
	ErrAnalysisRateLimit  = errors.New("analysis provider quota exhausted")
	ErrUnparsableAnalysis = errors.New("analysis response could not be parsed")
)

// ValidationError names the first required field that was missing.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("missing required field: %s", e.Field)
}

// CompletedEvent is published to RabbitMQ after each stored assessment.
type CompletedEvent struct {
	AssessmentID string    `json:"assessment_id"`
	Email        string    `json:"email"`
	Route        string    `json:"route"`
	Score        int       `json:"score"`
	Source       string    `json:"source"`
	Timestamp    time.Time `json:"timestamp"`
}

// Service owns the assessment workflow: validation, LLM analysis, parsing,
// session step changes, and the fire-and-forget persistence side effects.
type Service struct {
	cfg       *config.Config
	db        *database.Database
	sessions  *session.Store
	client    llm.Client
	sandbox   llm.Client
	processor *payment.Processor
	mailer    *email.Sender
	tasks     *queue.Queue
	publisher *queue.Publisher
}

// NewService wires the workflow together. The primary LLM client follows
// the configured provider; demo mode forces the deterministic sandbox.
func NewService(cfg *config.Config, db *database.Database, sessions *session.Store,
	tasks *queue.Queue, publisher *queue.Publisher) *Service {

	var client llm.Client
	switch {
	case cfg.DemoMode || cfg.LLMProvider == "stub":
		client = stubllm.NewClient()
	case cfg.LLMProvider == "openai":
		client = openai.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	default:
		client = gemini.NewClient(cfg.GeminiAPIKey, cfg.GeminiModel)
	}
	log.WithField("provider", client.SourceName()).Info("LLM provider selected")

	return &Service{
		cfg:       cfg,
		db:        db,
		sessions:  sessions,
		client:    client,
		sandbox:   stubllm.NewClient(),
		processor: payment.NewProcessor(cfg),
		mailer:    email.NewSender(cfg.SendGridAPIKey, cfg.SendGridFromName, cfg.SendGridFromEmail),
		tasks:     tasks,
		publisher: publisher,
	}
}

// NewServiceWithClient is a test hook that injects the LLM client directly.
func NewServiceWithClient(cfg *config.Config, db *database.Database, sessions *session.Store,
	tasks *queue.Queue, client llm.Client) *Service {
	return &Service{
		cfg:       cfg,
		db:        db,
		sessions:  sessions,
		client:    client,
		sandbox:   stubllm.NewClient(),
		processor: payment.NewProcessor(cfg),
		mailer:    email.NewSender("", "", ""),
		tasks:     tasks,
	}
}

// Sessions exposes the session store to the handlers.
func (s *Service) Sessions() *session.Store { return s.sessions }

// Database exposes the store for admin reads.
func (s *Service) Database() *database.Database { return s.db }

func validate(data *models.AssessmentData) error {
	if strings.TrimSpace(data.Name) == "" {
		return &ValidationError{Field: "name"}
	}
	if strings.TrimSpace(data.Email) == "" {
		return &ValidationError{Field: "email"}
	}
	if strings.TrimSpace(data.PersonalStatement) == "" {
		return &ValidationError{Field: "personalStatement"}
	}
	if !models.ValidRoute(data.Route) {
		return &ValidationError{Field: "route"}
	}
	return nil
}

// Submit runs the full assessment flow against the configured provider.
// Required fields are checked before any provider call is made.
func (s *Service) Submit(ctx context.Context, sess *session.Session, data *models.AssessmentData) error {
	return s.submit(ctx, sess, data, s.client)
}

// SandboxSubmit runs the same flow against the deterministic sandbox
// provider. Offered to users after a quota failure.
func (s *Service) SandboxSubmit(ctx context.Context, sess *session.Session, data *models.AssessmentData) error {
	return s.submit(ctx, sess, data, s.sandbox)
}

func (s *Service) submit(ctx context.Context, sess *session.Session, data *models.AssessmentData, client llm.Client) error {
	if err := validate(data); err != nil {
		metrics.SubmissionsTotal.WithLabelValues("validation_error").Inc()
		return err
	}
	if sess.SubmitGuardActive(s.cfg.SubmitGuardTTL) {
		return ErrSubmitInFlight
	}
	if !sess.Transition(models.StepAnalyzing) {
		return ErrInvalidTransition
	}

	data.CapEvidence()
	sess.Assessment = data
	sess.ErrorKind = session.ErrorNone
	sess.BeginSubmit()

	// Store the guard before the provider call so a concurrent submit for
	// the same session loads Submitting=true. The final state is stored by
	// the caller once the flow finishes.
	if s.sessions != nil {
		if err := s.sessions.Put(ctx, sess); err != nil {
			log.Warnf("failed to store submit guard: %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.LLMTimeout)
	defer cancel()

	start := time.Now()
	raw, err := client.AnalyzeCandidate(ctx, data)
	metrics.LLMRequestDuration.WithLabelValues(client.SourceName()).Observe(time.Since(start).Seconds())

	sess.EndSubmit()
	if err != nil {
		kind := llm.KindOf(err)
		metrics.LLMErrorsTotal.WithLabelValues(string(kind)).Inc()
		metrics.SubmissionsTotal.WithLabelValues("llm_error").Inc()
		sess.Step = models.StepForm
		if kind == llm.KindRateLimited {
			sess.ErrorKind = session.ErrorQuota
			log.WithField("provider", client.SourceName()).Warn("provider quota exhausted")
			return ErrAnalysisRateLimit
		}
		sess.ErrorKind = session.ErrorGeneric
		log.WithField("provider", client.SourceName()).Errorf("analysis failed: %v", err)
		return ErrAnalysisFailed
	}

	result, err := parser.ParseAnalysis(raw)
	if err != nil {
		metrics.SubmissionsTotal.WithLabelValues("parse_error").Inc()
		sess.Step = models.StepForm
		sess.ErrorKind = session.ErrorGeneric
		log.Errorf("failed to parse analysis: %v", err)
		return ErrUnparsableAnalysis
	}

	sess.Result = result
	sess.ErrorKind = session.ErrorNone
	sess.Step = models.StepResultsFree
	metrics.SubmissionsTotal.WithLabelValues("success").Inc()

	s.persistAssessment(sess, data, result, client.SourceName())
	return nil
}

// persistAssessment queues the database write and the completion event.
// Failures here never affect the caller's result.
func (s *Service) persistAssessment(sess *session.Session, data *models.AssessmentData, result *models.AnalysisResult, source string) {
	inputData, err := json.Marshal(data)
	if err != nil {
		log.Errorf("failed to encode assessment input: %v", err)
		return
	}
	resultData, err := json.Marshal(result)
	if err != nil {
		log.Errorf("failed to encode assessment result: %v", err)
		return
	}

	rec := &models.AssessmentRecord{
		ID:         uuid.NewString(),
		Name:       data.Name,
		Email:      data.Email,
		Route:      data.Route,
		Score:      result.Score,
		Source:     source,
		InputData:  inputData,
		ResultData: resultData,
	}
	s.tasks.Enqueue("save_assessment", func(ctx context.Context) error {
		return s.db.SaveAssessment(rec)
	})

	if s.publisher != nil {
		event := CompletedEvent{
			AssessmentID: rec.ID,
			Email:        rec.Email,
			Route:        rec.Route,
			Score:        rec.Score,
			Source:       rec.Source,
			Timestamp:    time.Now().UTC(),
		}
		s.tasks.Enqueue("publish_event", func(ctx context.Context) error {
			return s.publisher.Publish(event)
		})
	}
}

// CaptureLead stores a newsletter email and sends the welcome mail to new
// leads. The write happens in the background; the caller always sees
// success so the endpoint cannot be used to probe stored emails.
func (s *Service) CaptureLead(emailAddr, name string) error {
	emailAddr = strings.TrimSpace(emailAddr)
	if emailAddr == "" || !strings.Contains(emailAddr, "@") {
		return &ValidationError{Field: "email"}
	}

	s.tasks.Enqueue("upsert_lead", func(ctx context.Context) error {
		created, err := s.db.UpsertLead(emailAddr)
		if err != nil {
			return err
		}
		if created {
			metrics.LeadsTotal.Inc()
			if err := s.mailer.SendWelcomeEmail(emailAddr, name); err != nil {
				log.Warnf("welcome email failed: %v", err)
			}
		}
		return nil
	})
	return nil
}

// Start moves a session from the landing step onto the form.
func (s *Service) Start(sess *session.Session) error {
	if !sess.Transition(models.StepForm) {
		return ErrInvalidTransition
	}
	return nil
}

// Navigate applies an arbitrary step change subject to the step machine.
func (s *Service) Navigate(sess *session.Session, target models.Step) error {
	if !sess.Transition(target) {
		return ErrInvalidTransition
	}
	return nil
}

// Upgrade moves the session onto the payment step and returns the checkout
// URL for the configured Stripe flow.
func (s *Service) Upgrade(sess *session.Session) (string, error) {
	if !sess.HasResult() {
		return "", ErrResultRequired
	}
	if !sess.Transition(models.StepPayment) {
		return "", ErrInvalidTransition
	}
	emailAddr := ""
	if sess.Assessment != nil {
		emailAddr = sess.Assessment.Email
	}
	return s.processor.CheckoutURL(emailAddr)
}

// CompletePayment finishes a purchase. Native and demo modes run their
// simulated delay first; checkout completion is immediate. Premium is set
// before the step change and is never revoked afterwards.
func (s *Service) CompletePayment(ctx context.Context, sess *session.Session, mode payment.Mode) error {
	switch mode {
	case payment.ModeNative, payment.ModeDemo:
		if err := s.processor.SimulateCompletion(ctx, mode); err != nil {
			return err
		}
	case payment.ModeCheckout:
	default:
		return fmt.Errorf("unknown payment mode %q", mode)
	}

	if !sess.Transition(models.StepResultsPremium) {
		return ErrInvalidTransition
	}
	sess.Premium = true
	metrics.PaymentCompletionsTotal.WithLabelValues(string(mode)).Inc()
	return nil
}

// CancelPayment returns the session to the free results view.
func (s *Service) CancelPayment(sess *session.Session) error {
	if !sess.Transition(models.StepResultsFree) {
		return ErrInvalidTransition
	}
	return nil
}

// Reset returns the session to the landing step, keeping the retained
// result and the premium flag.
func (s *Service) Reset(sess *session.Session) {
	sess.Reset()
}
