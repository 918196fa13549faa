package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"visa-assessor/config"
	"visa-assessor/database"
	"visa-assessor/llm"
	"visa-assessor/models"
	"visa-assessor/queue"
	"visa-assessor/service"
	"visa-assessor/session"
	"visa-assessor/stubllm"
)

// blockingClient parks inside the provider call until released, so tests
// can issue a second request while the first is still analyzing.
type blockingClient struct {
	mu      sync.Mutex
	calls   int
	entered chan struct{}
	release chan struct{}
}

func newBlockingClient() *blockingClient {
	return &blockingClient{
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (b *blockingClient) AnalyzeCandidate(ctx context.Context, data *models.AssessmentData) (string, error) {
	b.mu.Lock()
	b.calls++
	first := b.calls == 1
	b.mu.Unlock()
	if first {
		close(b.entered)
	}
	<-b.release
	return stubllm.NewClient().AnalyzeCandidate(ctx, data)
}

func (b *blockingClient) SourceName() string { return "Blocking" }

// quotaClient always fails with a rate-limit error.
type quotaClient struct{}

func (quotaClient) AnalyzeCandidate(ctx context.Context, data *models.AssessmentData) (string, error) {
	return "", &llm.Error{Kind: llm.KindRateLimited, Status: 429, Message: "quota exceeded"}
}

func (quotaClient) SourceName() string { return "Quota" }

type testEnv struct {
	router *gin.Engine
	mock   sqlmock.Sqlmock
}

func newTestEnv(t *testing.T, client llm.Client) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error: %v", err)
	}
	t.Cleanup(func() { mockDB.Close() })

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	cfg := &config.Config{
		LLMTimeout:     time.Second,
		SubmitGuardTTL: 5 * time.Second,
		PremiumPrice:   "24.99",
		CheckoutURL:    "https://buy.stripe.com/test_premium",
		AdminToken:     "admin-secret",
	}

	store := session.NewStoreWithClient(rdb, time.Hour)
	tasks := queue.New(16, 1, 0)
	svc := service.NewServiceWithClient(cfg, database.NewWithDB(mockDB), store, tasks, client)

	router := gin.New()
	NewHandlers(cfg, svc, nil).RegisterRoutes(router)
	return &testEnv{router: router, mock: mock}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) createSession(t *testing.T) string {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/v1/session", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("create session = %d: %s", w.Code, w.Body.String())
	}
	var sess session.Session
	if err := json.Unmarshal(w.Body.Bytes(), &sess); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	return sess.ID
}

func submission() map[string]any {
	return map[string]any{
		"name":              "Ada Lovelace",
		"email":             "ada@example.com",
		"route":             models.RouteDigitalTechnology,
		"jobTitle":          "Staff Engineer",
		"experience":        "9+",
		"personalStatement": "I build compilers.",
	}
}

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t, stubllm.NewClient())
	w := env.do(t, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Errorf("health = %d", w.Code)
	}
}

func TestFullAssessmentFlow(t *testing.T) {
	env := newTestEnv(t, stubllm.NewClient())
	id := env.createSession(t)

	// landing -> form
	if w := env.do(t, http.MethodPost, "/api/v1/session/"+id+"/start", nil); w.Code != http.StatusOK {
		t.Fatalf("start = %d: %s", w.Code, w.Body.String())
	}

	// form -> analyzing -> results_free
	w := env.do(t, http.MethodPost, "/api/v1/session/"+id+"/assess", submission())
	if w.Code != http.StatusOK {
		t.Fatalf("assess = %d: %s", w.Code, w.Body.String())
	}
	var sess session.Session
	if err := json.Unmarshal(w.Body.Bytes(), &sess); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if sess.Step != models.StepResultsFree || sess.Result == nil {
		t.Fatalf("unexpected session after assess: step=%s result=%v", sess.Step, sess.Result != nil)
	}

	// results_free -> payment with a checkout URL
	w = env.do(t, http.MethodPost, "/api/v1/session/"+id+"/checkout", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("checkout = %d: %s", w.Code, w.Body.String())
	}
	var checkout struct {
		CheckoutURL string `json:"checkout_url"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &checkout); err != nil {
		t.Fatalf("decode checkout: %v", err)
	}
	if checkout.CheckoutURL == "" {
		t.Error("checkout URL missing")
	}

	// payment -> results_premium
	w = env.do(t, http.MethodPost, "/api/v1/session/"+id+"/payment/complete", map[string]string{"mode": "checkout"})
	if w.Code != http.StatusOK {
		t.Fatalf("complete = %d: %s", w.Code, w.Body.String())
	}
	if err := json.Unmarshal(w.Body.Bytes(), &sess); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if !sess.Premium || sess.Step != models.StepResultsPremium {
		t.Errorf("premium=%v step=%s after completion", sess.Premium, sess.Step)
	}

	// reset keeps premium and result
	w = env.do(t, http.MethodPost, "/api/v1/session/"+id+"/reset", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("reset = %d", w.Code)
	}
	if err := json.Unmarshal(w.Body.Bytes(), &sess); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if sess.Step != models.StepLanding || !sess.Premium || sess.Result == nil {
		t.Errorf("reset lost state: step=%s premium=%v", sess.Step, sess.Premium)
	}
}

func TestAssessValidation(t *testing.T) {
	env := newTestEnv(t, stubllm.NewClient())
	id := env.createSession(t)
	env.do(t, http.MethodPost, "/api/v1/session/"+id+"/start", nil)

	body := submission()
	body["personalStatement"] = ""
	w := env.do(t, http.MethodPost, "/api/v1/session/"+id+"/assess", body)
	if w.Code != http.StatusBadRequest {
		t.Errorf("assess with missing statement = %d, want 400", w.Code)
	}
}

func TestAssessGuardAcrossRequests(t *testing.T) {
	client := newBlockingClient()
	env := newTestEnv(t, client)
	id := env.createSession(t)
	env.do(t, http.MethodPost, "/api/v1/session/"+id+"/start", nil)

	first := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		first <- env.do(t, http.MethodPost, "/api/v1/session/"+id+"/assess", submission())
	}()

	select {
	case <-client.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("first request never reached the provider")
	}

	// A second submit for the same session must see the stored guard.
	w := env.do(t, http.MethodPost, "/api/v1/session/"+id+"/assess", submission())
	if w.Code != http.StatusConflict {
		t.Errorf("concurrent assess = %d, want 409: %s", w.Code, w.Body.String())
	}

	close(client.release)
	select {
	case w := <-first:
		if w.Code != http.StatusOK {
			t.Fatalf("first assess = %d: %s", w.Code, w.Body.String())
		}
	case <-time.After(2 * time.Second):
		t.Fatal("first request never completed")
	}

	client.mu.Lock()
	calls := client.calls
	client.mu.Unlock()
	if calls != 1 {
		t.Errorf("provider ran %d times, want 1", calls)
	}
}

func TestAssessRequiresFormStep(t *testing.T) {
	env := newTestEnv(t, stubllm.NewClient())
	id := env.createSession(t)

	// Still on landing: no /start was issued.
	w := env.do(t, http.MethodPost, "/api/v1/session/"+id+"/assess", submission())
	if w.Code != http.StatusConflict {
		t.Errorf("assess from landing = %d, want 409: %s", w.Code, w.Body.String())
	}
}

func TestAssessQuotaOffersSandbox(t *testing.T) {
	env := newTestEnv(t, quotaClient{})
	id := env.createSession(t)
	env.do(t, http.MethodPost, "/api/v1/session/"+id+"/start", nil)

	w := env.do(t, http.MethodPost, "/api/v1/session/"+id+"/assess", submission())
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("assess = %d, want 429: %s", w.Code, w.Body.String())
	}
	var body struct {
		SandboxAvailable bool `json:"sandbox_available"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if !body.SandboxAvailable {
		t.Error("quota response must advertise the sandbox")
	}

	// The sandbox path succeeds for the same session.
	w = env.do(t, http.MethodPost, "/api/v1/session/"+id+"/assess/sandbox", submission())
	if w.Code != http.StatusOK {
		t.Fatalf("sandbox assess = %d: %s", w.Code, w.Body.String())
	}
}

func TestSessionNotFound(t *testing.T) {
	env := newTestEnv(t, stubllm.NewClient())
	w := env.do(t, http.MethodGet, "/api/v1/session/missing-id", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("get missing session = %d, want 404", w.Code)
	}
}

func TestNavigateRejectsIllegalStep(t *testing.T) {
	env := newTestEnv(t, stubllm.NewClient())
	id := env.createSession(t)

	// landing -> payment is not a legal move
	w := env.do(t, http.MethodPost, "/api/v1/session/"+id+"/navigate", map[string]string{"step": "payment"})
	if w.Code != http.StatusConflict {
		t.Errorf("illegal navigate = %d, want 409", w.Code)
	}

	w = env.do(t, http.MethodPost, "/api/v1/session/"+id+"/navigate", map[string]string{"step": "warp"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown step = %d, want 400", w.Code)
	}

	w = env.do(t, http.MethodPost, "/api/v1/session/"+id+"/navigate", map[string]string{"step": "guides"})
	if w.Code != http.StatusOK {
		t.Errorf("legal navigate = %d, want 200", w.Code)
	}
}

func TestCaptureLeadMasksDuplicates(t *testing.T) {
	env := newTestEnv(t, stubllm.NewClient())

	for i := 0; i < 2; i++ {
		w := env.do(t, http.MethodPost, "/api/v1/leads", map[string]string{"email": "ada@example.com"})
		if w.Code != http.StatusOK {
			t.Errorf("lead attempt %d = %d, want 200", i+1, w.Code)
		}
	}

	w := env.do(t, http.MethodPost, "/api/v1/leads", map[string]string{"email": "not-an-email"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid lead = %d, want 400", w.Code)
	}
}

func TestGetContent(t *testing.T) {
	env := newTestEnv(t, stubllm.NewClient())

	w := env.do(t, http.MethodGet, "/api/v1/content/privacy", nil)
	if w.Code != http.StatusOK {
		t.Errorf("privacy page = %d", w.Code)
	}

	w = env.do(t, http.MethodGet, "/api/v1/content/nope", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown page = %d, want 404", w.Code)
	}
}

func TestAdvisorsFallbackWithoutCoords(t *testing.T) {
	env := newTestEnv(t, stubllm.NewClient())

	for _, path := range []string{
		"/api/v1/advisors",
		"/api/v1/advisors?lat=abc&lon=0",
		"/api/v1/advisors?lat=120&lon=0",
	} {
		w := env.do(t, http.MethodGet, path, nil)
		if w.Code != http.StatusOK {
			t.Errorf("%s = %d, want 200", path, w.Code)
			continue
		}
		var dir struct {
			Area string `json:"area"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &dir); err != nil {
			t.Fatalf("decode directory: %v", err)
		}
		if dir.Area != "United Kingdom" {
			t.Errorf("%s area = %s, want national fallback", path, dir.Area)
		}
	}
}

func TestAdminAuth(t *testing.T) {
	env := newTestEnv(t, stubllm.NewClient())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/leads", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("no token = %d, want 401", w.Code)
	}

	env.mock.ExpectQuery("SELECT email, created_at FROM leads").
		WillReturnRows(sqlmock.NewRows([]string{"email", "created_at"}).
			AddRow("ada@example.com", time.Now()))

	req = httptest.NewRequest(http.MethodGet, "/api/v1/admin/leads", nil)
	req.Header.Set("Authorization", "Bearer admin-secret")
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("valid token = %d: %s", w.Code, w.Body.String())
	}
	var body struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Count != 1 {
		t.Errorf("count = %d, want 1", body.Count)
	}
}

func TestProfileLastAssessmentIncognito(t *testing.T) {
	env := newTestEnv(t, stubllm.NewClient())

	env.mock.ExpectQuery("SELECT profile FROM user_profiles").WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"profile"}).
			AddRow([]byte(`{"version":2,"displayName":"Ada","email":"ada@example.com","incognito":true}`)))

	w := env.do(t, http.MethodGet, "/api/v1/profile/user-1/last-assessment", nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("incognito last-assessment = %d, want 204", w.Code)
	}
}

func TestProfileLastAssessmentVisible(t *testing.T) {
	env := newTestEnv(t, stubllm.NewClient())

	env.mock.ExpectQuery("SELECT profile FROM user_profiles").WithArgs("user-2").
		WillReturnRows(sqlmock.NewRows([]string{"profile"}).
			AddRow([]byte(`{"version":2,"displayName":"Ada","email":"ada@example.com"}`)))

	columns := []string{"id", "name", "email", "route", "score", "source", "input_data", "result_data", "created_at"}
	env.mock.ExpectQuery("SELECT (.+) FROM assessments").WithArgs("ada@example.com").
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("id-1", "Ada", "ada@example.com", models.RouteDigitalTechnology, 58,
				"Sandbox", `{}`, fmt.Sprintf(`{"score":%d}`, 58), time.Now()))

	w := env.do(t, http.MethodGet, "/api/v1/profile/user-2/last-assessment", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("last-assessment = %d: %s", w.Code, w.Body.String())
	}
	var rec models.AssessmentRecord
	if err := json.Unmarshal(w.Body.Bytes(), &rec); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if rec.Score != 58 {
		t.Errorf("score = %d, want 58", rec.Score)
	}
}
