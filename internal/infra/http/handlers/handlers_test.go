package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richdadretirement/leadrelay/internal/entity"
	"github.com/richdadretirement/leadrelay/internal/infra/database"
	"github.com/richdadretirement/leadrelay/internal/infra/integration/goldprice"
	"github.com/richdadretirement/leadrelay/internal/notification"
	"github.com/richdadretirement/leadrelay/internal/usecase"
)

type recordingOutbox struct {
	mu  sync.Mutex
	got []notification.Notification
}

func (o *recordingOutbox) Enqueue(_ context.Context, n notification.Notification) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.got = append(o.got, n)
	return nil
}

func (o *recordingOutbox) All() []notification.Notification {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]notification.Notification(nil), o.got...)
}

type brokenStore struct{ database.MemoryLeadRepository }

func (*brokenStore) Insert(context.Context, *entity.Lead) (*entity.Lead, error) {
	return nil, errors.New("connection refused")
}

func newTrackRouter(outbox notification.Outbox) http.Handler {
	h := NewTrackHandler(usecase.NewTrackClickUseCase(outbox, "https://richdadretirement.com/", "", nil, time.Second))
	r := chi.NewRouter()
	r.Get("/track", h.Handle)
	r.Get("/api/track-click", h.Handle)
	return r
}

func TestTrackRedirectLocationEqualsDecodedURL(t *testing.T) {
	destinations := []string{
		"https://learn.augustapreciousmetals.com/ira?sub_id=blog_CLK-abc123",
		"https://partner.example.com/offer?aff=rdr&sub_id=guide_CLK-9f3a2b#apply",
		"http://partner.example.com/a%20b?q=x%2By",
	}

	for _, path := range []string{"/track", "/api/track-click"} {
		for _, dest := range destinations {
			outbox := &recordingOutbox{}
			target := path + "?url=" + url.QueryEscape(dest) + "&source=blog&traffic=organic&click_id=CLK-abc123"

			rec := httptest.NewRecorder()
			newTrackRouter(outbox).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))

			assert.Equal(t, http.StatusFound, rec.Code)
			assert.Equal(t, dest, rec.Header().Get("Location"))
			assert.Len(t, outbox.All(), 1)
		}
	}
}

func TestTrackSourceDoesNotGrowClickSeries(t *testing.T) {
	router := newTrackRouter(&recordingOutbox{})
	dest := url.QueryEscape("https://partner.example.com/offer")

	for i := 0; i < 50; i++ {
		target := fmt.Sprintf("/track?url=%s&source=campaign-%d&traffic=paid", dest, i)
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, target, nil))
	}

	series, err := testutil.GatherAndCount(prometheus.DefaultGatherer, "clicks_tracked_total")
	require.NoError(t, err)
	assert.LessOrEqual(t, series, 2)
}

func TestTrackFallbackRedirect(t *testing.T) {
	for _, target := range []string{"/track", "/track?url=", "/track?url=javascript%3Aalert(1)", "/track?url=%2Fira"} {
		outbox := &recordingOutbox{}
		rec := httptest.NewRecorder()

		newTrackRouter(outbox).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))

		assert.Equal(t, http.StatusFound, rec.Code, target)
		assert.Equal(t, "https://richdadretirement.com/", rec.Header().Get("Location"), target)
		assert.Empty(t, outbox.All())
	}
}

func newPostbackRouter(outbox notification.Outbox, leads usecase.LeadStore, token string) http.Handler {
	uc := usecase.NewHandlePostbackUseCase(outbox, leads, nil, 0, time.Second)
	h := NewPostbackHandler(uc, token)
	r := chi.NewRouter()
	r.Get("/api/postback", h.Handle)
	r.Post("/api/postback", h.Handle)
	return r
}

func decodePostback(t *testing.T, rec *httptest.ResponseRecorder) usecase.HandlePostbackOutput {
	t.Helper()
	var out usecase.HandlePostbackOutput
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestPostbackGetUpdatesLead(t *testing.T) {
	store := database.NewMemoryLeadRepository()
	lead, _ := store.Insert(context.Background(), &entity.Lead{Email: "a@example.com"})
	outbox := &recordingOutbox{}

	rec := httptest.NewRecorder()
	newPostbackRouter(outbox, store, "").ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/api/postback?type=qualified_lead&sub_id=blog_CLK-abc123&lead_id="+lead.ID+"&amount=50000", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	out := decodePostback(t, rec)
	assert.True(t, out.Success)
	assert.True(t, out.LeadUpdated)
	assert.Equal(t, entity.EventQualifiedLead, out.Event)

	got, _ := store.GetByID(context.Background(), lead.ID)
	assert.Equal(t, entity.LeadStatusQualified, got.Status)
	require.Len(t, outbox.All(), 1)
	amount, _ := outbox.All()[0].Fields.Get("amount")
	assert.Equal(t, "50000", amount)
}

func TestPostbackJSONBodyIsStringified(t *testing.T) {
	outbox := &recordingOutbox{}
	body := `{"type":"trade_complete","sub_id":"blog_CLK-abc123","amount":50000.5,"rollover":true,"meta":{"a": 1},"note":null}`

	req := httptest.NewRequest(http.MethodPost, "/api/postback", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	newPostbackRouter(outbox, nil, "").ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	n := outbox.All()[0]
	assert.Equal(t, entity.EventTradeComplete, n.Type)
	assert.Equal(t, entity.Fields{
		{Key: "amount", Value: "50000.5"},
		{Key: "meta", Value: `{"a":1}`},
		{Key: "rollover", Value: "true"},
	}, n.Fields)
}

func TestPostbackFormBody(t *testing.T) {
	outbox := &recordingOutbox{}
	form := url.Values{"type": {"lead_capture"}, "sub_id": {"quiz_CLK-q1w2e3"}, "state": {"TX"}}

	req := httptest.NewRequest(http.MethodPost, "/api/postback?source_page=quiz", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	newPostbackRouter(outbox, nil, "").ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	n := outbox.All()[0]
	assert.Equal(t, entity.EventLeadCapture, n.Type)
	assert.Equal(t, entity.Fields{{Key: "source_page", Value: "quiz"}, {Key: "state", Value: "TX"}}, n.Fields)
}

func TestPostbackRejectsBadJSON(t *testing.T) {
	for _, body := range []string{`{"type":`, `["qualified_lead"]`, `"qualified_lead"`, `null`} {
		outbox := &recordingOutbox{}
		req := httptest.NewRequest(http.MethodPost, "/api/postback", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()

		newPostbackRouter(outbox, nil, "").ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Contains(t, rec.Body.String(), "INVALID_PAYLOAD")
		assert.Empty(t, outbox.All())
	}
}

func TestPostbackUnknownTypeStill200(t *testing.T) {
	rec := httptest.NewRecorder()
	newPostbackRouter(&recordingOutbox{}, nil, "").ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/postback?type=whatever", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, entity.EventUnknown, decodePostback(t, rec).Event)
}

func TestPostbackToken(t *testing.T) {
	outbox := &recordingOutbox{}
	router := newPostbackRouter(outbox, nil, "s3cret")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/postback?type=lead_capture", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/postback?type=lead_capture&token=wrong", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/postback?type=lead_capture&token=s3cret", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/postback?type=lead_capture", nil)
	req.Header.Set("X-Postback-Token", "s3cret")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	sent := outbox.All()
	require.Len(t, sent, 2)
	_, leaked := sent[0].Fields.Get("token")
	assert.False(t, leaked)
}

func newLeadRouter(store usecase.LeadStore, outbox notification.Outbox, limit int) http.Handler {
	h := NewLeadHandler(usecase.NewCaptureLeadUseCase(store, outbox, time.Second), NewRateLimiter(limit, time.Minute))
	r := chi.NewRouter()
	r.Post("/api/leads", h.CaptureLead)
	return r
}

const leadBody = `{"first_name":"Ada","last_name":"Lovelace","email":"ada@example.com","phone":"555-010-0100","source":"ira-guide"}`

func postLead(router http.Handler, body, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/leads", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Forwarded-For", ip)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCaptureLeadCreated(t *testing.T) {
	store := database.NewMemoryLeadRepository()
	outbox := &recordingOutbox{}

	rec := postLead(newLeadRouter(store, outbox, 10), leadBody, "203.0.113.5")

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp CaptureLeadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)

	lead, err := store.GetByID(context.Background(), resp.ID)
	require.NoError(t, err)
	require.NotNil(t, lead)
	assert.Equal(t, "203.0.113.5", lead.IPAddress)
	assert.Equal(t, entity.LeadStatusNew, lead.Status)
	assert.Len(t, outbox.All(), 1)
}

func TestCaptureLeadValidationError(t *testing.T) {
	rec := postLead(newLeadRouter(nil, &recordingOutbox{}, 10), `{"first_name":"Ada","email":"nope"}`, "203.0.113.5")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "email: is invalid")
}

func TestCaptureLeadInvalidJSON(t *testing.T) {
	rec := postLead(newLeadRouter(nil, &recordingOutbox{}, 10), `{`, "203.0.113.5")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCaptureLeadStoreDisabled(t *testing.T) {
	outbox := &recordingOutbox{}

	rec := postLead(newLeadRouter(nil, outbox, 10), leadBody, "203.0.113.5")

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Len(t, outbox.All(), 1)
}

func TestCaptureLeadStoreFailure(t *testing.T) {
	outbox := &recordingOutbox{}

	rec := postLead(newLeadRouter(&brokenStore{}, outbox, 10), leadBody, "203.0.113.5")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":false`)
	assert.Len(t, outbox.All(), 1)
}

func TestCaptureLeadRateLimited(t *testing.T) {
	router := newLeadRouter(database.NewMemoryLeadRepository(), &recordingOutbox{}, 2)

	assert.Equal(t, http.StatusCreated, postLead(router, leadBody, "198.51.100.7").Code)
	assert.Equal(t, http.StatusCreated, postLead(router, leadBody, "198.51.100.7").Code)
	assert.Equal(t, http.StatusTooManyRequests, postLead(router, leadBody, "198.51.100.7").Code)
	assert.Equal(t, http.StatusCreated, postLead(router, leadBody, "198.51.100.8").Code)
}

func TestRateLimiterWindowResets(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(1, time.Minute)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))

	now = now.Add(61 * time.Second)
	assert.True(t, rl.Allow("a"))

	now = now.Add(3 * time.Minute)
	rl.sweep()
	assert.Empty(t, rl.visitors)
}

func TestGetClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:54321"
	assert.Equal(t, "192.0.2.1", getClientIP(req))

	req.Header.Set("X-Real-IP", "198.51.100.2")
	assert.Equal(t, "192.0.2.1", getClientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")
	assert.Equal(t, "10.0.0.1", getClientIP(req))
}

func TestLeadRateLimitIgnoresSpoofedForwardedHops(t *testing.T) {
	router := newLeadRouter(nil, &recordingOutbox{}, 2)

	codes := make([]int, 0, 4)
	for i := 0; i < 4; i++ {
		spoofed := fmt.Sprintf("203.0.113.%d, 198.51.100.9", i)
		codes = append(codes, postLead(router, leadBody, spoofed).Code)
	}

	assert.Equal(t, []int{http.StatusAccepted, http.StatusAccepted, http.StatusTooManyRequests, http.StatusTooManyRequests}, codes)
}

func TestLinkHandler(t *testing.T) {
	h := NewLinkHandler(usecase.NewBuildLinkUseCase("/track", ""))

	req := httptest.NewRequest(http.MethodPost, "/api/links", strings.NewReader(`{"destination":"https://a.example.com/offer?x=1","source":"blog"}`))
	rec := httptest.NewRecorder()
	h.Handle(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var out usecase.BuildLinkOutput
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Regexp(t, `^CLK-[a-z0-9]{6}$`, out.ClickID)
	assert.Equal(t, "https://a.example.com/offer?x=1&sub_id=blog_"+out.ClickID, out.Destination)

	rec = httptest.NewRecorder()
	h.Handle(rec, httptest.NewRequest(http.MethodPost, "/api/links", strings.NewReader(`{"source":"blog"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "VALIDATION_ERROR")
}

type stubPrices struct {
	spot goldprice.Spot
	err  error
}

func (s stubPrices) Get(context.Context) (goldprice.Spot, error) { return s.spot, s.err }

func TestPriceHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	NewPriceHandler(stubPrices{spot: goldprice.Spot{Gold: 2931.45, Silver: 32.87, Currency: "USD"}}).
		Handle(rec, httptest.NewRequest(http.MethodGet, "/api/prices", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var spot goldprice.Spot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &spot))
	assert.Equal(t, 2931.45, spot.Gold)

	rec = httptest.NewRecorder()
	NewPriceHandler(stubPrices{err: errors.New("403")}).Handle(rec, httptest.NewRequest(http.MethodGet, "/api/prices", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestHealthHandler(t *testing.T) {
	h := NewHealthHandler("test").
		AddCheck("database", func(context.Context) error { return nil }).
		AddCheck("redis", nil).
		AddIntegration("telegram", true).
		AddIntegration("supabase", false)

	rec := httptest.NewRecorder()
	h.Handle(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, map[string]string{
		"database": "healthy",
		"redis":    "not configured",
		"telegram": "configured",
		"supabase": "not configured",
	}, resp.Dependencies)

	h.AddCheck("rabbitmq", func(context.Context) error { return errors.New("connection closed") })
	rec = httptest.NewRecorder()
	h.Handle(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "unhealthy: connection closed")
}
