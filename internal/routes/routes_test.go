package routes

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ikanisa/easymo-router/internal/classifier"
	"github.com/ikanisa/easymo-router/internal/composer"
	"github.com/ikanisa/easymo-router/internal/fulfillment"
	"github.com/ikanisa/easymo-router/internal/handlers"
	"github.com/ikanisa/easymo-router/internal/ingress"
	"github.com/ikanisa/easymo-router/internal/metrics"
	"github.com/ikanisa/easymo-router/internal/models"
	"github.com/ikanisa/easymo-router/internal/policy"
	"github.com/ikanisa/easymo-router/internal/services"
	"github.com/ikanisa/easymo-router/internal/skills"
	"github.com/ikanisa/easymo-router/internal/storage"
	"github.com/ikanisa/easymo-router/internal/templates"
	"github.com/ikanisa/easymo-router/internal/utils"
)

const (
	appSecret   = "app-secret"
	twilioToken = "twilio-token"
	publicURL   = "https://router.example"
)

type recordingGateway struct {
	mu   sync.Mutex
	sent []models.OutboundPayload
	err  error
}

func (g *recordingGateway) Send(_ context.Context, p models.OutboundPayload) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return g.err
	}
	g.sent = append(g.sent, p)
	return nil
}

func (g *recordingGateway) fail(err error) {
	g.mu.Lock()
	g.err = err
	g.mu.Unlock()
}

func (g *recordingGateway) count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.sent)
}

type testApp struct {
	app     *fiber.App
	store   *storage.MemoryStore
	gateway *recordingGateway
}

func newTestApp(t *testing.T, development bool) *testApp {
	t.Helper()
	log := zaptest.NewLogger(t)
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	store := storage.NewMemoryStore()
	gw := &recordingGateway{}
	locks := utils.NewKeyedMutex()

	gate := ingress.NewGate(ingress.Config{
		AppSecret:   appSecret,
		VerifyToken: "verify-me",
		MinInterval: 10 * time.Second,
		MaxLength:   2000,
	}, store, locks, log, m)

	registry, err := templates.Default()
	require.NoError(t, err)
	cache := skills.NewTransactionCache(store, time.Hour)
	conversation := services.NewConversationService(services.ConversationDeps{
		Store:      store,
		Gate:       gate,
		Classifier: classifier.New(classifier.Config{ClarifyThreshold: 0.4, MemoryBoostConfidence: 0.8}, nil, log, m),
		Dispatcher: skills.NewDispatcher(log,
			skills.NewPayments(cache, fulfillment.NewQRClient("", "", time.Second), log),
			skills.NewTransport(cache),
			skills.NewCommerce(fulfillment.NewSearchClient("", time.Second), log),
			skills.NewListings(),
			skills.NewSupport(store, log),
		),
		Composer: composer.New(store, gw, locks, log, m),
		Catalog:  registry,
		Policy:   policy.DefaultConfig(),
		Log:      log,
		Metrics:  m,
	})

	app := fiber.New()
	SetupRoutes(app,
		handlers.NewWhatsAppHandler(gate, conversation, log),
		handlers.NewHealthHandler("test", "memory", "log", registry.Version(), store),
		Options{Development: development, TwilioAuthToken: twilioToken, PublicBaseURL: publicURL, Metrics: reg},
		log)
	return &testApp{app: app, store: store, gateway: gw}
}

func sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func textWebhook(from, id, body string) []byte {
	return []byte(fmt.Sprintf(`{"object":"whatsapp_business_account","entry":[{"id":"1","changes":[{"field":"messages","value":{
		"messaging_product":"whatsapp",
		"contacts":[{"wa_id":%q,"profile":{"name":"Aline"}}],
		"messages":[{"from":%q,"id":%q,"timestamp":"1714554000","type":"text","text":{"body":%q}}]}}]}]}`, from, from, id, body))
}

func postWebhook(t *testing.T, app *fiber.App, body []byte, signature string) *http.Response {
	req := httptest.NewRequest(http.MethodPost, "/webhook/whatsapp", strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(ingress.SignatureHeader, signature)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func TestVerifyHandshake(t *testing.T) {
	ta := newTestApp(t, false)

	req := httptest.NewRequest(http.MethodGet, "/webhook/whatsapp?hub.mode=subscribe&hub.verify_token=verify-me&hub.challenge=12345", nil)
	resp, err := ta.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "12345", string(body))

	req = httptest.NewRequest(http.MethodGet, "/webhook/whatsapp?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=12345", nil)
	resp, err = ta.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	ta := newTestApp(t, false)

	resp := postWebhook(t, ta.app, textWebhook("250788000001", "wamid.1", "hello"), "sha256=00")

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Zero(t, ta.gateway.count())
	_, err := ta.store.GetSession(context.Background(), "250788000001")
	assert.ErrorIs(t, err, storage.ErrNotFound, "no side effects")
}

func TestWebhookAnswersAndIgnoresReplay(t *testing.T) {
	ta := newTestApp(t, false)
	body := textWebhook("250788000001", "wamid.1", "Muraho")

	resp := postWebhook(t, ta.app, body, sign(body))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, ta.gateway.count())

	resp = postWebhook(t, ta.app, body, sign(body))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, ta.gateway.count())
}

func TestWebhookDeliveryFailureAsksForRedelivery(t *testing.T) {
	ta := newTestApp(t, false)
	body := textWebhook("250788000006", "wamid.1", "Muraho")

	ta.gateway.fail(errors.New("gateway down"))
	resp := postWebhook(t, ta.app, body, sign(body))
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	var out struct {
		Admitted int `json:"admitted"`
		Answered int `json:"answered"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, 1, out.Admitted)
	assert.Zero(t, out.Answered)

	ta.gateway.fail(nil)
	resp = postWebhook(t, ta.app, body, sign(body))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, ta.gateway.count())

	log, err := ta.store.GetInboundLog(context.Background(), "wamid.1")
	require.NoError(t, err)
	assert.True(t, log.Processed)
}

func TestWebhookRateLimit(t *testing.T) {
	ta := newTestApp(t, false)
	first := textWebhook("250788000002", "wamid.1", "Muraho")
	second := textWebhook("250788000002", "wamid.2", "hello again")

	require.Equal(t, http.StatusOK, postWebhook(t, ta.app, first, sign(first)).StatusCode)
	resp := postWebhook(t, ta.app, second, sign(second))

	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
	assert.Equal(t, 1, ta.gateway.count())
}

func TestWebhookRejectsInvalidJSON(t *testing.T) {
	ta := newTestApp(t, false)
	body := []byte(`{not json`)
	assert.Equal(t, http.StatusBadRequest, postWebhook(t, ta.app, body, sign(body)).StatusCode)
}

func twilioSignature(fullURL string, params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	data := fullURL
	for _, k := range keys {
		data += k + params.Get(k)
	}
	mac := hmac.New(sha1.New, []byte(twilioToken))
	mac.Write([]byte(data))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func postTwilio(t *testing.T, app *fiber.App, form url.Values, signature string) *http.Response {
	req := httptest.NewRequest(http.MethodPost, "/webhook/twilio", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if signature != "" {
		req.Header.Set("X-Twilio-Signature", signature)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func TestTwilioWebhook(t *testing.T) {
	ta := newTestApp(t, false)
	form := url.Values{
		"MessageSid":  {"SM1"},
		"From":        {"whatsapp:+250788000003"},
		"To":          {"whatsapp:+14155238886"},
		"Body":        {"Muraho"},
		"ProfileName": {"Aline"},
	}

	resp := postTwilio(t, ta.app, form, twilioSignature(publicURL+"/webhook/twilio", form))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, 1, ta.gateway.count())
	assert.Equal(t, "250788000003", ta.gateway.sent[0].Recipient)

	assert.Equal(t, http.StatusUnauthorized, postTwilio(t, ta.app, form, "bogus").StatusCode)
	assert.Equal(t, http.StatusUnauthorized, postTwilio(t, ta.app, form, "").StatusCode)
}

func TestTwilioStatusCallbackIsAcknowledged(t *testing.T) {
	ta := newTestApp(t, false)
	form := url.Values{"MessageSid": {"SM2"}, "MessageStatus": {"delivered"}, "To": {"whatsapp:+250788000003"}}

	resp := postTwilio(t, ta.app, form, twilioSignature(publicURL+"/webhook/twilio", form))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Zero(t, ta.gateway.count())
}

func TestTestEndpointOnlyInDevelopment(t *testing.T) {
	payload := `{"from":"+250788000004","message":"Muraho","name":"Aline"}`

	prod := newTestApp(t, false)
	req := httptest.NewRequest(http.MethodPost, "/test/whatsapp", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp, err := prod.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	dev := newTestApp(t, true)
	req = httptest.NewRequest(http.MethodPost, "/test/whatsapp", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp, err = dev.app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Success bool   `json:"success"`
		Domain  string `json:"domain"`
		Intent  string `json:"intent"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.True(t, out.Success)
	assert.Equal(t, models.DomainSupport, out.Domain)
	assert.Equal(t, "greeting", out.Intent)
}

func TestHealthAndMetrics(t *testing.T) {
	ta := newTestApp(t, false)

	resp, err := ta.app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := textWebhook("250788000005", "wamid.9", "Muraho")
	postWebhook(t, ta.app, body, sign(body))

	resp, err = ta.app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	text, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(text), "easymo_router_inbound_messages_total")
}
