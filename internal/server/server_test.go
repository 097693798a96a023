package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fundsync-dev/fundsync/internal/forward"
	"github.com/fundsync-dev/fundsync/internal/history"
	"github.com/fundsync-dev/fundsync/internal/ingest"
	"github.com/fundsync-dev/fundsync/internal/logging"
	"github.com/fundsync-dev/fundsync/internal/model"
)

type stubAuth struct {
	mu            sync.Mutex
	authenticated bool
	pending       string
	codes         []string
}

func (a *stubAuth) IsAuthenticated() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.authenticated
}

func (a *stubAuth) CompleteAuth(code, state string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if state == "" || state != a.pending {
		return forward.ErrStateMismatch
	}
	a.codes = append(a.codes, code)
	return nil
}

type stubPipeline struct {
	result ingest.Result
}

func (p stubPipeline) Ingest(string, string) ingest.Result { return p.result }

func (p stubPipeline) AddManual(amount decimal.Decimal, sender string) model.PaymentEvent {
	return model.Local(model.Payment{Amount: amount, Sender: sender}).Event(1)
}

type fixture struct {
	srv   *Server
	store *history.Store
	auth  *stubAuth
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	logger := logging.Discard()
	store := history.Open(filepath.Join(t.TempDir(), "notifications.json"), history.WithLogger(logger))
	pipeline := ingest.New(ingest.Config{Store: store, Logger: logger})
	auth := &stubAuth{}
	return fixture{srv: New(pipeline, store, auth, logger), store: store, auth: auth}
}

func do(t *testing.T, app *fiber.App, method, target, body string) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func TestPostNotification_Recorded(t *testing.T) {
	f := newFixture(t)

	resp, body := do(t, f.srv.App(), http.MethodPost, "/v1/notifications",
		`{"originator":"net.one97.paytm","text":"You received Rs. 500 from Asha"}`)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.JSONEq(t, `{"result":"recorded"}`, string(body))

	events := f.store.Snapshot().Events
	require.Len(t, events, 1)
	assert.Equal(t, "500.00", events[0].Amount)
	assert.Equal(t, "Asha", events[0].Sender)
	assert.True(t, events[0].Success)
}

func TestPostNotification_Results(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantResult string
	}{
		{"other app", `{"originator":"com.whatsapp","text":"You received Rs. 500"}`, fiber.StatusOK, "ignored"},
		{"not a receipt", `{"originator":"com.phonepe.app","text":"Your bill is due"}`, fiber.StatusOK, "no-match"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			resp, body := do(t, f.srv.App(), http.MethodPost, "/v1/notifications", tt.body)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.JSONEq(t, `{"result":"`+tt.wantResult+`"}`, string(body))
			assert.Zero(t, f.store.Len())
		})
	}
}

func TestPostNotification_Forwarding(t *testing.T) {
	srv := New(stubPipeline{result: ingest.Forwarding}, history.Open(filepath.Join(t.TempDir(), "h.json")), &stubAuth{}, logging.Discard())

	resp, body := do(t, srv.App(), http.MethodPost, "/v1/notifications", `{"originator":"com.phonepe.app","text":"x"}`)
	assert.Equal(t, fiber.StatusAccepted, resp.StatusCode)
	assert.JSONEq(t, `{"result":"forwarding"}`, string(body))
}

func TestPostNotification_BadRequest(t *testing.T) {
	f := newFixture(t)

	for _, body := range []string{`{"text":"You received Rs. 5"}`, `{not json`} {
		resp, data := do(t, f.srv.App(), http.MethodPost, "/v1/notifications", body)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode, body)
		assert.Contains(t, string(data), `"error":"bad_request"`)
	}
}

func TestListEvents_EmptyIsArray(t *testing.T) {
	f := newFixture(t)

	resp, body := do(t, f.srv.App(), http.MethodGet, "/v1/events", "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"version":0,"events":[]}`, string(body))
}

func TestAddAndListEvents(t *testing.T) {
	f := newFixture(t)
	app := f.srv.App()

	resp, body := do(t, app, http.MethodPost, "/v1/events", `{"amount":"250.5","sender":"  "}`)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	var added model.PaymentEvent
	require.NoError(t, json.Unmarshal(body, &added))
	assert.Equal(t, "250.50", added.Amount)
	assert.Equal(t, model.UnknownSender, added.Sender)

	_, _ = do(t, app, http.MethodPost, "/v1/events", `{"amount":75,"sender":"Ravi"}`)

	resp, body = do(t, app, http.MethodGet, "/v1/events?limit=1", "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var list eventsResponse
	require.NoError(t, json.Unmarshal(body, &list))
	assert.Equal(t, uint64(2), list.Version)
	require.Len(t, list.Events, 1)
	assert.Equal(t, "Ravi", list.Events[0].Sender, "newest first")
}

func TestAddEvent_RejectsNonPositive(t *testing.T) {
	f := newFixture(t)

	for _, body := range []string{`{"amount":"0","sender":"a"}`, `{"amount":"-4","sender":"a"}`, `{"amount":"abc"}`} {
		resp, _ := do(t, f.srv.App(), http.MethodPost, "/v1/events", body)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode, body)
	}
	assert.Zero(t, f.store.Len())
}

func TestClearEvents(t *testing.T) {
	f := newFixture(t)
	app := f.srv.App()
	_, _ = do(t, app, http.MethodPost, "/v1/events", `{"amount":"10","sender":"a"}`)
	require.Equal(t, 1, f.store.Len())

	resp, _ := do(t, app, http.MethodDelete, "/v1/events", "")
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	assert.Zero(t, f.store.Len())
}

func TestAuthStatus(t *testing.T) {
	f := newFixture(t)

	_, body := do(t, f.srv.App(), http.MethodGet, "/v1/auth/status", "")
	assert.JSONEq(t, `{"authenticated":false}`, string(body))

	f.auth.authenticated = true
	_, body = do(t, f.srv.App(), http.MethodGet, "/v1/auth/status", "")
	assert.JSONEq(t, `{"authenticated":true}`, string(body))
}

func TestOAuthCallback(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantCodes  []string
		wantBody   string
	}{
		{"code", "?code=abc&state=s1", fiber.StatusAccepted, []string{"abc"}, "exchanging"},
		{"wrong state", "?code=abc&state=forged", fiber.StatusBadRequest, nil, "invalid_state"},
		{"no state", "?code=abc", fiber.StatusBadRequest, nil, "invalid_state"},
		{"denied", "?error=access_denied", fiber.StatusBadRequest, nil, "authorization_failed"},
		{"missing", "", fiber.StatusBadRequest, nil, "no authorization code"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.auth.pending = "s1"
			resp, body := do(t, f.srv.App(), http.MethodGet, "/oauth/callback"+tt.query, "")
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Contains(t, string(body), tt.wantBody)
			assert.Equal(t, tt.wantCodes, f.auth.codes)
		})
	}
}

func TestUnknownRoute(t *testing.T) {
	f := newFixture(t)

	resp, body := do(t, f.srv.App(), http.MethodGet, "/v2/nothing", "")
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Contains(t, string(body), `"error":"not_found"`)
}
