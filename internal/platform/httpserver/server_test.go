package httpserver_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	voteadmission "crowdstage/contexts/trust-safety/vote-admission"
	"crowdstage/contexts/trust-safety/vote-admission/domain/entities"
	"crowdstage/contexts/trust-safety/vote-admission/ports"
	"crowdstage/internal/platform/httpserver"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Prometheus collectors register globally, so every server in this file
// shares one Metrics instance.
var testMetrics = httpserver.NewMetrics()

func newTestServer(t *testing.T, swaggerEnabled bool) *httpserver.Server {
	t.Helper()
	module := voteadmission.NewInMemoryModule(nil, nil)
	module.Store.SetNow(time.Date(2026, time.March, 14, 15, 0, 0, 0, time.UTC))
	module.Store.SetContent(ports.ContentProjection{
		Ref:      entities.ContentRef{Type: entities.ContentTypeSong, ID: 42},
		Title:    "Midnight Run",
		Status:   "approved",
		Timezone: "UTC",
	})
	return httpserver.New(module, testMetrics, nil, ":0", swaggerEnabled)
}

func serve(server *httpserver.Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	return rec
}

func TestSwaggerRouteGatedByFlag(t *testing.T) {
	enabled := newTestServer(t, true)
	rec := serve(enabled, httptest.NewRequest(http.MethodGet, "/swagger/index.html", nil))
	assert.NotEqual(t, http.StatusNotFound, rec.Code)

	disabled := newTestServer(t, false)
	rec = serve(disabled, httptest.NewRequest(http.MethodGet, "/swagger/index.html", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthzAlwaysMounted(t *testing.T) {
	server := newTestServer(t, false)
	rec := serve(server, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func castVoteRequest(email string) *http.Request {
	body := `{"email":"` + email + `","content_type":"song","content_id":42,` +
		`"device_fingerprint":"fp-http","user_agent":"Mozilla/5.0","bot_score":0.9}`
	req := httptest.NewRequest(http.MethodPost, "/api/voting/v1/votes", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestCastVoteEndpointStatusCodes(t *testing.T) {
	server := newTestServer(t, false)

	rec := serve(server, castVoteRequest("voter@example.com"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"status":"admitted"`)

	rec = serve(server, castVoteRequest("voter@example.com"))
	require.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"reason":"DUPLICATE_VOTE"`)

	rec = serve(server, castVoteRequest("not-an-email"))
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"reason":"INVALID_ATTEMPT"`)
}
