package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Hashira10/render/internal/config"
	"github.com/Hashira10/render/internal/models"
	"github.com/Hashira10/render/internal/storage"
)

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	cfg := &config.Config{}
	cfg.Server.BaseURL = "http://phish.test"
	cfg.Report.NoDataLabel = "no data"
	return NewServer(&Dependencies{
		Config: cfg,
		Logger: zap.NewNop(),
	})
}

func doJSON(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(w.Body).Decode(dst))
}

func TestHealth(t *testing.T) {
	h := newTestServer(t)
	w := doJSON(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestIngestToReportRoundTrip(t *testing.T) {
	h := newTestServer(t)

	// Create a group with three recipients.
	group := models.RecipientGroup{
		Name: "Finance",
		Recipients: []models.Recipient{
			{ID: "r1", Email: "r1@corp.example"},
			{ID: "r2", Email: "r2@corp.example"},
			{ID: "r3", Email: "r3@corp.example"},
		},
	}
	w := doJSON(t, h, http.MethodPost, "/api/recipient_groups", group)
	require.Equal(t, http.StatusOK, w.Code)
	decodeBody(t, w, &group)

	// Send a message to the group.
	w = doJSON(t, h, http.MethodPost, "/api/messages", map[string]string{
		"campaign_name":      "Q1",
		"subject":            "Invoice",
		"recipient_group_id": group.ID,
	})
	require.Equal(t, http.StatusOK, w.Code)
	var msg models.Message
	decodeBody(t, w, &msg)
	require.NotEmpty(t, msg.ID)
	assert.Len(t, msg.Recipients, 3)

	// r1 clicks twice on facebook, r2 once on google.
	for _, p := range []string{
		"/track/r1/" + msg.ID + "/facebook",
		"/track/r1/" + msg.ID + "/facebook",
		"/track/r2/" + msg.ID + "/google",
	} {
		req := httptest.NewRequest(http.MethodGet, p, nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusFound, rec.Code)
	}

	// r1 submits credentials on facebook.
	form := url.Values{"email": {"r1@corp.example"}, "password": {"hunter2"}}
	req := httptest.NewRequest(http.MethodPost, "/capture/r1/"+msg.ID+"/facebook",
		strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	// The duplicate facebook click was deduplicated at ingest.
	w = doJSON(t, h, http.MethodGet, "/api/click_logs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var clicks []models.ClickLog
	decodeBody(t, w, &clicks)
	assert.Len(t, clicks, 2)
	for _, c := range clicks {
		require.NotNil(t, c.Recipient, "click %s not attributed", c.ID)
	}

	// Overview reflects the ingested events.
	w = doJSON(t, h, http.MethodGet, "/reports/overview", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var overview struct {
		Campaigns map[string]struct {
			TotalRecipients       int `json:"total_recipients"`
			UniqueClickUsers      int `json:"unique_click_users"`
			UniqueCredentialUsers int `json:"unique_credential_users"`
		} `json:"campaigns"`
		Leaderboard struct {
			TopClickPlatform   string `json:"top_click_platform"`
			TopCredentialGroup string `json:"top_credential_group"`
		} `json:"leaderboard"`
		GeneratedAt time.Time `json:"generated_at"`
	}
	decodeBody(t, w, &overview)

	q1 := overview.Campaigns["Q1"]
	assert.Equal(t, 3, q1.TotalRecipients)
	assert.Equal(t, 2, q1.UniqueClickUsers)
	assert.Equal(t, 1, q1.UniqueCredentialUsers)
	assert.Equal(t, "facebook", overview.Leaderboard.TopClickPlatform)
	assert.Equal(t, "Finance", overview.Leaderboard.TopCredentialGroup)

	// Campaign detail carries the rates.
	w = doJSON(t, h, http.MethodGet, "/reports/campaigns/Q1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var detail struct {
		Name           string   `json:"name"`
		ClickRate      *float64 `json:"click_rate"`
		CredentialRate *float64 `json:"credential_rate"`
	}
	decodeBody(t, w, &detail)
	assert.Equal(t, "Q1", detail.Name)
	require.NotNil(t, detail.ClickRate)
	assert.InDelta(t, 2.0/3.0, *detail.ClickRate, 1e-9)
}

func TestTrackUnknownRecipientStillRedirects(t *testing.T) {
	h := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/track/ghost/m1/google?redirect=http://corp.example/doc", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "http://corp.example/doc", w.Header().Get("Location"))

	// The row exists but is unattributed.
	lw := doJSON(t, h, http.MethodGet, "/api/click_logs", nil)
	var clicks []models.ClickLog
	decodeBody(t, lw, &clicks)
	require.Len(t, clicks, 1)
	assert.Nil(t, clicks[0].Recipient)
}

type faultyRecipientStore struct {
	*storage.InMemoryStore
}

func (f *faultyRecipientStore) GetRecipient(ctx context.Context, id string) (*models.Recipient, error) {
	return nil, errors.New("connection refused")
}

func TestTrackStoreOutageLogsAndKeepsRow(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	cfg := &config.Config{}
	cfg.Server.BaseURL = "http://phish.test"
	cfg.Report.NoDataLabel = "no data"
	h := NewServer(&Dependencies{
		Store:  &faultyRecipientStore{storage.NewInMemoryStore()},
		Config: cfg,
		Logger: zap.New(core),
	})

	req := httptest.NewRequest(http.MethodGet, "/track/r1/m1/facebook", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusFound, w.Code)

	// The outage is logged, not swallowed.
	entries := logs.FilterMessage("recipient lookup failed, recording unattributed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "r1", entries[0].ContextMap()["recipient_id"])

	// The click row is still recorded, unattributed.
	lw := doJSON(t, h, http.MethodGet, "/api/click_logs", nil)
	var clicks []models.ClickLog
	decodeBody(t, lw, &clicks)
	require.Len(t, clicks, 1)
	assert.Nil(t, clicks[0].Recipient)
}

func TestCampaignReportNotFound(t *testing.T) {
	h := newTestServer(t)

	w := doJSON(t, h, http.MethodGet, "/reports/campaigns/Nope", nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	var body map[string]string
	decodeBody(t, w, &body)
	assert.Equal(t, "Nope", body["name"])
}

func TestGroupCSVImport(t *testing.T) {
	h := newTestServer(t)

	var group models.RecipientGroup
	w := doJSON(t, h, http.MethodPost, "/api/recipient_groups", models.RecipientGroup{Name: "Sales"})
	require.Equal(t, http.StatusOK, w.Code)
	decodeBody(t, w, &group)

	csv := "first_name,last_name,email,position\nAnn,Lee,ann@corp.example,CFO\nBo,Ek,bo@corp.example,\n"
	req := httptest.NewRequest(http.MethodPost, "/api/recipient_groups/"+group.ID+"/import",
		strings.NewReader(csv))
	req.Header.Set("Content-Type", "text/csv")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	w = doJSON(t, h, http.MethodGet, "/api/recipient_groups/"+group.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decodeBody(t, w, &group)
	assert.Len(t, group.Recipients, 2)
}

func TestRecipientValidation(t *testing.T) {
	h := newTestServer(t)
	w := doJSON(t, h, http.MethodPost, "/api/recipients", models.Recipient{FirstName: "NoEmail"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
