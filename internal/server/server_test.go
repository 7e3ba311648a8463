package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opalchat/opal/internal/chat"
	"github.com/opalchat/opal/internal/config"
	"github.com/opalchat/opal/internal/db/migrations"
	"github.com/opalchat/opal/internal/logging"
	"github.com/opalchat/opal/internal/svc"
	"github.com/opalchat/opal/internal/types"
)

func newTestServer(t *testing.T) (*svc.ServiceContext, *httptest.Server) {
	t.Helper()
	logging.Disable()
	migrations.QuietMode = true

	c := config.DefaultConfig()
	c.SQLitePath = filepath.Join(t.TempDir(), "test.db")
	c.Upstream.APIKey = "test-key"

	svcCtx, err := svc.NewServiceContext(c)
	require.NoError(t, err)
	t.Cleanup(svcCtx.Close)

	srv := httptest.NewServer(NewRouter(svcCtx, true))
	t.Cleanup(srv.Close)
	return svcCtx, srv
}

func getJSON(t *testing.T, url string, v any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if v != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}
	return resp
}

func TestHealthEndpoint(t *testing.T) {
	_, srv := newTestServer(t)

	var health types.HealthResponse
	resp := getJSON(t, srv.URL+"/health", &health)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", health.Status)
	assert.NotEmpty(t, health.Timestamp)
}

func TestListModels(t *testing.T) {
	svcCtx, srv := newTestServer(t)

	var catalog types.ModelCatalogResponse
	resp := getJSON(t, srv.URL+"/api/models", &catalog)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, svcCtx.Config.DefaultModel, catalog.CurrentModel)
	assert.Contains(t, catalog.AvailableModels, svcCtx.Config.DefaultModel)
}

func TestSelectModel(t *testing.T) {
	svcCtx, srv := newTestServer(t)

	// Slash-bearing model id rides the wildcard path segment
	resp, err := http.Post(srv.URL+"/api/models/select/openai/gpt-5", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var sel types.SelectModelResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sel))
	assert.Equal(t, "openai/gpt-5", sel.CurrentModel)
	assert.Equal(t, "openai/gpt-5", svcCtx.Models.Current())
}

func TestSelectUnknownModel(t *testing.T) {
	svcCtx, srv := newTestServer(t)
	before := svcCtx.Models.Current()

	resp, err := http.Post(srv.URL+"/api/models/select/made/up-model", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, before, svcCtx.Models.Current())
}

func TestListSessionsEmpty(t *testing.T) {
	_, srv := newTestServer(t)

	var sessions []types.SessionSummary
	resp := getJSON(t, srv.URL+"/api/sessions", &sessions)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotNil(t, sessions)
	assert.Empty(t, sessions)
}

func TestGetSessionUnwrapsMessages(t *testing.T) {
	svcCtx, srv := newTestServer(t)
	ctx := context.Background()

	_, err := svcCtx.DB.CreateSession(ctx, "s1", "openai/gpt-5")
	require.NoError(t, err)

	userBlob := chat.EncodeUserPayload("hi there", nil)
	_, err = svcCtx.DB.AppendMessage(ctx, "m1", "s1", "user", userBlob)
	require.NoError(t, err)

	assistantBlob, ok := chat.EncodeAssistantPayload(chat.Payload{Content: "hello!", Reasoning: "greeting"})
	require.True(t, ok)
	_, err = svcCtx.DB.AppendMessage(ctx, "m2", "s1", "assistant", assistantBlob)
	require.NoError(t, err)

	// Blank rows are filtered from the response
	_, err = svcCtx.DB.AppendMessage(ctx, "m3", "s1", "assistant", "")
	require.NoError(t, err)

	var got types.GetSessionResponse
	resp := getJSON(t, srv.URL+"/api/sessions/s1", &got)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, "s1", got.Id)
	assert.Equal(t, "openai/gpt-5", got.ModelUsed)
	require.Len(t, got.Messages, 2)

	assert.Equal(t, "user", got.Messages[0].Role)
	assert.Equal(t, "hi there", got.Messages[0].Content)
	assert.NotNil(t, got.Messages[0].Images)

	assert.Equal(t, "assistant", got.Messages[1].Role)
	assert.Equal(t, "hello!", got.Messages[1].Content)
	assert.Equal(t, "greeting", got.Messages[1].Reasoning)
}

func TestGetSessionNotFound(t *testing.T) {
	_, srv := newTestServer(t)

	resp := getJSON(t, srv.URL+"/api/sessions/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
