package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annai-ai/annai/internal/action"
	"github.com/annai-ai/annai/internal/agent"
	"github.com/annai-ai/annai/internal/auth"
	"github.com/annai-ai/annai/internal/bus"
	"github.com/annai-ai/annai/internal/cache"
	"github.com/annai-ai/annai/internal/memory"
	"github.com/annai-ai/annai/internal/orchestrator"
	"github.com/annai-ai/annai/internal/router"
	"github.com/annai-ai/annai/internal/store"
	"github.com/annai-ai/annai/internal/testutil"
	"github.com/annai-ai/annai/internal/tool"
)

const (
	testOwnerID = "owner-1"
	testAPIKey  = "test-api-key"
)

type testServer struct {
	handler  http.Handler
	memories *memory.Store
	records  *store.MemStore
	token    string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := testutil.TestLogger()
	b := bus.New(logger, 200)
	memories := memory.NewStore(b)
	records := store.NewMemStore()
	tools := tool.NewRegistry(b)
	tool.RegisterBuiltins(tools)
	drafts := action.NewManager(b, records, memories, time.Minute, logger)
	t.Cleanup(drafts.Close)

	orch := orchestrator.New(orchestrator.Deps{
		Bus:      b,
		Router:   router.New(router.DefaultTriggers(), router.AgentGeneral),
		Executor: agent.NewExecutor(b, time.Second, logger),
		Drafts:   drafts,
		Memories: memories,
		Cache:    cache.New[map[string]any]("results", 100, time.Minute),
		Tools:    tools,
		Logger:   logger,
	})
	orch.Register(agent.NewMemoryAgent())
	orch.Register(agent.NewNavigatorAgent())
	orch.Register(agent.NewAnalystAgent())
	orch.Register(agent.NewGeneralAgent())

	jwtMgr, err := auth.NewJWTManager("", "", time.Hour)
	require.NoError(t, err)
	keyHash, err := auth.HashAPIKey(testAPIKey)
	require.NoError(t, err)

	srv := New(Config{
		Orchestrator:        orch,
		Memories:            memories,
		Drafts:              drafts,
		Records:             records,
		JWTMgr:              jwtMgr,
		Logger:              logger,
		OwnerKeyHash:        keyHash,
		OwnerID:             testOwnerID,
		Version:             "test",
		MaxRequestBodyBytes: 1 << 20,
		OpenAPISpec:         []byte("openapi: 3.1.0\n"),
	})

	token, _, err := jwtMgr.IssueToken(testOwnerID)
	require.NoError(t, err)

	return &testServer{
		handler:  srv.Handler(),
		memories: memories,
		records:  records,
		token:    token,
	}
}

func (ts *testServer) do(t *testing.T, method, path string, body any, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if authed {
		req.Header.Set("Authorization", "Bearer "+ts.token)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var envelope struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope.Data
}

func TestAuthToken_Exchange(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/auth/token", map[string]any{"api_key": testAPIKey}, false)
	require.Equal(t, http.StatusOK, rec.Code)

	data := decodeData(t, rec)
	assert.NotEmpty(t, data["token"])
	assert.Equal(t, testOwnerID, data["owner_id"])
}

func TestAuthToken_WrongKey(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/auth/token", map[string]any{"api_key": "wrong"}, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuth_MissingToken(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/v1/requests", map[string]any{"prompt": "hi"}, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestAuth_GarbageToken(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/memories", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequests_EndToEnd(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/v1/requests",
		map[string]any{"prompt": "Remember that the demo is on Friday"}, true)
	require.Equal(t, http.StatusOK, rec.Code)

	data := decodeData(t, rec)
	prov, ok := data["provenance"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, router.AgentMemory, prov["agent_id"])
	assert.Equal(t, 1, ts.memories.Summary(testOwnerID).TotalItems)
}

func TestRequests_EmptyPromptIsBadRequest(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/v1/requests", map[string]any{"prompt": ""}, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRequests_UnknownFieldRejected(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/v1/requests",
		map[string]any{"prompt": "hi", "owner_id": "mallory"}, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConfirmations_ForgetFlow(t *testing.T) {
	ts := newTestServer(t)

	ts.do(t, http.MethodPost, "/v1/requests",
		map[string]any{"prompt": "Remember that the wifi password is hunter2"}, true)

	rec := ts.do(t, http.MethodPost, "/v1/requests",
		map[string]any{"prompt": "forget the wifi password"}, true)
	require.Equal(t, http.StatusOK, rec.Code)

	data := decodeData(t, rec)
	draftsRaw, ok := data["action_drafts"].([]any)
	require.True(t, ok)
	require.Len(t, draftsRaw, 1)
	token := draftsRaw[0].(map[string]any)["token"].(string)
	require.NotEmpty(t, token)

	rec = ts.do(t, http.MethodPost, "/v1/confirmations",
		map[string]any{"token": token, "approve": true}, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeData(t, rec)["applied"])
	assert.Equal(t, 0, ts.memories.Summary(testOwnerID).TotalItems)

	// Spent tokens read as unknown.
	rec = ts.do(t, http.MethodPost, "/v1/confirmations",
		map[string]any{"token": token, "approve": true}, true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMemories_ListAndSummary(t *testing.T) {
	ts := newTestServer(t)
	ts.memories.Add(testOwnerID, "I prefer dark mode", "", nil)
	ts.memories.Add(testOwnerID, "The meeting is at 3pm", "", nil)
	ts.memories.Add("someone-else", "not yours", "", nil)

	rec := ts.do(t, http.MethodGet, "/v1/memories", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), decodeData(t, rec)["count"])

	rec = ts.do(t, http.MethodGet, "/v1/memories?q=dark+mode", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decodeData(t, rec)["count"])

	rec = ts.do(t, http.MethodGet, "/v1/memories/summary", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), decodeData(t, rec)["total_items"])
}

func TestMemories_Delete(t *testing.T) {
	ts := newTestServer(t)
	item := ts.memories.Add(testOwnerID, "delete me", "", nil)

	rec := ts.do(t, http.MethodDelete, "/v1/memories/"+item.ID.String(), nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, ts.memories.Summary(testOwnerID).TotalItems)

	rec = ts.do(t, http.MethodDelete, "/v1/memories/"+item.ID.String(), nil, true)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodDelete, "/v1/memories/not-a-uuid", nil, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDiagnostics_EventsAndStats(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodPost, "/v1/requests", map[string]any{"prompt": "go to settings"}, true)

	rec := ts.do(t, http.MethodGet, "/v1/diagnostics/events?event=request:routed", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decodeData(t, rec)["count"])

	rec = ts.do(t, http.MethodGet, "/v1/diagnostics/events?since=bogus", nil, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodGet, "/v1/diagnostics/stats", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeData(t, rec)
	assert.Contains(t, data, "router")
	assert.Contains(t, data, "cache")
	assert.Equal(t, float64(0), data["drafts_open"])
}

func TestHealth_NoAuthRequired(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/health", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeData(t, rec)
	assert.Equal(t, "ok", data["status"])
	assert.Equal(t, "test", data["version"])
}

func TestOpenAPISpec_ServedWithoutAuth(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/openapi.yaml", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/yaml", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "openapi:")
}

func TestRequestID_EchoedAndGenerated(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "fixed-id")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	assert.Equal(t, "fixed-id", rec.Header().Get("X-Request-ID"))

	rec2 := ts.do(t, http.MethodGet, "/health", nil, false)
	assert.NotEmpty(t, rec2.Header().Get("X-Request-ID"))
}
