package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"sitescout/internal/auth"
	"sitescout/internal/config"
	"sitescout/internal/db"
	"sitescout/internal/explore"
	"sitescout/internal/task"
)

type explorerStub struct {
	payload explore.Payload
	calls   int
}

func (e *explorerStub) Explore(_ context.Context, req explore.Request, _ func(explore.Event)) explore.Payload {
	e.calls++
	payload := e.payload
	payload.Metadata.StartURL = req.StartURL
	return payload
}

type verifierStub struct {
	identities map[string]auth.Identity
}

func (v verifierStub) Verify(_ context.Context, token string) (auth.Identity, error) {
	identity, ok := v.identities[token]
	if !ok {
		return auth.Identity{}, errors.New("validate id token: invalid signature")
	}
	return identity, nil
}

type testServer struct {
	router   http.Handler
	store    task.Store
	explorer *explorerStub
}

func newTestServer(t *testing.T, authRequired bool) testServer {
	t.Helper()
	ctx := context.Background()
	database, err := db.Open(ctx, config.Config{DatabaseURL: ":memory:"})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })
	if err := db.Migrate(ctx, database); err != nil {
		t.Fatalf("apply schema: %v", err)
	}

	store := task.NewSQLStore(database)
	explorer := &explorerStub{payload: explore.Payload{
		Data:     json.RawMessage(`["Button","Card"]`),
		Metadata: explore.Metadata{Confidence: 9, SatisfiesGoal: true, Strategy: explore.StrategyBatch, Timestamp: time.Unix(0, 0)},
	}}
	service := task.NewService(store, explorer, task.ServiceConfig{MaxPages: 15})
	verifier := verifierStub{identities: map[string]auth.Identity{
		"ana-token": {Subject: "1", Email: "ana@example.com"},
		"bo-token":  {Subject: "2", Email: "bo@example.com"},
	}}

	cfg := config.Config{AllowedOrigins: []string{"http://localhost:3000"}, AuthRequired: authRequired}
	handler := NewHandler(store, service, verifier, authRequired, nil)
	return testServer{router: NewRouter(cfg, handler, nil), store: store, explorer: explorer}
}

func (s testServer) do(t *testing.T, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	s.router.ServeHTTP(resp, req)
	return resp
}

func decodeBody(t *testing.T, resp *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", resp.Body.String(), err)
	}
	return out
}

func createTask(t *testing.T, s testServer, token string) string {
	t.Helper()
	resp := s.do(t, http.MethodPost, "/create-task/", `{"url":"https://example.com","goal":"list components"}`, token)
	if resp.Code != http.StatusOK {
		t.Fatalf("create task: status %d (%s)", resp.Code, resp.Body.String())
	}
	body := decodeBody(t, resp)
	id, _ := body["task_id"].(string)
	if body["endpoint"] != "/run-task/"+id {
		t.Fatalf("unexpected endpoint: %v", body["endpoint"])
	}
	return id
}

func TestTaskLifecycle(t *testing.T) {
	s := newTestServer(t, false)
	id := createTask(t, s, "")

	status := decodeBody(t, s.do(t, http.MethodGet, "/task-status/"+id, "", ""))
	if status["status"] != "created" || status["result"] != nil {
		t.Fatalf("unexpected initial status: %v", status)
	}

	resp := s.do(t, http.MethodGet, "/run-task/"+id, "", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("run task: status %d (%s)", resp.Code, resp.Body.String())
	}
	run := decodeBody(t, resp)
	metadata, _ := run["metadata"].(map[string]any)
	if metadata["start_url"] != "https://example.com" || run["data"] == nil {
		t.Fatalf("unexpected run payload: %v", run)
	}

	status = decodeBody(t, s.do(t, http.MethodGet, "/task-status/"+id, "", ""))
	if status["status"] != "completed" || status["result"] == nil || status["last_ran"] == nil {
		t.Fatalf("unexpected status after run: %v", status)
	}

	resp = s.do(t, http.MethodPatch, "/update-task/"+id, `{"goal":"list hooks"}`, "")
	if resp.Code != http.StatusOK {
		t.Fatalf("update task: status %d (%s)", resp.Code, resp.Body.String())
	}
	if msg := decodeBody(t, resp)["message"]; msg != "Task updated. Status set to 'modified'. Result cleared." {
		t.Fatalf("unexpected update message: %v", msg)
	}

	status = decodeBody(t, s.do(t, http.MethodGet, "/task-status/"+id, "", ""))
	if status["status"] != "modified" || status["result"] != nil || status["goal"] != "list hooks" {
		t.Fatalf("unexpected status after update: %v", status)
	}

	resp = s.do(t, http.MethodDelete, "/delete-task/"+id, "", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("delete task: status %d (%s)", resp.Code, resp.Body.String())
	}
	if resp = s.do(t, http.MethodGet, "/task-status/"+id, "", ""); resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", resp.Code)
	}
}

func TestCreateTaskValidation(t *testing.T) {
	s := newTestServer(t, false)

	tests := []struct {
		name string
		body string
	}{
		{name: "missing goal", body: `{"url":"https://example.com"}`},
		{name: "blank url", body: `{"url":"  ","goal":"x"}`},
		{name: "malformed", body: `{"url":`},
		{name: "unknown field", body: `{"url":"https://example.com","goal":"x","depth":3}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp := s.do(t, http.MethodPost, "/create-task/", tc.body, "")
			if resp.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d (%s)", resp.Code, resp.Body.String())
			}
			errBody, _ := decodeBody(t, resp)["error"].(map[string]any)
			if errBody["expected"] == nil {
				t.Fatalf("expected input hint in error: %v", errBody)
			}
		})
	}
}

func TestUpdateTaskErrors(t *testing.T) {
	s := newTestServer(t, false)
	id := createTask(t, s, "")

	if resp := s.do(t, http.MethodPatch, "/update-task/"+id, `{}`, ""); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty update, got %d", resp.Code)
	}
	if resp := s.do(t, http.MethodPatch, "/update-task/missing", `{"goal":"x"}`, ""); resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown task, got %d", resp.Code)
	}

	resp := s.do(t, http.MethodPatch, "/update-task/"+id, `{"url":"https://example.org"}`, "")
	if resp.Code != http.StatusOK {
		t.Fatalf("update: %d (%s)", resp.Code, resp.Body.String())
	}
	if msg := decodeBody(t, resp)["message"]; msg != "Task updated." {
		t.Fatalf("fresh task should stay created: %v", msg)
	}
}

func TestRunTaskConflictsWhileRunning(t *testing.T) {
	s := newTestServer(t, false)
	id := createTask(t, s, "")
	if err := s.store.MarkRunning(context.Background(), id); err != nil {
		t.Fatalf("mark running: %v", err)
	}

	if resp := s.do(t, http.MethodGet, "/run-task/"+id, "", ""); resp.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d (%s)", resp.Code, resp.Body.String())
	}
	if s.explorer.calls != 0 {
		t.Fatal("explorer should not run for a task that is already running")
	}
	if resp := s.do(t, http.MethodGet, "/run-task/unknown", "", ""); resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown task, got %d", resp.Code)
	}
}

func TestAuthScopesTasksToCaller(t *testing.T) {
	s := newTestServer(t, true)

	if resp := s.do(t, http.MethodPost, "/create-task/", `{"url":"https://example.com","goal":"x"}`, ""); resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.Code)
	}
	if resp := s.do(t, http.MethodPost, "/create-task/", `{"url":"https://example.com","goal":"x"}`, "forged"); resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for invalid token, got %d", resp.Code)
	}

	id := createTask(t, s, "ana-token")
	if resp := s.do(t, http.MethodGet, "/task-status/"+id, "", "ana-token"); resp.Code != http.StatusOK {
		t.Fatalf("owner should see task, got %d", resp.Code)
	}
	if resp := s.do(t, http.MethodGet, "/task-status/"+id, "", "bo-token"); resp.Code != http.StatusNotFound {
		t.Fatalf("other caller should get 404, got %d", resp.Code)
	}
	if resp := s.do(t, http.MethodDelete, "/delete-task/"+id, "", "bo-token"); resp.Code != http.StatusNotFound {
		t.Fatalf("other caller should not delete, got %d", resp.Code)
	}

	if resp := s.do(t, http.MethodGet, "/healthz", "", ""); resp.Code != http.StatusOK {
		t.Fatalf("healthz should not require auth, got %d", resp.Code)
	}
}
