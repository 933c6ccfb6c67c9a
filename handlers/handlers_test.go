package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"taskhook/models"
	"taskhook/store"
	"taskhook/tasks"
	"taskhook/webhook"
)

var testNow = time.Date(2026, 2, 25, 12, 0, 0, 0, time.UTC)

type fakeNotifier struct {
	res   models.WebhookResult
	calls int
}

func (n *fakeNotifier) NotifyTaskCreated(context.Context, models.Task) models.WebhookResult {
	n.calls++
	return n.res
}

type fakeStatus struct{ st models.WebhookStatus }

func (f fakeStatus) Status(context.Context) models.WebhookStatus { return f.st }

type testServer struct {
	router   *gin.Engine
	store    *store.SQLiteStore
	notifier *fakeNotifier
}

func newTestServer(t *testing.T, secret string) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st, err := store.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "tasks.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = st.Close() })

	logger := log.New(io.Discard, "", 0)
	n := &fakeNotifier{res: models.WebhookResult{Success: true, Data: "ok"}}
	r := NewRouter(Deps{
		Tasks:   tasks.NewService(st, n, nil, logger),
		Webhook: fakeStatus{st: models.WebhookStatus{Success: true, Status: "active"}},
		Store:   st,
		Secret:  secret,
		Logger:  logger,
		Now:     func() time.Time { return testNow },
	})
	return &testServer{router: r, store: st, notifier: n}
}

func (s *testServer) do(t *testing.T, method, path, body string, headers ...string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var out map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode %s %s: %v (%s)", method, path, err, rec.Body.String())
		}
	}
	return rec, out
}

func TestCreateAndListTasks(t *testing.T) {
	s := newTestServer(t, "")

	rec, out := s.do(t, http.MethodPost, "/api/tasks", `{"title":"Edit video","description":"cut intro"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	task := out["task"].(map[string]any)
	if task["title"] != "Edit video" || task["completed"] != false {
		t.Fatalf("unexpected task %v", task)
	}
	if wh := out["webhook"].(map[string]any); wh["success"] != true {
		t.Fatalf("unexpected webhook result %v", wh)
	}
	if s.notifier.calls != 1 {
		t.Fatalf("notifier calls=%d", s.notifier.calls)
	}

	rec, out = s.do(t, http.MethodGet, "/api/tasks", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if list := out["tasks"].([]any); len(list) != 1 {
		t.Fatalf("expected 1 task, got %d", len(list))
	}
}

func TestCreateTask_WebhookFailureStillCreates(t *testing.T) {
	s := newTestServer(t, "")
	s.notifier.res = models.WebhookResult{Success: false, Error: "webhook failed with status: 500"}

	rec, out := s.do(t, http.MethodPost, "/api/tasks", `{"title":"Publish"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	wh := out["webhook"].(map[string]any)
	if wh["success"] != false || wh["error"] != "webhook failed with status: 500" {
		t.Fatalf("unexpected webhook result %v", wh)
	}
}

func TestCreateTask_Validation(t *testing.T) {
	s := newTestServer(t, "")

	rec, out := s.do(t, http.MethodPost, "/api/tasks", `{"title":"   "}`)
	if rec.Code != http.StatusBadRequest || out["error"] != "Title is required" {
		t.Fatalf("got %d %v", rec.Code, out)
	}
	rec, _ = s.do(t, http.MethodPost, "/api/tasks", `not json`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if s.notifier.calls != 0 {
		t.Fatalf("notifier must not be called on rejected input")
	}
}

func TestPatchAndDeleteTask(t *testing.T) {
	s := newTestServer(t, "")

	_, out := s.do(t, http.MethodPost, "/api/tasks", `{"title":"Write script"}`)
	id := out["task"].(map[string]any)["id"].(string)

	rec, out := s.do(t, http.MethodPatch, "/api/tasks/"+id, `{"completed":true}`)
	if rec.Code != http.StatusOK || out["task"].(map[string]any)["completed"] != true {
		t.Fatalf("got %d %v", rec.Code, out)
	}
	rec, out = s.do(t, http.MethodPatch, "/api/tasks/"+id, `{"completed":false}`)
	if rec.Code != http.StatusOK || out["task"].(map[string]any)["completed"] != false {
		t.Fatalf("double toggle should restore, got %d %v", rec.Code, out)
	}

	rec, _ = s.do(t, http.MethodPatch, "/api/tasks/"+id, `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty patch: expected 400, got %d", rec.Code)
	}
	rec, out = s.do(t, http.MethodPatch, "/api/tasks/missing", `{"title":"x"}`)
	if rec.Code != http.StatusNotFound || out["error"] != "Task not found" {
		t.Fatalf("got %d %v", rec.Code, out)
	}

	for i := 0; i < 2; i++ {
		rec, out = s.do(t, http.MethodDelete, "/api/tasks/"+id, "")
		if rec.Code != http.StatusOK || out["success"] != true {
			t.Fatalf("delete #%d: got %d %v", i+1, rec.Code, out)
		}
	}
}

func TestWebhook_UpsertByTaskID(t *testing.T) {
	s := newTestServer(t, "")

	rec, out := s.do(t, http.MethodPost, "/api/webhook", `{"task_id":"abc-123","title":"Edit video"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if out["operation"] != "created" || out["message"] != "Task created successfully from webhook" {
		t.Fatalf("unexpected body %v", out)
	}
	task := out["task"].(map[string]any)
	if task["id"] != "abc-123" || task["description"] != "Task created via webhook" {
		t.Fatalf("unexpected task %v", task)
	}

	rec, out = s.do(t, http.MethodPost, "/api/webhook", `{"task_id":"abc-123","title":"Edit video v2","completed":true}`)
	if rec.Code != http.StatusOK || out["operation"] != "updated" {
		t.Fatalf("got %d %v", rec.Code, out)
	}

	list, err := s.store.ListTasks(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].Title != "Edit video v2" || !list[0].Completed {
		t.Fatalf("unexpected rows %+v", list)
	}
	if s.notifier.calls != 0 {
		t.Fatalf("inbound webhooks must not trigger outbound ones")
	}
}

func TestWebhook_CreatesWithoutTaskID(t *testing.T) {
	s := newTestServer(t, "")

	rec, out := s.do(t, http.MethodPost, "/api/webhook", `{}`)
	if rec.Code != http.StatusOK || out["operation"] != "created" {
		t.Fatalf("got %d %v", rec.Code, out)
	}
	if title := out["task"].(map[string]any)["title"]; title != "Task from n8n" {
		t.Fatalf("title=%v", title)
	}

	rec, _ = s.do(t, http.MethodPost, "/api/webhook", `["not","an","object"]`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestWebhook_Info(t *testing.T) {
	s := newTestServer(t, "")

	rec, out := s.do(t, http.MethodGet, "/api/webhook", "")
	if rec.Code != http.StatusOK || out["status"] != "healthy" || out["message"] != "Webhook endpoint is active" {
		t.Fatalf("got %d %v", rec.Code, out)
	}
	rec, out = s.do(t, http.MethodGet, "/api/test-webhook", "")
	if rec.Code != http.StatusOK || out["message"] != "Test webhook endpoint" || out["usage"] == "" {
		t.Fatalf("got %d %v", rec.Code, out)
	}
}

func TestTestWebhook_UsesSimulationDefaults(t *testing.T) {
	s := newTestServer(t, "")

	rec, out := s.do(t, http.MethodPost, "/api/test-webhook", `{"title":""}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	data := out["webhookData"].(map[string]any)
	if data["title"] != "Test Task from n8n" || data["description"] != "This is a test task created via webhook simulation" {
		t.Fatalf("unexpected webhookData %v", data)
	}
	if out["operation"] != "created" {
		t.Fatalf("operation=%v", out["operation"])
	}
}

func TestWebhookStatus(t *testing.T) {
	s := newTestServer(t, "")

	rec, out := s.do(t, http.MethodGet, "/api/webhook-status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	st := out["webhook_status"].(map[string]any)
	if out["success"] != true || st["status"] != "active" {
		t.Fatalf("unexpected body %v", out)
	}
}

func TestProcessedData(t *testing.T) {
	s := newTestServer(t, "")
	s.do(t, http.MethodPost, "/api/webhook", `{"task_id":"abc-123"}`)

	rec, out := s.do(t, http.MethodPost, "/api/data", `{"task_id":"abc-123","processed_data":{"foo":1}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	data := out["data"].(map[string]any)
	if data["status"] != "processed" || data["processed_at"] == nil {
		t.Fatalf("unexpected data %v", data)
	}
	if pd := data["processed_data"].(map[string]any); pd["foo"] != float64(1) {
		t.Fatalf("processed_data=%v", pd)
	}

	rec, out = s.do(t, http.MethodGet, "/api/data?task_id=abc-123", "")
	if rec.Code != http.StatusOK || out["data"].(map[string]any)["status"] != "processed" {
		t.Fatalf("got %d %v", rec.Code, out)
	}
}

func TestProcessedData_Errors(t *testing.T) {
	s := newTestServer(t, "")

	rec, out := s.do(t, http.MethodPost, "/api/data", `{"task_id":"nope","processed_data":{}}`)
	if rec.Code != http.StatusNotFound || out["error"] != "Task not found" {
		t.Fatalf("got %d %v", rec.Code, out)
	}
	rec, out = s.do(t, http.MethodPost, "/api/data", `{"task_id":"abc-123"}`)
	if rec.Code != http.StatusBadRequest || out["error"] != "Missing required fields: task_id and processed_data" {
		t.Fatalf("got %d %v", rec.Code, out)
	}
	rec, out = s.do(t, http.MethodGet, "/api/data", "")
	if rec.Code != http.StatusBadRequest || out["error"] != "task_id parameter is required" {
		t.Fatalf("got %d %v", rec.Code, out)
	}
	rec, _ = s.do(t, http.MethodGet, "/api/data?task_id=nope", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestWebhook_SignatureRequiredWhenSecretSet(t *testing.T) {
	s := newTestServer(t, "s3cret")
	body := `{"task_id":"abc-123"}`
	ts := strconv.FormatInt(testNow.Unix(), 10)

	rec, _ := s.do(t, http.MethodPost, "/api/webhook", body)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unsigned: expected 400, got %d", rec.Code)
	}

	rec, _ = s.do(t, http.MethodPost, "/api/webhook", body,
		webhook.TimestampHeader, ts,
		webhook.SignatureHeader, webhook.Sign("wrong", ts, []byte(body)))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad signature: expected 401, got %d", rec.Code)
	}

	rec, out := s.do(t, http.MethodPost, "/api/webhook", body,
		webhook.TimestampHeader, ts,
		webhook.SignatureHeader, webhook.Sign("s3cret", ts, []byte(body)))
	if rec.Code != http.StatusOK || out["operation"] != "created" {
		t.Fatalf("signed: got %d %v", rec.Code, out)
	}

	// the browser simulation endpoint stays open
	rec, _ = s.do(t, http.MethodPost, "/api/test-webhook", `{}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("test-webhook: expected 200, got %d", rec.Code)
	}
}

func TestRecovery_ReturnsInternalError(t *testing.T) {
	s := newTestServer(t, "")
	s.router.GET("/boom", func(c *gin.Context) { panic("kaboom") })

	rec, out := s.do(t, http.MethodGet, "/boom", "")
	if rec.Code != http.StatusInternalServerError || out["error"] != "Internal server error" {
		t.Fatalf("got %d %v", rec.Code, out)
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected request id header")
	}
}

func TestPagesAndHealth(t *testing.T) {
	s := newTestServer(t, "")

	for _, path := range []string{"/", "/webhook-test"} {
		rec, _ := s.do(t, http.MethodGet, path, "")
		if rec.Code != http.StatusOK || !bytes.Contains(rec.Body.Bytes(), []byte("<!DOCTYPE html>")) {
			t.Fatalf("%s: got %d", path, rec.Code)
		}
	}
	for _, path := range []string{"/healthz", "/readyz"} {
		rec, out := s.do(t, http.MethodGet, path, "")
		if rec.Code != http.StatusOK || out["status"] != "ok" {
			t.Fatalf("%s: got %d %v", path, rec.Code, out)
		}
	}
}

func TestWebhook_SuppliedIDStoredVerbatim(t *testing.T) {
	s := newTestServer(t, "")

	rec, out := s.do(t, http.MethodPost, "/api/webhook", `{"title":"A","task_id":"  abc-123  "}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if id := out["task"].(map[string]any)["id"]; id != "  abc-123  " {
		t.Fatalf("stored id=%q", id)
	}

	rec, out = s.do(t, http.MethodPost, "/api/webhook", `{"title":"B","task_id":"  abc-123  "}`)
	if rec.Code != http.StatusOK || out["operation"] != "updated" {
		t.Fatalf("second upsert: got %d %v", rec.Code, out)
	}
	rec, _ = s.do(t, http.MethodPost, "/api/data", `{"task_id":"  abc-123  ","processed_data":{"ok":true}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("data with exact id: expected 200, got %d", rec.Code)
	}
}

func TestProcessedData_RejectsEmptyValues(t *testing.T) {
	s := newTestServer(t, "")
	s.do(t, http.MethodPost, "/api/webhook", `{"task_id":"abc-123"}`)

	for _, empty := range []string{`0`, `false`, `""`} {
		rec, _ := s.do(t, http.MethodPost, "/api/data", `{"task_id":"abc-123","processed_data":`+empty+`}`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("processed_data=%s: expected 400, got %d", empty, rec.Code)
		}
	}
	task, err := s.store.GetTask(context.Background(), "abc-123")
	if err != nil {
		t.Fatal(err)
	}
	if task.Status == models.StatusProcessed {
		t.Fatalf("task must not be marked processed")
	}
}
