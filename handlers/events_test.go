package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"

	"taskhook/events"
	"taskhook/models"
	"taskhook/store"
	"taskhook/tasks"
)

func TestEvents_CreatePublishesToWebsocket(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger := log.New(io.Discard, "", 0)

	st, err := store.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "tasks.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	hub := events.NewHub(logger)
	hub.Start()
	defer hub.Stop()

	router := NewRouter(Deps{
		Tasks:   tasks.NewService(st, &fakeNotifier{}, hub, logger),
		Webhook: fakeStatus{st: models.WebhookStatus{Success: true, Status: "active"}},
		Store:   st,
		Events:  hub.Handler,
		Logger:  logger,
	})
	srv := httptest.NewServer(router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/api/events", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	next := func() events.Message {
		t.Helper()
		_, data, err := conn.Read(ctx)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var msg events.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return msg
	}
	if msg := next(); msg.Type != events.MessageTypeConnected {
		t.Fatalf("expected welcome, got %s", msg.Type)
	}

	resp, err := http.Post(srv.URL+"/api/tasks", "application/json", strings.NewReader(`{"title":"Edit video"}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	msg := next()
	if msg.Type != events.MessageTypeTaskCreated {
		t.Fatalf("type=%s", msg.Type)
	}
	var task models.Task
	if err := json.Unmarshal(msg.Data, &task); err != nil || task.Title != "Edit video" {
		t.Fatalf("data=%s err=%v", msg.Data, err)
	}
}
