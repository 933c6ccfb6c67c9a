// Package handlers exposes the task API, the automation webhooks and the
// browser pages over gin.
package handlers

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"taskhook/models"
	"taskhook/tasks"
)

// StatusChecker checks the outbound automation endpoint.
type StatusChecker interface {
	Status(ctx context.Context) models.WebhookStatus
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Tasks   *tasks.Service
	Webhook StatusChecker
	Store   Pinger
	// Events serves the live change websocket. Optional.
	Events gin.HandlerFunc
	// Secret, when set, requires signed requests on the machine-facing
	// inbound endpoints.
	Secret string
	Logger *log.Logger
	Now    func() time.Time
}

type Handler struct {
	deps Deps
	log  *log.Logger
	now  func() time.Time
}

func New(deps Deps) *Handler {
	h := &Handler{deps: deps, log: deps.Logger, now: deps.Now}
	if h.log == nil {
		h.log = log.Default()
	}
	if h.now == nil {
		h.now = func() time.Time { return time.Now().UTC() }
	}
	return h
}

// NewRouter builds the engine with request ids, access logging and panic recovery.
func NewRouter(deps Deps) *gin.Engine {
	h := New(deps)

	r := gin.New()
	r.Use(requestID(), gin.Logger(), gin.CustomRecovery(h.recovered))
	h.Register(r)
	return r
}

func (h *Handler) Register(r *gin.Engine) {
	r.GET("/", h.indexPage)
	r.GET("/webhook-test", h.webhookTestPage)
	r.GET("/healthz", h.healthz)
	r.GET("/readyz", h.readyz)

	api := r.Group("/api")

	// Task API
	api.GET("/tasks", h.listTasks)
	api.POST("/tasks", h.createTask)
	api.PATCH("/tasks/:id", h.updateTask)
	api.DELETE("/tasks/:id", h.deleteTask)

	// Automation bridge
	api.POST("/webhook", h.receiveWebhook)
	api.GET("/webhook", h.webhookInfo)
	api.POST("/test-webhook", h.testWebhook)
	api.GET("/test-webhook", h.testWebhookInfo)
	api.GET("/webhook-status", h.webhookStatus)
	api.POST("/data", h.saveProcessedData)
	api.GET("/data", h.getProcessedData)

	if h.deps.Events != nil {
		api.GET("/events", h.deps.Events)
	}
}

const requestIDHeader = "X-Request-Id"

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader(requestIDHeader)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Set(requestIDHeader, reqID)
		c.Header(requestIDHeader, reqID)
		c.Next()
	}
}

func (h *Handler) recovered(c *gin.Context, recovered any) {
	h.log.Printf("req_id=%s panic in %s %s: %v", c.GetString(requestIDHeader), c.Request.Method, c.Request.URL.Path, recovered)
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
}
