package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pathakanu/pillMemo/internal/model"
	"github.com/pathakanu/pillMemo/internal/reminder"
	"github.com/sirupsen/logrus"
)

// ReminderStore is the subset of the reminder store used by the HTTP surface.
type ReminderStore interface {
	Create(ctx context.Context, r *model.Reminder) error
	FindByID(ctx context.Context, id uint) (*model.Reminder, error)
	ListByOwner(ctx context.Context, ownerID string) ([]model.Reminder, error)
	ListPendingByDestination(ctx context.Context, destination string) ([]model.Reminder, error)
}

// Handler serves reminder intake and the inbound WhatsApp webhook.
type Handler struct {
	store ReminderStore
	loc   *time.Location
	log   logrus.FieldLogger
}

// NewHandler creates a handler. Times in webhook replies are rendered in loc.
func NewHandler(store ReminderStore, loc *time.Location, log logrus.FieldLogger) *Handler {
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{
		store: store,
		loc:   loc,
		log:   log.WithField("component", "api"),
	}
}

// NewRouter wires all routes on a fresh gin engine.
func NewRouter(h *Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(h.log, "/healthz"))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.POST("/twilio/webhook", h.IncomingMessage)

	h.RegisterRoutes(router.Group("/api/v1"))
	return router
}

// RegisterRoutes mounts the reminder endpoints under router.
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	reminders := router.Group("/reminders")
	{
		reminders.POST("", h.CreateReminder)
		reminders.GET("", h.ListReminders)
		reminders.GET("/:id", h.GetReminder)
	}
}

// CreateReminder validates and stores a new pending reminder.
func (h *Handler) CreateReminder(c *gin.Context) {
	var req CreateReminderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.WithError(err).Warn("request validation failed")
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
			Field:   bindErrorField(err),
		})
		return
	}

	r, err := req.toReminder()
	if err != nil {
		h.handleError(c, err)
		return
	}

	if err := h.store.Create(c.Request.Context(), r); err != nil {
		h.handleError(c, err)
		return
	}

	h.log.WithFields(logrus.Fields{
		"reminder_id":    r.ID,
		"owner_id":       r.OwnerID,
		"scheduled_time": r.ScheduledTime,
	}).Info("reminder created")
	c.JSON(http.StatusCreated, r)
}

// ListReminders returns every reminder of the owner given by the owner_id query parameter.
func (h *Handler) ListReminders(c *gin.Context) {
	ownerID := c.Query("owner_id")
	if ownerID == "" {
		h.handleError(c, &ValidationError{Field: "owner_id", Message: "owner_id query parameter is required"})
		return
	}

	reminders, err := h.store.ListByOwner(c.Request.Context(), ownerID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	if reminders == nil {
		reminders = []model.Reminder{}
	}

	c.JSON(http.StatusOK, RemindersResponse{Reminders: reminders, Count: len(reminders)})
}

// GetReminder returns a single reminder by id.
func (h *Handler) GetReminder(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		h.handleError(c, &ValidationError{Field: "id", Message: "id must be a positive integer"})
		return
	}

	r, err := h.store.FindByID(c.Request.Context(), uint(id))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *Handler) handleError(c *gin.Context, err error) {
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: validationErr.Message,
			Field:   validationErr.Field,
		})
		return
	}

	if errors.Is(err, reminder.ErrReminderNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "reminder not found",
		})
		return
	}

	h.log.WithError(err).WithField("path", c.Request.URL.Path).Error("request failed")
	c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "an internal error occurred",
	})
}

func requestLogger(log logrus.FieldLogger, skipPaths ...string) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		if _, ok := skip[c.Request.URL.Path]; ok {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		log.WithFields(logrus.Fields{
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status":      c.Writer.Status(),
			"duration":    time.Since(start).String(),
			"remote_addr": c.ClientIP(),
		}).Info("request completed")
	}
}
