package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"classroll/internal/analytics"
	"classroll/internal/apperr"
	"classroll/internal/attendance"
	"classroll/internal/auth"
	"classroll/internal/notify"
	"classroll/internal/queue"
	"classroll/internal/school"
)

// HealthCheck reports whether one dependency is usable.
type HealthCheck func(ctx context.Context) bool

// Deps are the collaborators of the HTTP handlers.
type Deps struct {
	Attendance    *attendance.Service
	School        *school.Service
	Analytics     *analytics.Service
	Notifications notify.Store
	Queue         queue.Queue
	Issuer        auth.Issuer
	// DevTokens enables POST /v1/auth/token, which issues tokens for any known user.
	DevTokens bool
	Checks    map[string]HealthCheck
}

type Handler struct {
	att       *attendance.Service
	school    *school.Service
	analytics *analytics.Service
	notes     notify.Store
	queue     queue.Queue
	issuer    auth.Issuer
	devTokens bool
	checks    map[string]HealthCheck
}

func New(d Deps) *Handler {
	return &Handler{
		att:       d.Attendance,
		school:    d.School,
		analytics: d.Analytics,
		notes:     d.Notifications,
		queue:     d.Queue,
		issuer:    d.Issuer,
		devTokens: d.DevTokens,
		checks:    d.Checks,
	}
}

// ---------- Health ----------

func (h *Handler) Healthz(c *gin.Context) {
	body := gin.H{"status": "ok"}
	status := http.StatusOK
	for name, check := range h.checks {
		ok := check(c.Request.Context())
		body[name] = ok
		if !ok {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}
	}
	c.JSON(status, body)
}

// ---------- Errors ----------

func writeError(c *gin.Context, err error) {
	var ve *apperr.ValidationError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "fields": ve.Fields})
	case errors.Is(err, apperr.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, apperr.ErrStoreUnavailable):
		log.Printf("%s %s: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage unavailable"})
	default:
		log.Printf("%s %s: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func idParam(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		writeError(c, apperr.Invalid(name, "must be a positive integer"))
		return 0, false
	}
	return id, true
}

func intQuery(c *gin.Context, name string) (int, error) {
	v := c.Query(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, apperr.Invalid(name, "must be a non-negative integer")
	}
	return n, nil
}
