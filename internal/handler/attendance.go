package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"classroll/internal/apperr"
	"classroll/internal/attendance"
	"classroll/internal/auth"
	"classroll/internal/queue"
)

func (h *Handler) ListAttendance(c *gin.Context) {
	var f attendance.Filter
	var err error
	if f.ClassID, err = intQuery(c, "class_id"); err != nil {
		writeError(c, err)
		return
	}
	if f.StudentID, err = intQuery(c, "student_id"); err != nil {
		writeError(c, err)
		return
	}
	if f.Limit, err = intQuery(c, "limit"); err != nil {
		writeError(c, err)
		return
	}
	f.Date = c.Query("date")
	if f.Date != "" {
		if err := attendance.ValidateDate(f.Date); err != nil {
			writeError(c, err)
			return
		}
	}
	f.From = c.Query("from")
	if f.From != "" {
		if err := attendance.ValidateDate(f.From); err != nil {
			writeError(c, apperr.Invalid("from", "must be YYYY-MM-DD"))
			return
		}
	}
	if s := c.Query("status"); s != "" {
		st, ok := attendance.ParseStatus(s)
		if !ok {
			writeError(c, apperr.Invalid("status", "must be present, absent or late"))
			return
		}
		f.Status = st
	}

	records, err := h.att.List(c.Request.Context(), f)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

func (h *Handler) GetAttendance(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	rec, err := h.att.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *Handler) ClassAttendance(c *gin.Context) {
	classID, ok := idParam(c, "id")
	if !ok {
		return
	}
	records, err := h.att.ByClassAndDate(c.Request.Context(), classID, c.Param("date"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

func (h *Handler) StudentAttendance(c *gin.Context) {
	studentID, ok := idParam(c, "id")
	if !ok {
		return
	}
	records, err := h.att.ByStudent(c.Request.Context(), studentID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

type saveRosterRequest struct {
	Entries []attendance.Entry `json:"entries"`
}

// SaveRoster reconciles one class day. Failures are reported as a single
// retryable error without per-student detail; entries applied before the
// failure stay saved.
func (h *Handler) SaveRoster(c *gin.Context) {
	classID, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req saveRosterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	claims, _ := auth.ClaimsFrom(c)
	date := c.Param("date")

	applied, err := h.att.ReconcileRoster(c.Request.Context(), classID, date, claims.Marker(), req.Entries)
	if len(applied) > 0 {
		h.publishRosterSaved(c.Request.Context(), classID, date)
	}
	if err != nil {
		if apperr.IsValidation(err) {
			writeError(c, err)
			return
		}
		log.Printf("roster save class=%d date=%s failed after %d entries: %v", classID, date, len(applied), err)
		c.JSON(saveFailureStatus(err), gin.H{"error": "save failed, try again"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"class_id": classID, "date": date, "records": applied})
}

func (h *Handler) publishRosterSaved(ctx context.Context, classID int, date string) {
	if h.queue == nil {
		return
	}
	msg, err := queue.NewMessage(queue.TypeRosterSaved, queue.RosterSaved{ClassID: classID, Date: date})
	if err == nil {
		err = h.queue.Publish(ctx, msg)
	}
	if err != nil {
		log.Printf("queue publish failed: %v", err)
	}
}

func saveFailureStatus(err error) int {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (h *Handler) Summary(c *gin.Context) {
	ctx := c.Request.Context()
	if from := c.Query("from"); from != "" {
		start, err := time.Parse(attendance.DateLayout, from)
		if err != nil {
			writeError(c, apperr.Invalid("from", "must be YYYY-MM-DD"))
			return
		}
		sum, err := h.att.Summary(ctx, start)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, sum)
		return
	}
	sum, err := h.att.SummaryForRange(ctx, c.DefaultQuery("range", attendance.RangeWeek))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}
