package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *Handler) Analytics(c *gin.Context) {
	rep, err := h.analytics.Analytics(c.Request.Context(), c.DefaultQuery("range", "week"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rep)
}

func (h *Handler) Dashboard(c *gin.Context) {
	d, err := h.analytics.Dashboard(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// ---------- Notifications ----------

func (h *Handler) ListNotifications(c *gin.Context) {
	items, err := h.notes.List(c.Request.Context(), c.Query("type"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *Handler) MarkNotificationRead(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.notes.MarkRead(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ---------- Tokens ----------

type tokenRequest struct {
	UserID int `json:"user_id" binding:"required,gt=0"`
}

// IssueToken hands out a token pair for an existing user. Only routed when
// dev tokens are enabled.
func (h *Handler) IssueToken(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	u, err := h.school.GetUser(c.Request.Context(), req.UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	pair, err := h.issuer.Issue(u.ID, string(u.Role))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}
	c.JSON(http.StatusCreated, pair)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

func (h *Handler) RefreshToken(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	pair, err := h.issuer.Refresh(req.RefreshToken)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	c.JSON(http.StatusOK, pair)
}
