package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"classroll/internal/school"
)

// ---------- Users ----------

func (h *Handler) ListUsers(c *gin.Context) {
	users, err := h.school.ListUsers(c.Request.Context(), c.Query("role"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

func (h *Handler) GetUser(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	u, err := h.school.GetUser(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *Handler) CreateUser(c *gin.Context) {
	var in school.UserInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	u, err := h.school.CreateUser(c.Request.Context(), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, u)
}

// UpdateUser replaces every editable field of a user.
func (h *Handler) UpdateUser(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var in school.UserInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	u, err := h.school.UpdateUser(c.Request.Context(), id, in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *Handler) DeleteUser(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.school.DeleteUser(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ---------- Classes ----------

func (h *Handler) ListClasses(c *gin.Context) {
	classes, err := h.school.ListClasses(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, classes)
}

func (h *Handler) GetClass(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	cl, err := h.school.GetClass(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cl)
}

func (h *Handler) CreateClass(c *gin.Context) {
	var in school.ClassInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	cl, err := h.school.CreateClass(c.Request.Context(), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, cl)
}

// UpdateClass replaces every editable field of a class, members included.
func (h *Handler) UpdateClass(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var in school.ClassInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	cl, err := h.school.UpdateClass(c.Request.Context(), id, in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cl)
}

func (h *Handler) DeleteClass(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.school.DeleteClass(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) ClassRoster(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	r, err := h.school.ClassRoster(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *Handler) ClassStudents(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	users, err := h.school.ClassStudents(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

func (h *Handler) ClassTeachers(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	users, err := h.school.ClassTeachers(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}
