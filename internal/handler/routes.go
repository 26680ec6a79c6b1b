package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"classroll/internal/auth"
	"classroll/internal/school"
)

// Register mounts every route on r. guard runs in front of all /v1 routes
// that need a token (authentication first, then rate limiting).
func (h *Handler) Register(r *gin.Engine, guard ...gin.HandlerFunc) {
	r.GET("/healthz", h.Healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if h.devTokens {
		r.POST("/v1/auth/token", h.IssueToken)
	}
	r.POST("/v1/auth/refresh", h.RefreshToken)

	admin := auth.RequireRole(string(school.RoleAdmin))
	staff := auth.RequireRole(string(school.RoleAdmin), string(school.RoleTeacher))

	v1 := r.Group("/v1", guard...)
	{
		v1.GET("/attendance", h.ListAttendance)
		v1.GET("/attendance/summary", h.Summary)
		v1.GET("/attendance/:id", h.GetAttendance)
		v1.GET("/students/:id/attendance", h.StudentAttendance)
		v1.GET("/classes/:id/attendance/:date", h.ClassAttendance)
		v1.PUT("/classes/:id/attendance/:date", staff, h.SaveRoster)

		v1.GET("/classes", h.ListClasses)
		v1.POST("/classes", admin, h.CreateClass)
		v1.GET("/classes/:id", h.GetClass)
		v1.PUT("/classes/:id", admin, h.UpdateClass)
		v1.DELETE("/classes/:id", admin, h.DeleteClass)
		v1.GET("/classes/:id/roster", h.ClassRoster)
		v1.GET("/classes/:id/students", h.ClassStudents)
		v1.GET("/classes/:id/teachers", h.ClassTeachers)

		v1.GET("/users", h.ListUsers)
		v1.POST("/users", admin, h.CreateUser)
		v1.GET("/users/:id", h.GetUser)
		v1.PUT("/users/:id", admin, h.UpdateUser)
		v1.DELETE("/users/:id", admin, h.DeleteUser)

		v1.GET("/analytics", h.Analytics)
		v1.GET("/dashboard", h.Dashboard)

		v1.GET("/notifications", h.ListNotifications)
		v1.POST("/notifications/:id/read", h.MarkNotificationRead)
	}
}
