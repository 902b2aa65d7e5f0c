package main

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"geoattend/internal/attendance"
	"geoattend/internal/auth"
	"geoattend/internal/config"
	"geoattend/internal/location"
	"geoattend/internal/notify"
	"geoattend/internal/schedule"
	"geoattend/internal/session"
)

// statusFor maps the service error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	var validationErr *attendance.ValidationError
	var preconditionErr *attendance.PreconditionError
	var persistenceErr *attendance.PersistenceError
	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest
	case errors.As(err, &preconditionErr):
		return http.StatusNotFound
	case errors.As(err, &persistenceErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func fail(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}

func registerRoutes(r *gin.Engine, cfg config.App, sessions *session.Manager, tracker location.Tracker, notifier notify.Notifier) {
	r.POST("/v1/users/register", func(c *gin.Context) {
		var req struct {
			Email string `json:"email" binding:"required,email"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		userID := "user-" + uuid.NewString()
		tokens, err := auth.Issue(userID, req.Email, cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"user_id":       userID,
			"access_token":  tokens.AccessToken,
			"refresh_token": tokens.RefreshToken,
			"expires_at":    tokens.AccessExp.Unix(),
		})
	})

	authGroup := r.Group("/v1", auth.UserAuth(cfg.JWTSigningKey, cfg.JWTIssuer))

	// sessFor opens (or fetches) the caller's session, replying on failure.
	sessFor := func(c *gin.Context) *session.Session {
		sess, err := sessions.Get(c.Request.Context(), auth.UserID(c))
		if err != nil {
			fail(c, err)
			return nil
		}
		return sess
	}

	authGroup.GET("/me", func(c *gin.Context) {
		claimsAny, _ := c.Get("claims")
		claims, _ := claimsAny.(auth.Claims)
		c.JSON(http.StatusOK, gin.H{"user_id": claims.Subject, "email": claims.Email})
	})

	authGroup.GET("/subjects", func(c *gin.Context) {
		sess := sessFor(c)
		if sess == nil {
			return
		}
		c.JSON(http.StatusOK, gin.H{"subjects": sess.Subjects()})
	})

	authGroup.POST("/subjects", func(c *gin.Context) {
		var req struct {
			Name string `json:"name" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		sess := sessFor(c)
		if sess == nil {
			return
		}
		sub, err := sess.AddSubject(c.Request.Context(), req.Name)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, sub)
	})

	authGroup.DELETE("/subjects/:id", func(c *gin.Context) {
		sess := sessFor(c)
		if sess == nil {
			return
		}
		if err := sess.DeleteSubject(c.Request.Context(), c.Param("id")); err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": c.Param("id")})
	})

	authGroup.GET("/schedule", func(c *gin.Context) {
		sess := sessFor(c)
		if sess == nil {
			return
		}
		c.JSON(http.StatusOK, gin.H{"schedule": sess.Schedule()})
	})

	authGroup.POST("/schedule/:day/slots", func(c *gin.Context) {
		var req struct {
			From      string            `json:"from" binding:"required"`
			To        string            `json:"to" binding:"required"`
			SubjectID string            `json:"subject_id" binding:"required"`
			Location  schedule.Location `json:"location"`
			Exclude   bool              `json:"exclude"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		sess := sessFor(c)
		if sess == nil {
			return
		}
		slot, err := sess.AddSlot(c.Request.Context(), c.Param("day"), req.From, req.To, req.SubjectID, req.Location, req.Exclude)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, slot)
	})

	authGroup.DELETE("/schedule/:day/slots/:id", func(c *gin.Context) {
		sess := sessFor(c)
		if sess == nil {
			return
		}
		if err := sess.DeleteSlot(c.Request.Context(), c.Param("day"), c.Param("id")); err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": c.Param("id")})
	})

	authGroup.GET("/settings", func(c *gin.Context) {
		sess := sessFor(c)
		if sess == nil {
			return
		}
		c.JSON(http.StatusOK, gin.H{"min_attendance_percent": sess.MinAttendancePercent()})
	})

	authGroup.PUT("/settings", func(c *gin.Context) {
		var req struct {
			MinAttendancePercent *int `json:"min_attendance_percent" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		sess := sessFor(c)
		if sess == nil {
			return
		}
		if err := sess.SetMinAttendancePercent(c.Request.Context(), *req.MinAttendancePercent); err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"min_attendance_percent": *req.MinAttendancePercent})
	})

	authGroup.POST("/location", func(c *gin.Context) {
		var req struct {
			Lat      float64 `json:"lat"`
			Lng      float64 `json:"lng"`
			Accuracy float64 `json:"accuracy"`
			Denied   bool    `json:"denied"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		fix := location.Fix{Lat: req.Lat, Lng: req.Lng, Accuracy: req.Accuracy, Denied: req.Denied}
		if err := tracker.Report(c.Request.Context(), auth.UserID(c), fix); err != nil {
			log.Printf("fix report failed: %v", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "location report failed"})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"tracking": true})
	})

	authGroup.GET("/records", func(c *gin.Context) {
		sess := sessFor(c)
		if sess == nil {
			return
		}
		c.JSON(http.StatusOK, gin.H{"records": sess.Records()})
	})

	authGroup.POST("/records/:date/:slot/toggle", func(c *gin.Context) {
		if _, err := attendance.ParseDate(c.Param("date")); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date, want YYYY-MM-DD"})
			return
		}
		sess := sessFor(c)
		if sess == nil {
			return
		}
		rec, err := sess.ToggleAttendance(c.Request.Context(), c.Param("date"), c.Param("slot"))
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, rec)
	})

	authGroup.POST("/records/:date/:slot/exclude", func(c *gin.Context) {
		if _, err := attendance.ParseDate(c.Param("date")); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date, want YYYY-MM-DD"})
			return
		}
		sess := sessFor(c)
		if sess == nil {
			return
		}
		rec, err := sess.ToggleExclude(c.Request.Context(), c.Param("date"), c.Param("slot"))
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, rec)
	})

	authGroup.GET("/stats", func(c *gin.Context) {
		start, err := attendance.ParseDate(c.Query("start"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start date, want YYYY-MM-DD"})
			return
		}
		end, err := attendance.ParseDate(c.Query("end"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end date, want YYYY-MM-DD"})
			return
		}
		subjectID := c.Query("subject")
		if subjectID == "" {
			subjectID = attendance.AllSubjects
		}
		sess := sessFor(c)
		if sess == nil {
			return
		}
		rows, err := sess.Stats(c.Request.Context(), attendance.Query{Start: start, End: end, SubjectID: subjectID})
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"results": rows})
	})

	authGroup.GET("/notifications", func(c *gin.Context) {
		pending, err := notifier.Drain(c.Request.Context(), auth.UserID(c))
		if err != nil {
			log.Printf("notification drain failed: %v", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "notification drain failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"notifications": pending})
	})
}
