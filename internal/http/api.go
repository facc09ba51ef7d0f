package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"userauth/internal/auth"
	"userauth/internal/domain"
	"userauth/internal/service"
)

// Handler wires HTTP routes to the auth and session services.
type Handler struct {
	auth     service.AuthService
	sessions *service.SessionManager
	tokens   *auth.TokenIssuer
	backups  *service.BackupService
	logger   logrus.FieldLogger
}

func NewHandler(authSvc service.AuthService, sessions *service.SessionManager, tokens *auth.TokenIssuer, backups *service.BackupService, logger logrus.FieldLogger) *Handler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	registerValidators()
	return &Handler{
		auth:     authSvc,
		sessions: sessions,
		tokens:   tokens,
		backups:  backups,
		logger:   logger,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(corsMiddleware(), requestLogger(h.logger))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	{
		api.GET("/auth/login", h.login)
		api.POST("/auth/register", h.register)
		api.POST("/auth/reset-password", h.resetPassword)
		api.GET("/session", h.getSession)
		api.DELETE("/session", h.logout)
		api.GET("/me", requireToken(h.tokens), h.me)
		if h.backups.Enabled() {
			api.GET("/backups", h.listBackups)
			api.POST("/backups", h.createBackup)
		}
		api.GET("/health", func(ctx *gin.Context) {
			ctx.JSON(http.StatusOK, gin.H{"ok": "ok"})
		})
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

type registerRequest struct {
	Username        string `json:"username" binding:"required,username"`
	Password        string `json:"password" binding:"required,password"`
	ConfirmPassword string `json:"confirm_password" binding:"omitempty,eqfield=Password"`
	Email           string `json:"email" binding:"required,email"`
}

type resetPasswordRequest struct {
	Username        string `json:"username" binding:"required,username"`
	NewPassword     string `json:"new_password" binding:"required,password"`
	ConfirmPassword string `json:"confirm_password" binding:"omitempty,eqfield=NewPassword"`
}

// AuthResponse is the public user plus a bearer token.
type AuthResponse struct {
	domain.User
	Token     string `json:"token,omitempty"`
	ExpiresAt string `json:"expires_at,omitempty"`
}

type SessionResponse struct {
	LoggedIn       bool    `json:"logged_in"`
	Username       *string `json:"username"`
	UserID         *int64  `json:"user_id"`
	LoginTimestamp *string `json:"login_timestamp"`
	Duration       *int64  `json:"duration"`
	DurationText   *string `json:"duration_text"`
}

type BackupResponse struct {
	Key          string  `json:"key"`
	Size         int64   `json:"size"`
	LastModified *string `json:"last_modified,omitempty"`
}

func (h *Handler) login(c *gin.Context) {
	username, password, ok := c.Request.BasicAuth()
	if !ok {
		c.Header("WWW-Authenticate", `Basic realm="userauth"`)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "basic credentials required"})
		return
	}

	user, err := h.auth.Login(c.Request.Context(), username, password)
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.startSession(c, http.StatusOK, user)
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validationMessage(err)})
		return
	}

	user, err := h.auth.Register(c.Request.Context(), req.Username, req.Password, req.Email)
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.startSession(c, http.StatusCreated, user)
}

func (h *Handler) resetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validationMessage(err)})
		return
	}

	if err := h.auth.ResetPassword(c.Request.Context(), req.Username, req.NewPassword); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// startSession records the login and answers with the user and a token.
func (h *Handler) startSession(c *gin.Context, status int, user *domain.User) {
	if _, err := h.sessions.Save(c.Request.Context(), user.Name, user.ID); err != nil {
		h.writeError(c, err)
		return
	}

	resp := AuthResponse{User: *user}
	if h.tokens != nil {
		token, expires, err := h.tokens.Issue(user)
		if err != nil {
			h.writeError(c, err)
			return
		}
		resp.Token = token
		resp.ExpiresAt = expires.UTC().Format(time.RFC3339)
	}
	c.JSON(status, resp)
}

func (h *Handler) getSession(c *gin.Context) {
	sess, err := h.sessions.Current(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionToResponse(sess, time.Now()))
}

func (h *Handler) logout(c *gin.Context) {
	if err := h.sessions.Clear(c.Request.Context()); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) me(c *gin.Context) {
	claims := claimsFrom(c)
	c.JSON(http.StatusOK, gin.H{
		"id":         claims.UserID,
		"name":       claims.Subject,
		"email":      claims.Email,
		"expires_at": claims.ExpiresAt.Time.UTC().Format(time.RFC3339),
	})
}

func (h *Handler) listBackups(c *gin.Context) {
	objects, err := h.backups.List(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}

	resp := make([]BackupResponse, len(objects))
	for i, obj := range objects {
		resp[i] = BackupResponse{Key: obj.Key, Size: obj.Size}
		if obj.LastModified != nil && !obj.LastModified.IsZero() {
			v := obj.LastModified.Format(time.RFC3339)
			resp[i].LastModified = &v
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) createBackup(c *gin.Context) {
	location, err := h.backups.Create(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"location": location})
}

func sessionToResponse(sess *domain.Session, now time.Time) SessionResponse {
	if sess == nil {
		return SessionResponse{}
	}
	ts := sess.LoginTimestamp.Format(time.RFC3339)
	d := sess.Duration(now)
	secs := int64(d / time.Second)
	text := domain.FormatDuration(d)
	return SessionResponse{
		LoggedIn:       true,
		Username:       &sess.Username,
		UserID:         &sess.UserID,
		LoginTimestamp: &ts,
		Duration:       &secs,
		DurationText:   &text,
	}
}
