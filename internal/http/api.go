package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"account-store/internal/domain"
	"account-store/internal/service"
	"account-store/internal/token"
)

const (
	requestIDHeader = "X-Request-ID"
	claimsKey       = "claims"
)

// Handler wires HTTP routes to the user service.
type Handler struct {
	users  service.UserService
	tokens *token.Service
	logger logrus.FieldLogger
}

func NewHandler(users service.UserService, tokens *token.Service, logger logrus.FieldLogger) *Handler {
	return &Handler{
		users:  users,
		tokens: tokens,
		logger: logger,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(requestIDMiddleware(), h.accessLogMiddleware())

	api := router.Group("/api")
	{
		api.POST("/users", h.register)
		api.POST("/auth/login", h.login)
		api.GET("/health", func(ctx *gin.Context) {
			ctx.JSON(http.StatusOK, gin.H{"ok": "ok"})
		})

		authed := api.Group("", h.authMiddleware())
		authed.GET("/users/me", h.me)
		authed.GET("/users/:identifier", h.getUser)
	}
}

type registerRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginRequest struct {
	Identifier string `json:"identifier" binding:"required"`
	Password   string `json:"password" binding:"required"`
}

type UserResponse struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	CreatedAt string `json:"created_at"`
}

type TokenResponse struct {
	Token     string       `json:"token"`
	ExpiresAt string       `json:"expires_at"`
	User      UserResponse `json:"user"`
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.Register(c.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, userToResponse(*user))
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.Authenticate(c.Request.Context(), req.Identifier, req.Password)
	if err != nil {
		h.writeError(c, err)
		return
	}

	signed, expires, err := h.tokens.Issue(user)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, TokenResponse{
		Token:     signed,
		ExpiresAt: expires.UTC().Format(time.RFC3339),
		User:      userToResponse(*user),
	})
}

func (h *Handler) me(c *gin.Context) {
	claims := c.MustGet(claimsKey).(*token.Claims)

	user, err := h.users.Lookup(c.Request.Context(), claims.Subject)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, userToResponse(*user))
}

func (h *Handler) getUser(c *gin.Context) {
	user, err := h.users.Lookup(c.Request.Context(), c.Param("identifier"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, userToResponse(*user))
}

// writeError maps the error taxonomy onto status codes. Internal details are
// logged, not returned.
func (h *Handler) writeError(c *gin.Context, err error) {
	var vErr *service.ValidationError
	switch {
	case errors.As(err, &vErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": vErr.Error()})
	case errors.Is(err, service.ErrUserAlreadyExists):
		c.JSON(http.StatusConflict, gin.H{"error": "username or email already taken"})
	case errors.Is(err, service.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": service.ErrInvalidCredentials.Error()})
	case errors.Is(err, service.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": service.ErrUserNotFound.Error()})
	default:
		status := http.StatusInternalServerError
		switch domain.Kind(err) {
		case "connection", "canceled":
			status = http.StatusServiceUnavailable
		}
		h.requestLogger(c).WithError(err).WithField("kind", domain.Kind(err)).Error("request failed")
		c.JSON(status, gin.H{"error": http.StatusText(status)})
	}
}

func (h *Handler) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		claims, err := h.tokens.Parse(strings.TrimSpace(raw))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": token.ErrInvalidToken.Error()})
			return
		}

		c.Set(claimsKey, claims)
		c.Next()
	}
}

func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDHeader, id)
		c.Writer.Header().Set(requestIDHeader, id)
		c.Next()
	}
}

func (h *Handler) accessLogMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		h.requestLogger(c).WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.FullPath(),
			"status":   c.Writer.Status(),
			"duration": time.Since(start),
		}).Info("request")
	}
}

func (h *Handler) requestLogger(c *gin.Context) logrus.FieldLogger {
	return h.logger.WithField("request_id", c.GetString(requestIDHeader))
}

func userToResponse(user domain.User) UserResponse {
	return UserResponse{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		CreatedAt: user.CreatedAt.UTC().Format(time.RFC3339),
	}
}
