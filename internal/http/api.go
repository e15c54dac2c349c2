package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"noteshare/internal/auth"
	"noteshare/internal/service"
)

// Options configures a Handler.
type Options struct {
	Users  service.UserService
	Notes  service.NoteService
	Tokens *auth.TokenService
	// Revocations is consulted on every authenticated request when set.
	// A nil list keeps logout client-side only.
	Revocations   auth.RevocationList
	MaxUploadSize int64
	AuthRateLimit rate.Limit
	AuthRateBurst int
	Logger        logrus.FieldLogger
}

// Handler wires HTTP routes to domain services.
type Handler struct {
	users       service.UserService
	notes       service.NoteService
	tokens      *auth.TokenService
	revocations auth.RevocationList
	maxUpload   int64
	authLimiter *clientLimiter
	logger      logrus.FieldLogger
}

func NewHandler(opts Options) *Handler {
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}
	if opts.MaxUploadSize <= 0 {
		opts.MaxUploadSize = service.DefaultMaxUpload
	}
	registerValidatorTagNames()

	return &Handler{
		users:       opts.Users,
		notes:       opts.Notes,
		tokens:      opts.Tokens,
		revocations: opts.Revocations,
		maxUpload:   opts.MaxUploadSize,
		authLimiter: newClientLimiter(opts.AuthRateLimit, opts.AuthRateBurst),
		logger:      opts.Logger,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(requestLogger(h.logger), metricsMiddleware(), corsMiddleware())

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	{
		api.GET("/health", func(ctx *gin.Context) {
			ctx.JSON(http.StatusOK, gin.H{"ok": "ok"})
		})

		authGroup := api.Group("/auth")
		{
			authGroup.POST("/register", h.rateLimit(), h.register)
			authGroup.POST("/login", h.rateLimit(), h.login)
			authGroup.POST("/logout", h.logout)
			authGroup.GET("/me", h.requireAuth(), h.me)
			authGroup.PUT("/password", h.requireAuth(), h.changePassword)
		}

		notes := api.Group("/notes")
		{
			notes.GET("", h.listNotes)
			notes.POST("/upload", h.requireAuth(), h.uploadNote)
			notes.GET("/:id", h.getNote)
			notes.GET("/:id/download", h.requireAuth(), h.downloadNote)
			notes.POST("/:id/rate", h.requireAuth(), h.rateNote)
		}

		admin := api.Group("/admin", h.requireAuth(), h.requireAdmin())
		{
			admin.GET("/users", h.listUsers)
			admin.GET("/notes", h.listNotes)
			admin.DELETE("/notes/:id", h.deleteNote)
			admin.GET("/storage/objects", h.listObjects)
		}
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Disposition")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
