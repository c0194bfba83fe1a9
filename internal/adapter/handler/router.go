package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/chronicae/chronicler/errors"
	"github.com/chronicae/chronicler/pkg/config"
	"github.com/chronicae/chronicler/pkg/jwt"
)

// Router holds all handlers
type Router struct {
	cfg      *config.Config
	sessions *Sessions
	clips    *Clips
	tokens   *jwt.Manager
}

// NewRouter creates a new router with all handlers
func NewRouter(cfg *config.Config, sessions *Sessions, clips *Clips, tokens *jwt.Manager) *Router {
	return &Router{
		cfg:      cfg,
		sessions: sessions,
		clips:    clips,
		tokens:   tokens,
	}
}

// Setup configures all application routes
func (rt *Router) Setup(e *echo.Echo) {
	e.GET("/health", rt.healthCheck)

	v1 := e.Group("/v1")

	// Capture side: the recording client pushes clips as speakers stop
	// talking
	v1.POST("/clips", rt.clips.Ingest, rt.requireToken)

	rt.setupSessionRoutes(v1)
}

func (rt *Router) setupSessionRoutes(g *echo.Group) {
	sessions := g.Group("/sessions")

	// Read-only endpoints stay open for dashboards
	sessions.GET("/:id/status", rt.sessions.Status)
	sessions.GET("/:id/transcript", rt.sessions.Transcript)
	sessions.GET("/:id/master", rt.sessions.Master)

	// Mutating endpoints need an operator token
	sessions.POST("", rt.sessions.Create, rt.requireToken)
	sessions.POST("/:id/end", rt.sessions.End, rt.requireToken)
	sessions.PUT("/:id/context", rt.sessions.UpdateContext, rt.requireToken)
	sessions.POST("/:id/notes", rt.sessions.AddNote, rt.requireToken)
	sessions.POST("/:id/reset", rt.sessions.Reset, rt.requireToken)
}

// requireToken validates the bearer token on mutating endpoints
func (rt *Router) requireToken(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := extractBearer(c.Request())
		if token == "" {
			return respondError(c, errors.ErrUnauthenticated())
		}
		claims, err := rt.tokens.Validate(token)
		if err != nil {
			return respondError(c, errors.ErrUnauthenticated())
		}
		c.Set("operator", claims.Subject)
		return next(c)
	}
}

func extractBearer(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

// healthCheck returns health status
func (rt *Router) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"environment": rt.cfg.Server.Environment,
	})
}
