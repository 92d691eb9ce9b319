package web

import (
	"context"
	"embed"
	"html/template"
	"net/http"
	"time"

	"geo-match/internal/config"
	"geo-match/internal/jobs"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

//go:embed templates/*.html
var templateFS embed.FS

const sessionName = "geomatch_session"

type Server struct {
	cfg    *config.Config
	jobs   *jobs.Store
	logger zerolog.Logger
	// jobs run on this context rather than the request's.
	baseCtx context.Context
}

func NewServer(ctx context.Context, cfg *config.Config, store *jobs.Store, logger zerolog.Logger) *Server {
	return &Server{cfg: cfg, jobs: store, logger: logger, baseCtx: ctx}
}

// Router builds the gin engine with sessions, templates and all routes.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(s.logger))
	r.SetHTMLTemplate(template.Must(template.ParseFS(templateFS, "templates/*.html")))
	r.MaxMultipartMemory = 32 << 20

	store := cookie.NewStore([]byte(s.cfg.SecretKey))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   int((12 * time.Hour).Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions(sessionName, store))

	r.GET("/health", s.health)
	r.GET("/login", s.loginPage)
	r.POST("/login", s.login)
	r.GET("/logout", s.logout)

	authorized := r.Group("/")
	authorized.Use(authRequired)
	{
		authorized.GET("/", s.index)
		authorized.POST("/run", s.run)
		authorized.GET("/logs", s.logs)
		authorized.GET("/status", s.status)
		authorized.POST("/cancel", s.cancel)
		authorized.GET("/download-result/:filename", s.download)
	}

	return r
}

func authRequired(c *gin.Context) {
	session := sessions.Default(c)
	if session.Get("user") == nil {
		c.Redirect(http.StatusFound, "/login")
		c.Abort()
		return
	}
	c.Next()
}

func requestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.RequestURI()).
			Int("status", c.Writer.Status()).
			Int("bytes", c.Writer.Size()).
			Dur("dur", time.Since(start)).
			Msg("request")
	}
}

// PruneLoop drops finished jobs older than ttl every interval until ctx ends.
func (s *Server) PruneLoop(ctx context.Context, interval, ttl time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.jobs.Prune(time.Now().Add(-ttl)); n > 0 {
				s.logger.Debug().Int("count", n).Msg("pruned finished jobs")
			}
		}
	}
}
