package http

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"time"

	"github.com/dkeye/Quoridor/internal/adapters/signal"
	"github.com/dkeye/Quoridor/internal/app/orch"
	"github.com/dkeye/Quoridor/internal/config"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	sessionName = "quoridor"
	sessionKey  = "sid"
	httpTimeout = 5 * time.Second
)

// SessionMiddleware gives every visitor a stable session id in the
// signed session cookie.
func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		s := sessions.Default(c)
		sid, _ := s.Get(sessionKey).(string)
		if _, err := uuid.Parse(sid); err != nil {
			sid = uuid.NewString()
			s.Set(sessionKey, sid)
			if err := s.Save(); err != nil {
				log.Error().Err(err).Str("module", "adapters.http").Msg("save session")
			}
		}
		c.Set(sessionKey, sid)
		c.Next()
	}
}

// RequireSession rejects requests without a valid session cookie.
func RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		sid, _ := sessions.Default(c).Get(sessionKey).(string)
		if _, err := uuid.Parse(sid); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication"})
			return
		}
		c.Set(sessionKey, sid)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, o *orch.Orchestrator) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   int(cfg.SessionTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions(sessionName, store))

	r.Static("/static", cfg.StaticPath)

	pages := r.Group("/", SessionMiddleware())
	pages.GET("/", func(c *gin.Context) {
		c.File(filepath.Join(cfg.StaticPath, "index.html"))
	})
	pages.GET("/game/:roomId", func(c *gin.Context) {
		rctx, cancel := context.WithTimeout(c.Request.Context(), httpTimeout)
		defer cancel()
		_, ok, err := o.RoomExists(rctx, c.Param("roomId"))
		if err != nil {
			storeUnavailable(c, err)
			return
		}
		if !ok {
			c.Redirect(http.StatusFound, "/")
			return
		}
		c.File(filepath.Join(cfg.StaticPath, "game.html"))
	})
	pages.GET("/validate", func(c *gin.Context) {
		rctx, cancel := context.WithTimeout(c.Request.Context(), httpTimeout)
		defer cancel()
		id, ok, err := o.RoomExists(rctx, c.Query("room"))
		if err != nil {
			storeUnavailable(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"exists": ok, "room": id})
	})
	pages.POST("/validate", func(c *gin.Context) {
		rctx, cancel := context.WithTimeout(c.Request.Context(), httpTimeout)
		defer cancel()
		id, err := o.CreateRoom(rctx)
		if err != nil {
			storeUnavailable(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"redirect": true, "room": id})
	})

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	ctrl := signal.NewSignalWSController(o, cfg.ReadLimit, cfg.PingPeriod)
	api := r.Group("/api")
	api.GET("/ws/signal", RequireSession(), func(c *gin.Context) {
		log.Info().Str("module", "adapters.http").Str("sid", c.GetString(sessionKey)).Msg("ws signal endpoint hit")
		ctrl.HandleSignal(ctx, c)
	})

	return r
}

func storeUnavailable(c *gin.Context, err error) {
	log.Error().Err(err).Str("module", "adapters.http").Str("path", c.FullPath()).Msg("store unavailable")
	status := http.StatusServiceUnavailable
	if errors.Is(err, context.DeadlineExceeded) {
		status = http.StatusGatewayTimeout
	}
	c.AbortWithStatusJSON(status, gin.H{"error": "store_unavailable"})
}
