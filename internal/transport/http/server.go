package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/prtysh-bhb/estatechat/internal/config"
	"github.com/prtysh-bhb/estatechat/internal/core"
	"github.com/prtysh-bhb/estatechat/internal/identity"
)

// NewServer builds the HTTP server exposing the health route and the
// websocket upgrade endpoint.
func NewServer(relay *core.Relay, verifier identity.Verifier, cfg config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(LoggerMiddleware(logger))

	engine.GET("/healthz", healthHandler)
	engine.GET("/ws", NewWSHandler(relay, verifier, logger).Handle)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           engine,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
