package app

import (
	"context"
	"fmt"
	"net"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/prtysh-bhb/estatechat/internal/config"
	"github.com/prtysh-bhb/estatechat/internal/core"
	"github.com/prtysh-bhb/estatechat/internal/history"
	"github.com/prtysh-bhb/estatechat/internal/identity"
	"github.com/prtysh-bhb/estatechat/internal/log"
	transporthttp "github.com/prtysh-bhb/estatechat/internal/transport/http"
)

// App wires together the relay core and the transport layer. One App per
// process; constructed at server start, torn down at shutdown.
type App struct {
	server          *stdhttp.Server
	relay           *core.Relay
	recorder        *history.Recorder
	shutdownTimeout time.Duration
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	var relayOpts []core.Option

	var recorder *history.Recorder
	if cfg.HistoryPath != "" {
		var err error
		recorder, err = history.Open(cfg.HistoryPath)
		if err != nil {
			return nil, fmt.Errorf("init history recorder: %w", err)
		}
		relayOpts = append(relayOpts, core.WithSink(recorder))
		logger.Info().Str("history_path", cfg.HistoryPath).Msg("history recorder enabled")
	}

	var verifier identity.Verifier = identity.AllowAll{}
	if cfg.JWTSecret != "" {
		verifier = identity.NewJWTVerifier(identity.JWTConfig{
			Secret:   []byte(cfg.JWTSecret),
			Issuer:   cfg.JWTIssuer,
			Audience: cfg.JWTAudience,
		})
		logger.Info().Msg("bearer-token validation enabled")
	}

	relay := core.NewRelay(log.With(logger, "relay"), relayOpts...)
	server := transporthttp.NewServer(relay, verifier, *cfg, log.With(logger, "http"))

	return &App{
		server:          server,
		relay:           relay,
		recorder:        recorder,
		shutdownTimeout: cfg.ShutdownTimeout,
		log:             logger,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go a.relay.Run(ctx)

	// Websocket handlers run on hijacked connections, which Shutdown
	// neither closes nor waits for. Deriving request contexts from the
	// run context winds the handlers down as soon as shutdown begins.
	a.server.BaseContext = func(net.Listener) context.Context { return ctx }

	go func() {
		if err := a.server.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.cleanup()
			return err
		}

		a.cleanup()
		return <-serverErr
	}
}

// cleanup closes the history recorder and other resources.
func (a *App) cleanup() {
	if a.recorder != nil {
		if err := a.recorder.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close history recorder")
		} else {
			a.log.Info().Msg("history recorder closed")
		}
	}
}
