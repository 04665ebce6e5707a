package http

import (
	"context"
	"errors"
	"io"
	stdhttp "net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/prtysh-bhb/estatechat/internal/core"
	"github.com/prtysh-bhb/estatechat/internal/identity"
	"github.com/prtysh-bhb/estatechat/internal/proto"
)

// WSHandler upgrades HTTP connections and bridges them to core.Conn.
type WSHandler struct {
	relay    *core.Relay
	verifier identity.Verifier
	log      *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler. The verifier is the
// external identity collaborator; the relay core never sees the token.
func NewWSHandler(relay *core.Relay, verifier identity.Verifier, logger *zerolog.Logger) *WSHandler {
	if verifier == nil {
		verifier = identity.AllowAll{}
	}
	return &WSHandler{relay: relay, verifier: verifier, log: logger}
}

// Handle upgrades the request and runs the connection until it closes.
func (h *WSHandler) Handle(c *gin.Context) {
	token := bearerToken(c.Request)
	if _, err := h.verifier.Verify(token); err != nil {
		h.log.Debug().Err(err).Msg("rejecting ws upgrade")
		c.JSON(stdhttp.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	client := core.NewConn(token)
	h.relay.Attach(client)
	defer h.relay.Detach(client)

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, client)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != 0 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *core.Conn) error {
	for {
		var inbound proto.Inbound
		if err := wsjson.Read(ctx, conn, &inbound); err != nil {
			return err
		}

		cmd, reason := inboundToCommand(inbound)
		if cmd == nil {
			// Malformed input is dropped, never surfaced to the sender.
			h.log.Debug().
				Str("conn_id", client.ID).
				Str("event", inbound.Type).
				Str("reason", reason).
				Msg("dropping inbound event")
			continue
		}
		client.Commands <- cmd
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *core.Conn) error {
	for {
		select {
		case event, ok := <-client.Events:
			if !ok {
				return nil
			}
			if err := wsjson.Write(ctx, conn, outboundFromEvent(event)); err != nil {
				h.log.Error().Err(err).Str("conn_id", client.ID).Msg("write ws event")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// bearerToken extracts the optional credential from the token query
// parameter or the Authorization header. Browsers cannot set headers on
// websocket upgrades, hence the query fallback.
func bearerToken(r *stdhttp.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	authHeader := r.Header.Get("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) == 2 && parts[0] == "Bearer" {
		return parts[1]
	}
	return ""
}
