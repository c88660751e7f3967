// Package signal is the websocket boundary of the coordinator: it
// upgrades connections, decodes the closed event set once, and dispatches
// typed payloads into the app layer.
package signal

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/kaizenverse/liveclass/internal/app"
	"github.com/kaizenverse/liveclass/internal/core"
)

var upgrader = websocket.Upgrader{
	// TODO: restrict origins once the frontend domains are settled.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type Controller struct {
	Coordinator *app.Coordinator
	ReadLimit   int64
	SendBuffer  int
	PingPeriod  time.Duration
}

func NewController(co *app.Coordinator, readLimit int64, sendBuffer int, pingPeriod time.Duration) *Controller {
	return &Controller{
		Coordinator: co,
		ReadLimit:   readLimit,
		SendBuffer:  sendBuffer,
		PingPeriod:  pingPeriod,
	}
}

// Handle upgrades the request and runs the connection's pumps. The read
// pump is the only goroutine dispatching this peer's events, which keeps
// per-connection ordering.
func (ctl *Controller) Handle(ctx context.Context, c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("websocket upgrade failed")
		return
	}
	ws.SetReadLimit(ctl.ReadLimit)

	client := newWSClient(ws, ctl.SendBuffer)
	go client.writePump(ctl.PingPeriod)
	go ctl.readPump(ctx, client)
}

func (ctl *Controller) readPump(ctx context.Context, client *wsClient) {
	var bound *app.Connection
	defer func() {
		if bound != nil {
			ctl.Coordinator.Drop(bound, app.ReasonTransport)
		}
		client.Kill()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		_, data, err := client.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Str("module", "signal").Msg("read loop closed")
			}
			return
		}
		bound = ctl.dispatch(ctx, client, bound, data)
	}
}

// dispatch routes one decoded event. It returns the (possibly updated)
// bound connection: join binds, leave unbinds, everything else requires
// a binding.
func (ctl *Controller) dispatch(ctx context.Context, client *wsClient, bound *app.Connection, data []byte) *app.Connection {
	kind, payload, err := core.DecodeClientEvent(data)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("rejecting frame")
		ctl.sendError(client, "unsupported or malformed event")
		return bound
	}

	switch p := payload.(type) {
	case *core.JoinSession:
		// A join while already bound implies leaving the current
		// session first, so no ghost participant stays behind.
		if bound != nil {
			ctl.Coordinator.Drop(bound, app.ReasonLeave)
		}
		conn, err := ctl.Coordinator.Join(ctx, client, *p)
		if err != nil {
			ctl.reportError(client, err)
			return nil
		}
		return conn

	case nil: // leave-session
		if bound != nil {
			ctl.Coordinator.Drop(bound, app.ReasonLeave)
		}
		return nil

	case core.RelayPayload:
		if bound == nil {
			ctl.reportError(client, core.ErrNotJoined)
			return bound
		}
		if err := ctl.Coordinator.Relay(bound, kind, p); err != nil {
			ctl.reportError(client, err)
		}

	case *core.MediaStateChanged:
		if bound == nil {
			ctl.reportError(client, core.ErrNotJoined)
			return bound
		}
		if err := ctl.Coordinator.UpdateMedia(bound, p); err != nil {
			ctl.reportError(client, err)
		}

	case *core.ScreenShare:
		if bound == nil {
			ctl.reportError(client, core.ErrNotJoined)
			return bound
		}
		if err := ctl.Coordinator.Share(bound, kind, p); err != nil {
			ctl.reportError(client, err)
		}

	case *core.DocumentShared:
		if bound == nil {
			ctl.reportError(client, core.ErrNotJoined)
			return bound
		}
		if err := ctl.Coordinator.ShareDocument(bound, p); err != nil {
			ctl.reportError(client, err)
		}
	}
	return bound
}

// reportError surfaces a request-local failure to this peer only.
func (ctl *Controller) reportError(client *wsClient, err error) {
	switch {
	case errors.Is(err, core.ErrSessionNotJoinable),
		errors.Is(err, core.ErrNotAuthorized),
		errors.Is(err, core.ErrSessionMismatch),
		errors.Is(err, core.ErrTargetUnreachable),
		errors.Is(err, core.ErrNotJoined):
		ctl.sendError(client, err.Error())
	case errors.Is(err, core.ErrConnectionClosed):
		// Nothing to tell; the peer is gone.
	default:
		log.Error().Err(err).Str("module", "signal").Msg("request failed")
		ctl.sendError(client, "internal error")
	}
}

func (ctl *Controller) sendError(client *wsClient, msg string) {
	frame, err := core.Encode(core.KindError, core.ErrorNotice{Message: msg})
	if err != nil {
		return
	}
	_ = client.TrySend(frame)
}
