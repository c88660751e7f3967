package signal

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kaizenverse/liveclass/internal/core"
)

const writeWait = 5 * time.Second

// wsClient adapts a gorilla websocket to core.SignalConn. Frames are
// queued on a bounded channel drained by the write pump; a full buffer
// means the frame is dropped, never queued elsewhere.
type wsClient struct {
	ws   *websocket.Conn
	send chan core.Frame
	quit chan struct{}
	once sync.Once
	dead atomic.Bool
}

func newWSClient(ws *websocket.Conn, buffer int) *wsClient {
	return &wsClient{
		ws:   ws,
		send: make(chan core.Frame, buffer),
		quit: make(chan struct{}),
	}
}

func (c *wsClient) TrySend(f core.Frame) error {
	if c.dead.Load() {
		return core.ErrConnectionClosed
	}
	select {
	case c.send <- f:
		return nil
	default:
		return core.ErrBackpressure
	}
}

func (c *wsClient) Alive() bool { return !c.dead.Load() }

// Kill stops accepting frames and signals the write pump, which flushes
// anything already queued before closing the socket. Frames sent just
// ahead of Kill, like a kicked notice, still reach the peer.
func (c *wsClient) Kill() {
	c.once.Do(func() {
		c.dead.Store(true)
		close(c.quit)
	})
}

// writePump serializes all writes to the socket, including pings. It
// owns the socket's lifetime: the connection closes only when the pump
// exits.
func (c *wsClient) writePump(pingPeriod time.Duration) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Kill()
		_ = c.ws.Close()
	}()

	for {
		select {
		case <-c.quit:
			c.drain()
			return
		case frame := <-c.send:
			if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// drain writes out frames queued before the kill, under the usual write
// deadline.
func (c *wsClient) drain() {
	for {
		select {
		case frame := <-c.send:
			if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		default:
			return
		}
	}
}
