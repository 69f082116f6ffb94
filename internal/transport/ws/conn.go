package ws

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var (
	errConnClosed = errors.New("connection closed")
	errBufferFull = errors.New("send buffer full")
)

// wsConn реализует hub.Conn. Send не блокирует: медленный клиент теряет кадры,
// а не тормозит рассылку остальным.
type wsConn struct {
	id   string
	conn *websocket.Conn
	send chan []byte

	closed    chan struct{}
	closeOnce sync.Once
}

func newWsConn(id string, c *websocket.Conn, buffer int) *wsConn {
	return &wsConn{
		id:     id,
		conn:   c,
		send:   make(chan []byte, buffer),
		closed: make(chan struct{}),
	}
}

func (c *wsConn) ID() string { return c.id }

func (c *wsConn) Send(frame []byte) error {
	select {
	case <-c.closed:
		return errConnClosed
	default:
	}

	select {
	case c.send <- frame:
		return nil
	case <-c.closed:
		return errConnClosed
	default:
		return errBufferFull
	}
}

// Close только сигнализирует writePump; сокет закрывает сам writePump.
func (c *wsConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *wsConn) writePump(pingPeriod, writeWait time.Duration) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				_ = c.Close()
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				_ = c.Close()
				return
			}
		case <-c.closed:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}
