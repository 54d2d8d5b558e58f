package subscription

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// Conn abstracts the bidirectional framed JSON socket so the subscriber
// logic can be tested without a real network connection.
type Conn interface {
	WriteJSON(v interface{}) error
	ReadJSON(v interface{}) error
	Close() error
}

// wsConn adapts a *websocket.Conn to Conn, serialising concurrent writes —
// gorilla/websocket permits only one writer goroutine at a time, but a
// subscriber's throttler flushes and its own read loop may both want to
// write (e.g. an error reply interleaved with a throttled batch).
type wsConn struct {
	*websocket.Conn
	writeMu sync.Mutex
}

func newWSConn(c *websocket.Conn) *wsConn { return &wsConn{Conn: c} }

func (c *wsConn) WriteJSON(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.Conn.WriteJSON(v)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Upgrade promotes an HTTP request to the subscriber WebSocket channel.
func Upgrade(w http.ResponseWriter, r *http.Request) (Conn, error) {
	c, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	return newWSConn(c), nil
}
