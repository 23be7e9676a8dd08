package ws

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 32
)

// connSink adapts one websocket.Conn into a room.Sink. All writes to the
// underlying connection go through send so a single goroutine ever calls
// wsConn.Write*, the same discipline the teacher's Connection/writePump
// pair enforces.
type connSink struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
}

func newConnSink(conn *websocket.Conn) *connSink {
	return &connSink{conn: conn, send: make(chan []byte, sendBuffer), done: make(chan struct{})}
}

// WriteJSON marshals v and queues it for the write pump. A full buffer
// means the client is too far behind to keep up — dropping one stale state
// message is fine, the next committed transition will re-send the whole
// snapshot anyway.
func (s *connSink) WriteJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	select {
	case s.send <- data:
		return nil
	case <-s.done:
		return websocket.ErrCloseSent
	default:
		return nil
	}
}

func (s *connSink) Close() error {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
	return s.conn.Close()
}

func (s *connSink) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case msg := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			w, err := s.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(msg)
			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.done:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			s.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}
