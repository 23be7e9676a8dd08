// Package ws implements the duplex channel of §6.2: one gorilla/websocket
// connection per client, registered against a room's ConnectionSet only
// after an explicit register message.
package ws

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"buzzer/internal/dispatcher"
	"buzzer/internal/room"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type Handler struct {
	dispatcher *dispatcher.Dispatcher
	log        zerolog.Logger
}

func NewHandler(d *dispatcher.Dispatcher, log zerolog.Logger) *Handler {
	return &Handler{dispatcher: d, log: log}
}

type inboundMessage struct {
	Type     string `json:"type"`
	Role     string `json:"role"`
	HostSecret string `json:"hostSecret"`
	PlayerID string `json:"playerId"`
}

type outboundMessage struct {
	Type     string `json:"type"`
	Role     string `json:"role,omitempty"`
	PlayerID string `json:"playerId,omitempty"`
	Payload  any    `json:"payload,omitempty"`
	Message  string `json:"message,omitempty"`
}

// Serve upgrades the connection and runs it until it closes. readLoop
// handles every message, the register message included.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]

	rm, err := h.dispatcher.Lookup(code)
	if err != nil {
		http.Error(w, "room not found", http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	sink := newConnSink(conn)
	go sink.writePump()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	h.readLoop(conn, sink, rm)
}

func (h *Handler) readLoop(conn *websocket.Conn, sink *connSink, rm *room.Room) {
	var (
		registered bool
		connID     string
		role       room.Role
		playerID   string
	)

	defer func() {
		if registered {
			rm.Connections().Remove(connID)
		}
		sink.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var msg inboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			sink.WriteJSON(outboundMessage{Type: "error", Message: "invalid message"})
			continue
		}

		switch msg.Type {
		case "register":
			if registered {
				sink.WriteJSON(outboundMessage{Type: "error", Message: "Already registered"})
				continue
			}
			switch msg.Role {
			case "host":
				if !rm.Authenticate(msg.HostSecret) {
					sink.WriteJSON(outboundMessage{Type: "error", Message: "forbidden"})
					continue
				}
				role = room.RoleHost
			case "player":
				if _, err := rm.Reconnect(msg.PlayerID); err != nil {
					sink.WriteJSON(outboundMessage{Type: "error", Message: "player not found"})
					continue
				}
				role = room.RolePlayer
				playerID = msg.PlayerID
			default:
				sink.WriteJSON(outboundMessage{Type: "error", Message: "invalid role"})
				continue
			}

			connID = rm.Connections().Add(role, playerID, sink)
			registered = true

			ack := outboundMessage{Type: "registered", Role: string(role)}
			if role == room.RolePlayer {
				ack.PlayerID = playerID
			}
			sink.WriteJSON(ack)
			sink.WriteJSON(outboundMessage{Type: "state", Payload: rm.Snapshot(role == room.RoleHost)})

		case "buzz":
			if !registered {
				sink.WriteJSON(outboundMessage{Type: "error", Message: "not registered"})
				continue
			}
			if role != room.RolePlayer {
				sink.WriteJSON(outboundMessage{Type: "error", Message: "forbidden"})
				continue
			}
			if err := h.dispatcher.Buzz(rm.Code(), playerID); err != nil {
				sink.WriteJSON(outboundMessage{Type: "error", Message: err.Error()})
			}

		default:
			sink.WriteJSON(outboundMessage{Type: "error", Message: "unknown message type"})
		}
	}
}
