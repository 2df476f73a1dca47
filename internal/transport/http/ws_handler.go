package http

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"

	"trivia-sync/internal/domain"
	"trivia-sync/internal/protocol"
)

// WSHandler bridges browser tabs onto the shared channel. Every frame a browser sends is
// published as a display-role command; frames from the channel are forwarded back.
//
// role=display (the default) only receives what control emits. role=control is a host panel
// and also sees display traffic such as HELLO and ACK_SNAPSHOT.
type WSHandler struct {
	channel  protocol.Channel
	upgrader websocket.Upgrader
}

func NewWSHandler(channel protocol.Channel) *WSHandler {
	return &WSHandler{
		channel: channel,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type errorFrame struct {
	Error string `json:"error"`
}

// ServeWS upgrades the request and pumps messages in both directions until either side closes.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	role := domain.Role(r.URL.Query().Get("role"))
	if role == "" {
		role = domain.RoleDisplay
	}
	if role != domain.RoleDisplay && role != domain.RoleControl {
		http.Error(w, "role must be display or control", http.StatusBadRequest)
		return
	}
	senderID := r.URL.Query().Get("id")
	if senderID == "" {
		senderID = string(role) + "-" + uuid.NewString()
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	ctx := r.Context()
	updates, cancel, err := h.channel.Subscribe(ctx)
	if err != nil {
		_ = conn.WriteJSON(errorFrame{Error: err.Error()})
		return
	}
	defer cancel()

	log.Info().Str("sender", senderID).Str("role", string(role)).Msg("browser connected")
	defer log.Info().Str("sender", senderID).Msg("browser disconnected")

	send := make(chan any, 64)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Debug().Err(err).Str("sender", senderID).Msg("ws write error")
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case msg, ok := <-updates:
				if !ok {
					return
				}
				if !forward(role, senderID, msg) {
					continue
				}
				select {
				case send <- msg:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		msg, err := protocol.Decode(data)
		if err != nil {
			queue(send, writerDone, errorFrame{Error: err.Error()})
			continue
		}
		msg.Sender = domain.RoleDisplay
		msg.SenderID = senderID
		if err := h.channel.Publish(ctx, msg); err != nil {
			log.Warn().Err(err).Str("type", string(msg.Type)).Msg("publish from browser failed")
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

// queue hands v to the writer unless the writer has already gone away.
func queue(send chan<- any, writerDone <-chan struct{}, v any) bool {
	select {
	case send <- v:
		return true
	case <-writerDone:
		return false
	}
}

// forward decides whether a channel message is relayed to a browser of the given role.
func forward(role domain.Role, senderID string, msg protocol.Message) bool {
	if msg.SenderID == senderID {
		return false
	}
	return role == domain.RoleControl || msg.Sender == domain.RoleControl
}
