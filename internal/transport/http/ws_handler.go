package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"consensus-poll-service/internal/app"
	"consensus-poll-service/internal/domain"
)

type WSHandler struct {
	service  *app.GameService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.GameService) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type submitPayload struct {
	Vote       int `json:"vote"`
	Prediction int `json:"prediction"`
}

type revealPayload struct {
	PromptID string `json:"promptId"`
}

type ugcPayload struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
}

type viewPayload struct {
	app.PromptView
	FirstVisit bool `json:"firstVisit"`
}

type lockedPayload struct {
	Stats domain.UserStats `json:"stats"`
}

type ugcQueuedPayload struct {
	ID string `json:"id"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades HTTP requests to websockets and drives the
// vote -> predict -> lock -> reveal loop for one user and prompt. All writes
// happen from this goroutine, so no write coordination is needed.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	promptID := r.URL.Query().Get("promptId")
	userID := r.URL.Query().Get("userId")
	if promptID == "" || userID == "" {
		http.Error(w, "missing promptId or userId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	view, err := h.service.View(r.Context(), promptID, userID)
	if err != nil {
		h.writeError(conn, err)
		return
	}
	firstVisit, err := h.service.FirstVisit(r.Context())
	if err != nil {
		h.writeError(conn, err)
		return
	}
	_ = conn.WriteJSON(outboundMessage[viewPayload]{Type: "view", Payload: viewPayload{PromptView: view, FirstVisit: firstVisit}})

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			return
		}
		switch inbound.Type {
		case "submit":
			var payload submitPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				h.writeError(conn, errors.New("invalid submit payload"))
				continue
			}
			stats, err := h.service.Submit(r.Context(), promptID, userID, payload.Vote, payload.Prediction)
			if err != nil {
				h.writeError(conn, err)
				continue
			}
			_ = conn.WriteJSON(outboundMessage[lockedPayload]{Type: "locked", Payload: lockedPayload{Stats: stats}})
		case "reveal":
			var payload revealPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil || payload.PromptID == "" {
				h.writeError(conn, errors.New("invalid reveal payload"))
				continue
			}
			summary, err := h.service.Reveal(r.Context(), payload.PromptID, userID)
			if err != nil {
				h.writeError(conn, err)
				continue
			}
			_ = conn.WriteJSON(outboundMessage[domain.RevealSummary]{Type: "reveal", Payload: summary})
		case "ugc":
			var payload ugcPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				h.writeError(conn, errors.New("invalid ugc payload"))
				continue
			}
			proposal, err := h.service.SubmitProposal(r.Context(), userID, payload.Question, payload.Options)
			if err != nil {
				h.writeError(conn, err)
				continue
			}
			_ = conn.WriteJSON(outboundMessage[ugcQueuedPayload]{Type: "ugcQueued", Payload: ugcQueuedPayload{ID: proposal.ID}})
		default:
			h.writeError(conn, errors.New("unsupported message type"))
		}
	}
}

func (h *WSHandler) writeError(conn *websocket.Conn, err error) {
	_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
}
