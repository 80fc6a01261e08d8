package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/coder/websocket"

	"github.com/amandahq/converse/core"
)

// wsRequest is a client frame. Type is "message" (run a turn), "cancel"
// (abort the in-flight turn) or "close" (end the conversation).
type wsRequest struct {
	Type           string `json:"type"`
	UserID         string `json:"user_id,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
	Message        string `json:"message,omitempty"`
	TurnID         string `json:"turn_id,omitempty"`
}

// wsEvent is a server frame. Type is "turn" (turn accepted, carries the turn
// id), "chunk", "error" or "summary".
type wsEvent struct {
	Type    string               `json:"type"`
	TurnID  string               `json:"turn_id,omitempty"`
	Text    string               `json:"text,omitempty"`
	Done    bool                 `json:"done,omitempty"`
	Error   string               `json:"error,omitempty"`
	Summary *core.SessionSummary `json:"summary,omitempty"`
}

// serveWS relays the chunk stream over a WebSocket. One turn runs at a time
// per connection; overlapping sends for the same conversation surface the
// engine's rejection as an error frame rather than corrupting state.
func (h *Handler) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // origin checking is a deployment concern
	})
	if err != nil {
		h.logger.Warn("websocket accept failed err=%v", err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "connection closed")

	ctx := r.Context()

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}

		var req wsRequest
		if err := json.Unmarshal(data, &req); err != nil {
			h.writeWS(ctx, conn, wsEvent{Type: "error", Error: "invalid frame"})
			continue
		}

		switch req.Type {
		case "message":
			h.wsTurn(ctx, conn, req)
		case "cancel":
			if err := h.coord.Cancel(req.TurnID); err != nil {
				h.writeWS(ctx, conn, wsEvent{Type: "error", TurnID: req.TurnID, Error: err.Error()})
			}
		case "close":
			h.wsClose(ctx, conn, req)
		default:
			h.writeWS(ctx, conn, wsEvent{Type: "error", Error: "unknown frame type"})
		}
	}
}

func (h *Handler) wsTurn(ctx context.Context, conn *websocket.Conn, req wsRequest) {
	if req.UserID == "" || req.ConversationID == "" || req.Message == "" {
		h.writeWS(ctx, conn, wsEvent{Type: "error", Error: "user_id, conversation_id and message are required"})
		return
	}

	turnID, chunks, errs, err := h.coord.HandleTurn(ctx, req.UserID, req.ConversationID, req.Message)
	if err != nil {
		h.writeWS(ctx, conn, wsEvent{Type: "error", Error: err.Error()})
		return
	}
	h.writeWS(ctx, conn, wsEvent{Type: "turn", TurnID: turnID})

	for chunks != nil || errs != nil {
		select {
		case c, ok := <-chunks:
			if !ok {
				chunks = nil
				continue
			}
			h.writeWS(ctx, conn, wsEvent{Type: "chunk", TurnID: turnID, Text: c.Text, Done: c.Done})
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			h.writeWS(ctx, conn, wsEvent{Type: "error", TurnID: turnID, Error: err.Error()})
		}
	}
}

func (h *Handler) wsClose(ctx context.Context, conn *websocket.Conn, req wsRequest) {
	summary, err := h.coord.CloseConversation(ctx, req.UserID, req.ConversationID)
	if err != nil {
		if errors.Is(err, core.ErrTurnInProgress) || errors.Is(err, core.ErrSessionClosed) {
			h.writeWS(ctx, conn, wsEvent{Type: "error", Error: err.Error()})
			return
		}
		h.logger.Error("close conversation failed conversation_id=%s err=%v", req.ConversationID, err)
		h.writeWS(ctx, conn, wsEvent{Type: "error", Error: "failed to close conversation"})
		return
	}
	h.writeWS(ctx, conn, wsEvent{Type: "summary", Summary: summary})
}

func (h *Handler) writeWS(ctx context.Context, conn *websocket.Conn, ev wsEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		h.logger.Debug("websocket write failed err=%v", err)
	}
}
