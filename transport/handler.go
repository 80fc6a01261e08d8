// Package transport is the thin HTTP surface over the engine. The engine
// contract itself is transport-agnostic; this package only relays the chunk
// stream to clients and translates engine errors into HTTP/WebSocket events.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/amandahq/converse/agent"
	"github.com/amandahq/converse/coordinator"
	"github.com/amandahq/converse/core"
	"github.com/amandahq/converse/logging"
)

// MessageLister serves the read side of message history.
type MessageLister interface {
	ListMessages(ctx context.Context, conversationID string) ([]core.Message, error)
}

// Handler exposes the chat endpoints.
type Handler struct {
	coord  *coordinator.Coordinator
	lister MessageLister
	logger logging.Logger
}

// NewHandler creates a Handler. lister may be nil when no durable message
// store is wired.
func NewHandler(coord *coordinator.Coordinator, lister MessageLister, logger logging.Logger) *Handler {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Handler{coord: coord, lister: lister, logger: logger}
}

// Routes builds the chi router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.Recoverer)

	r.Get("/healthz", h.health)
	r.Route("/api/chat", func(r chi.Router) {
		r.Get("/greeting", h.greeting)
		r.Post("/{conversationID}/message", h.postMessage)
		r.Get("/{conversationID}/messages", h.listMessages)
		r.Post("/close", h.closeConversation)
	})
	r.Get("/ws/chat", h.serveWS)

	return r
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// greeting returns the opening message clients show before the first turn.
func (h *Handler) greeting(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, map[string]string{"greeting": agent.Greeting})
}

type messageRequest struct {
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

type chunkEvent struct {
	Text  string `json:"text"`
	Done  bool   `json:"done"`
	Error string `json:"error,omitempty"`
}

// postMessage runs one turn and relays its chunk stream as NDJSON. The last
// line is either the done chunk or an error event; client disconnect cancels
// the turn through the request context.
func (h *Handler) postMessage(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")

	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" || req.Message == "" {
		Error(w, http.StatusBadRequest, "user_id and message are required")
		return
	}

	turnID, chunks, errs, err := h.coord.HandleTurn(r.Context(), req.UserID, conversationID, req.Message)
	if err != nil {
		if errors.Is(err, core.ErrTurnInProgress) {
			Error(w, http.StatusConflict, "a turn is already in progress for this conversation")
			return
		}
		h.logger.Error("handle turn failed conversation_id=%s err=%v", conversationID, err)
		Error(w, http.StatusInternalServerError, "failed to start turn")
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("X-Turn-ID", turnID)
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)

	enc := json.NewEncoder(w)
	writeEvent := func(ev chunkEvent) {
		if err := enc.Encode(ev); err != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}

	for chunks != nil || errs != nil {
		select {
		case c, ok := <-chunks:
			if !ok {
				chunks = nil
				continue
			}
			writeEvent(chunkEvent{Text: c.Text, Done: c.Done})
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			writeEvent(chunkEvent{Error: err.Error()})
		}
	}
}

func (h *Handler) listMessages(w http.ResponseWriter, r *http.Request) {
	if h.lister == nil {
		Error(w, http.StatusNotFound, "message history is not persisted")
		return
	}
	conversationID := chi.URLParam(r, "conversationID")
	msgs, err := h.lister.ListMessages(r.Context(), conversationID)
	if err != nil {
		h.logger.Error("list messages failed conversation_id=%s err=%v", conversationID, err)
		Error(w, http.StatusInternalServerError, "failed to list messages")
		return
	}
	JSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

type closeRequest struct {
	UserID         string `json:"user_id"`
	ConversationID string `json:"conversation_id"`
}

func (h *Handler) closeConversation(w http.ResponseWriter, r *http.Request) {
	var req closeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" || req.ConversationID == "" {
		Error(w, http.StatusBadRequest, "user_id and conversation_id are required")
		return
	}

	summary, err := h.coord.CloseConversation(r.Context(), req.UserID, req.ConversationID)
	switch {
	case errors.Is(err, core.ErrTurnInProgress):
		Error(w, http.StatusConflict, "a turn is still in progress")
		return
	case errors.Is(err, core.ErrSessionClosed):
		Error(w, http.StatusNotFound, "no such conversation")
		return
	case err != nil:
		h.logger.Error("close conversation failed conversation_id=%s err=%v", req.ConversationID, err)
		Error(w, http.StatusInternalServerError, "failed to close conversation")
		return
	}

	JSON(w, http.StatusOK, map[string]any{"summary": summary})
}
