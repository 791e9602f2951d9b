package chat

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	chatService "github.com/parley-app/parley/internal/service/chat"
	"github.com/parley-app/parley/pkg/utils"
)

// StatusClientClosedRequest is the nginx-style status for a send the
// client aborted mid-flight. Distinct from 500 so clients never render a
// cancellation as a generic failure.
const StatusClientClosedRequest = 499

const (
	kindValidation  = "validation"
	kindNotFound    = "not_found"
	kindCancelled   = "cancelled"
	kindUpstream    = "upstream_unavailable"
	kindInternal    = "internal"
	internalMessage = "something went wrong"
)

// Handler exposes conversations and the send pipeline over HTTP.
type Handler struct {
	svc    *chatService.Service
	logger *zap.Logger
}

func New(svc *chatService.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// RegisterRoutes mounts the conversation routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/conversations", func(r chi.Router) {
		r.Post("/", h.handleCreate)
		r.Get("/", h.handleList)
		r.Get("/{conversationID}", h.handleGet)
		r.Patch("/{conversationID}", h.handleRename)
		r.Delete("/{conversationID}", h.handleDelete)
		r.Post("/{conversationID}/messages", h.handleSend)
	})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Title string `json:"title"`
	}
	// An empty body is fine: the store assigns the "Conversation #N" title.
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil && !errors.Is(err, io.EOF) {
		utils.RespondError(w, http.StatusBadRequest, kindValidation, "invalid request body")
		return
	}

	conv, err := h.svc.CreateConversation(r.Context(), payload.Title)
	if err != nil {
		h.respondFailure(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, conv)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	conversations, err := h.svc.ListConversations(r.Context())
	if err != nil {
		h.respondFailure(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, conversations)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "conversationID")
	cursor := r.URL.Query().Get("cursor")

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			utils.RespondError(w, http.StatusBadRequest, kindValidation, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	page, err := h.svc.GetConversationPage(r.Context(), id, cursor, limit)
	if err != nil {
		h.respondFailure(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, page)
}

func (h *Handler) handleRename(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "conversationID")

	var payload struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, kindValidation, "invalid request body")
		return
	}

	conv, err := h.svc.RenameConversation(r.Context(), id, payload.Title)
	if err != nil {
		h.respondFailure(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, conv)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "conversationID")
	if err := h.svc.DeleteConversation(r.Context(), id); err != nil {
		h.respondFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSend(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "conversationID")

	var payload struct {
		Content          string `json:"content"`
		RetryOfMessageID string `json:"retryOfMessageId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, kindValidation, "invalid request body")
		return
	}

	result, err := h.svc.SendMessage(r.Context(), id, payload.Content, payload.RetryOfMessageID)
	if err != nil {
		h.respondFailure(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, result)
}

// respondFailure maps the pipeline error taxonomy onto HTTP statuses.
// Unanticipated errors become a generic 500; detail stays in the log.
func (h *Handler) respondFailure(w http.ResponseWriter, err error) {
	var upstream *chatService.UpstreamError
	switch {
	case errors.Is(err, chatService.ErrValidation):
		utils.RespondError(w, http.StatusBadRequest, kindValidation, err.Error())
	case errors.Is(err, chatService.ErrNotFound):
		utils.RespondError(w, http.StatusNotFound, kindNotFound, err.Error())
	case errors.Is(err, chatService.ErrCancelled):
		utils.RespondError(w, StatusClientClosedRequest, kindCancelled, "send cancelled")
	case errors.As(err, &upstream):
		utils.RespondJSON(w, http.StatusBadGateway, utils.ErrorBody{
			Error:     "completion provider unavailable",
			Kind:      kindUpstream,
			MessageID: upstream.UserMessageID,
		})
	default:
		h.logger.Error("request failed", zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, kindInternal, internalMessage)
	}
}
