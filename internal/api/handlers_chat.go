package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/aslmarket/aslmatch/internal/apperr"
	"github.com/aslmarket/aslmatch/internal/domain"
	"github.com/aslmarket/aslmatch/internal/pkg/httputil"
)

type messagesPage struct {
	ConversationID string           `json:"conversation_id"`
	Messages       []domain.Message `json:"messages"`
	// LastSeq is the cursor for the next poll.
	LastSeq int64 `json:"last_seq"`
}

// ListMessages handles GET /matching/requests/{id}/messages?after_seq=N.
func (h *Handlers) ListMessages(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	conv, err := h.chat.ConversationForRequest(r.Context(), chi.URLParam(r, "id"), a.ID)
	if err != nil {
		httputil.Fail(w, err)
		return
	}

	var after int64
	if v := r.URL.Query().Get("after_seq"); v != "" {
		after, err = strconv.ParseInt(v, 10, 64)
		if err != nil {
			httputil.BadRequest(w, "after_seq must be an integer")
			return
		}
	}
	msgs, err := h.chat.Messages(r.Context(), conv.ID, a.ID, after, httputil.QueryInt(r, "limit", 0))
	if err != nil {
		httputil.Fail(w, err)
		return
	}

	last := after
	if n := len(msgs); n > 0 {
		last = msgs[n-1].Seq
	}
	httputil.OK(w, messagesPage{ConversationID: conv.ID, Messages: msgs, LastSeq: last})
}

type postMessageBody struct {
	Body     string `json:"body"`
	ImageURL string `json:"image_url"`
}

// PostMessage handles POST /matching/requests/{id}/messages.
func (h *Handlers) PostMessage(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var body postMessageBody
	if !httputil.Decode(w, r, &body) {
		return
	}
	requestID := chi.URLParam(r, "id")
	if img := strings.TrimSpace(body.ImageURL); img != "" && h.attachments != nil && !h.attachments.Owns(requestID, img) {
		httputil.Fail(w, apperr.Validation("image_url must come from an upload of this request"))
		return
	}

	conv, err := h.chat.ConversationForRequest(r.Context(), requestID, a.ID)
	if err != nil {
		httputil.Fail(w, err)
		return
	}
	msg, err := h.chat.PostMessage(r.Context(), conv.ID, a.ID, body.Body, body.ImageURL)
	if err != nil {
		httputil.Fail(w, err)
		return
	}
	httputil.Created(w, msg)
}

type markReadBody struct {
	MessageID string `json:"message_id"`
}

// MarkMessagesRead handles POST /matching/requests/{id}/messages/read.
func (h *Handlers) MarkMessagesRead(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var body markReadBody
	if !httputil.Decode(w, r, &body) {
		return
	}
	conv, err := h.chat.ConversationForRequest(r.Context(), chi.URLParam(r, "id"), a.ID)
	if err != nil {
		httputil.Fail(w, err)
		return
	}
	n, err := h.chat.MarkRead(r.Context(), conv.ID, a.ID, body.MessageID)
	if err != nil {
		httputil.Fail(w, err)
		return
	}
	httputil.OK(w, map[string]int{"marked": n})
}

// ListConversations handles GET /matching/conversations.
func (h *Handlers) ListConversations(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	out, err := h.chat.Conversations(r.Context(), a.ID)
	if err != nil {
		httputil.Fail(w, err)
		return
	}
	httputil.OK(w, map[string]interface{}{"conversations": out})
}

type uploadBody struct {
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// CreateAttachment handles POST /matching/requests/{id}/attachments and
// returns a presigned S3 upload for a chat image.
func (h *Handlers) CreateAttachment(w http.ResponseWriter, r *http.Request) {
	if h.attachments == nil {
		httputil.Error(w, http.StatusNotImplemented, "attachments are not enabled")
		return
	}
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var body uploadBody
	if !httputil.Decode(w, r, &body) {
		return
	}
	requestID := chi.URLParam(r, "id")
	// Uploads follow the chat gate: participants of a reserved request only.
	if _, err := h.chat.ConversationForRequest(r.Context(), requestID, a.ID); err != nil {
		httputil.Fail(w, err)
		return
	}
	up, err := h.attachments.UploadURL(r.Context(), requestID, a.ID, body.ContentType, body.Size)
	if err != nil {
		httputil.Fail(w, err)
		return
	}
	httputil.Created(w, up)
}
