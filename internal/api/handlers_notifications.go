package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aslmarket/aslmatch/internal/pkg/httputil"
)

// ListNotifications handles GET /notifications?unread=true.
func (h *Handlers) ListNotifications(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	page := listWindow(r, 20, 100)
	unreadOnly := r.URL.Query().Get("unread") == "true"
	out, err := h.inbox.List(r.Context(), a.ID, unreadOnly, page.Limit, page.Offset)
	if err != nil {
		httputil.Fail(w, err)
		return
	}
	httputil.OK(w, out)
}

// UnreadNotifications handles GET /notifications/unread-count.
func (h *Handlers) UnreadNotifications(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	n, err := h.inbox.UnreadCount(r.Context(), a.ID)
	if err != nil {
		httputil.Fail(w, err)
		return
	}
	httputil.OK(w, map[string]int{"unread_count": n})
}

// MarkNotificationRead handles POST /notifications/{id}/read.
func (h *Handlers) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	if err := h.inbox.MarkRead(r.Context(), a.ID, chi.URLParam(r, "id")); err != nil {
		httputil.Fail(w, err)
		return
	}
	httputil.NoContent(w)
}

// MarkAllNotificationsRead handles POST /notifications/read-all.
func (h *Handlers) MarkAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	n, err := h.inbox.MarkAllRead(r.Context(), a.ID)
	if err != nil {
		httputil.Fail(w, err)
		return
	}
	httputil.OK(w, map[string]int{"updated": n})
}
