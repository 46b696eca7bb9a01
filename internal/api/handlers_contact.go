package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aslmarket/aslmatch/internal/domain"
	"github.com/aslmarket/aslmatch/internal/pkg/httputil"
)

func contactTarget(r *http.Request) domain.ContactTarget {
	return domain.ContactTarget{
		Type: domain.ContactTargetType(chi.URLParam(r, "type")),
		ID:   chi.URLParam(r, "targetID"),
	}
}

// CanViewContact handles GET /contact/{type}/{targetID}/can-view.
func (h *Handlers) CanViewContact(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	out, err := h.contacts.CheckCanView(r.Context(), a.ID, contactTarget(r))
	if err != nil {
		httputil.Fail(w, err)
		return
	}
	httputil.OK(w, out)
}

// ViewContact handles POST /contact/{type}/{targetID}/view.
func (h *Handlers) ViewContact(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	out, err := h.contacts.ViewContact(r.Context(), a.ID, contactTarget(r))
	if err != nil {
		httputil.Fail(w, err)
		return
	}
	httputil.OK(w, out)
}

// ContactLimits handles GET /contact/limits.
func (h *Handlers) ContactLimits(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	out, err := h.contacts.Limits(r.Context(), a.ID)
	if err != nil {
		httputil.Fail(w, err)
		return
	}
	httputil.OK(w, out)
}

// ContactHistory handles GET /contact/history.
func (h *Handlers) ContactHistory(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	out, err := h.contacts.History(r.Context(), a.ID)
	if err != nil {
		httputil.Fail(w, err)
		return
	}
	httputil.OK(w, map[string]interface{}{"views": out})
}
