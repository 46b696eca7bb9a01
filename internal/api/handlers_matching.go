package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/aslmarket/aslmatch/internal/apperr"
	"github.com/aslmarket/aslmatch/internal/domain"
	"github.com/aslmarket/aslmatch/internal/pkg/httputil"
	"github.com/aslmarket/aslmatch/internal/service/matching"
)

type createRequestBody struct {
	matching.RequestDetails
	ExpiryPolicy domain.ExpiryPolicy `json:"expiry_policy"`
}

// CreateRequest handles POST /matching/requests.
func (h *Handlers) CreateRequest(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var body createRequestBody
	if !httputil.Decode(w, r, &body) {
		return
	}
	if body.ExpiryPolicy == 0 {
		body.ExpiryPolicy = domain.Expiry7Days
	}
	req, err := h.matching.CreateRequest(r.Context(), a.ID, body.RequestDetails, body.ExpiryPolicy)
	if err != nil {
		httputil.Fail(w, err)
		return
	}
	httputil.Created(w, req)
}

// ListRequests handles GET /matching/requests. Suppliers see their own
// requests, visitors the requests available to them; scope overrides that.
func (h *Handlers) ListRequests(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	scope := r.URL.Query().Get("scope")
	if scope == "" {
		scope = "mine"
		if a.Role == domain.RoleVisitor {
			scope = "available"
		}
	}
	page := listWindow(r, 20, 100)
	f := matching.ListFilter{Status: r.URL.Query().Get("status"), Limit: page.Limit, Offset: page.Offset}

	var (
		list  []domain.MatchingRequest
		total int
		err   error
	)
	switch {
	case scope == "mine" && a.Role == domain.RoleSupplier:
		list, total, err = h.matching.ListForSupplier(r.Context(), a.ID, f)
	case scope == "available" && a.Role == domain.RoleVisitor:
		list, total, err = h.matching.ListAvailable(r.Context(), a.ID, f)
	default:
		httputil.BadRequest(w, "scope "+scope+" is not available to "+string(a.Role)+"s")
		return
	}
	if err != nil {
		httputil.Fail(w, err)
		return
	}
	httputil.OK(w, newListPage(list, page, total))
}

// GetRequest handles GET /matching/requests/{id}.
func (h *Handlers) GetRequest(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	view, err := h.matching.Get(r.Context(), chi.URLParam(r, "id"), a)
	if err != nil {
		httputil.Fail(w, err)
		return
	}
	httputil.OK(w, view)
}

type patchRequestBody struct {
	Op           string              `json:"op"`
	ExpiryPolicy domain.ExpiryPolicy `json:"expiry_policy"`
	matching.Patch
}

// PatchRequest handles PATCH /matching/requests/{id}. The op field selects
// edit, extend, cancel or complete.
func (h *Handlers) PatchRequest(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var body patchRequestBody
	if !httputil.Decode(w, r, &body) {
		return
	}
	id := chi.URLParam(r, "id")

	op := strings.ToLower(strings.TrimSpace(body.Op))
	if op != "complete" && a.Role != domain.RoleSupplier {
		httputil.Fail(w, matching.ErrNotOwner)
		return
	}

	var (
		req *domain.MatchingRequest
		err error
	)
	switch op {
	case "edit":
		req, err = h.matching.Edit(r.Context(), id, a.ID, body.Patch)
	case "extend":
		req, err = h.matching.Extend(r.Context(), id, a.ID, body.ExpiryPolicy)
	case "cancel":
		req, err = h.matching.Cancel(r.Context(), id, a.ID)
	case "complete":
		req, err = h.matching.Complete(r.Context(), id, a.ID)
	default:
		err = apperr.Validation("unknown op %q", body.Op)
	}
	if err != nil {
		httputil.Fail(w, err)
		return
	}
	httputil.OK(w, req)
}

// SuggestedVisitors handles GET /matching/requests/{id}/suggested-visitors.
func (h *Handlers) SuggestedVisitors(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	out, err := h.matching.SuggestedVisitors(r.Context(), chi.URLParam(r, "id"), a.ID)
	if err != nil {
		httputil.Fail(w, err)
		return
	}
	if out == nil {
		out = []domain.ScoredVisitor{}
	}
	httputil.OK(w, map[string]interface{}{"visitors": out})
}

type respondBody struct {
	Action  domain.ResponseAction `json:"action"`
	Message string                `json:"message"`
}

// Respond handles POST /matching/requests/{id}/responses.
func (h *Handlers) Respond(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var body respondBody
	if !httputil.Decode(w, r, &body) {
		return
	}
	resp, err := h.matching.Respond(r.Context(), chi.URLParam(r, "id"), a.ID, body.Action, body.Message)
	if err != nil {
		httputil.Fail(w, err)
		return
	}
	httputil.Created(w, resp)
}
