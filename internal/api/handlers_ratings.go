package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aslmarket/aslmatch/internal/pkg/httputil"
	"github.com/aslmarket/aslmatch/internal/service/rating"
)

type rateBody struct {
	// RatedID defaults to the other participant.
	RatedID string `json:"rated_id"`
	Score   int    `json:"score"`
	Comment string `json:"comment"`
}

// CreateRating handles POST /matching/requests/{id}/ratings.
func (h *Handlers) CreateRating(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var body rateBody
	if !httputil.Decode(w, r, &body) {
		return
	}
	requestID := chi.URLParam(r, "id")

	if body.RatedID == "" {
		req, err := h.matching.Request(r.Context(), requestID)
		if err != nil {
			httputil.Fail(w, err)
			return
		}
		other, _, ok := req.Counterpart(a.ID)
		if !ok {
			httputil.Fail(w, rating.ErrNotParticipant)
			return
		}
		body.RatedID = other
	}

	out, err := h.ratings.Rate(r.Context(), requestID, a.ID, body.RatedID, body.Score, body.Comment)
	if err != nil {
		httputil.Fail(w, err)
		return
	}
	httputil.Created(w, out)
}

// RequestRatings handles GET /matching/requests/{id}/ratings.
func (h *Handlers) RequestRatings(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	out, err := h.ratings.ForRequest(r.Context(), chi.URLParam(r, "id"), a.ID)
	if err != nil {
		httputil.Fail(w, err)
		return
	}
	httputil.OK(w, map[string]interface{}{"ratings": out})
}

// UserRatings handles GET /matching/ratings/users/{userID}.
func (h *Handlers) UserRatings(w http.ResponseWriter, r *http.Request) {
	page := listWindow(r, 20, 100)
	out, err := h.ratings.ForUser(r.Context(), chi.URLParam(r, "userID"), page.Limit, page.Offset)
	if err != nil {
		httputil.Fail(w, err)
		return
	}
	httputil.OK(w, out)
}
