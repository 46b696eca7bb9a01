package api

import (
	"net/http"

	"github.com/aslmarket/aslmatch/internal/apperr"
	"github.com/aslmarket/aslmatch/internal/attachments"
	"github.com/aslmarket/aslmatch/internal/auth"
	"github.com/aslmarket/aslmatch/internal/domain"
	"github.com/aslmarket/aslmatch/internal/pkg/httputil"
	"github.com/aslmarket/aslmatch/internal/service/chat"
	"github.com/aslmarket/aslmatch/internal/service/contact"
	"github.com/aslmarket/aslmatch/internal/service/matching"
	"github.com/aslmarket/aslmatch/internal/service/notification"
	"github.com/aslmarket/aslmatch/internal/service/rating"
)

// Services are the domain services exposed over HTTP.
type Services struct {
	Matching *matching.Service
	Chat     *chat.Service
	Ratings  *rating.Service
	Contacts *contact.Service
	Inbox    *notification.Inbox
	// Attachments is nil when S3 uploads are disabled.
	Attachments *attachments.Service
}

// Handlers contains the HTTP handlers.
type Handlers struct {
	matching    *matching.Service
	chat        *chat.Service
	ratings     *rating.Service
	contacts    *contact.Service
	inbox       *notification.Inbox
	attachments *attachments.Service
}

// NewHandlers creates handlers over svc.
func NewHandlers(svc Services) *Handlers {
	return &Handlers{
		matching:    svc.Matching,
		chat:        svc.Chat,
		ratings:     svc.Ratings,
		contacts:    svc.Contacts,
		inbox:       svc.Inbox,
		attachments: svc.Attachments,
	}
}

// actor returns the caller resolved by auth.RequireAuth. Routes are only
// mounted behind that middleware, so a missing actor is a wiring bug.
func actor(w http.ResponseWriter, r *http.Request) (domain.Actor, bool) {
	a, ok := auth.ActorFrom(r.Context())
	if !ok {
		httputil.Unauthorized(w, "missing actor")
	}
	return a, ok
}

// requireRole rejects callers whose role is not listed.
func requireRole(roles ...domain.ActorRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			a, ok := actor(w, r)
			if !ok {
				return
			}
			for _, role := range roles {
				if a.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			httputil.Fail(w, apperr.Newf(apperr.KindNotAuthorized, "this action is not available to %ss", a.Role))
		})
	}
}
