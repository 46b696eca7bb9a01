package rating

import "github.com/aslmarket/aslmatch/internal/apperr"

// Sentinel errors for the rating service layer.
var (
	ErrDuplicate      = apperr.New(apperr.KindDuplicateRating, "you already rated this request")
	ErrNotParticipant = apperr.New(apperr.KindNotAuthorized, "only the participants of a request can rate each other")
)
