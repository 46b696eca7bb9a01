package matching

import "github.com/aslmarket/aslmatch/internal/apperr"

// Sentinel errors for the matching service layer.
var (
	ErrNotFound        = apperr.New(apperr.KindNotFound, "matching request not found")
	ErrAlreadyReserved = apperr.New(apperr.KindAlreadyReserved, "request already reserved by another visitor")
	ErrNotOwner        = apperr.New(apperr.KindNotAuthorized, "only the supplier who posted the request can do this")
	ErrNotParticipant  = apperr.New(apperr.KindNotAuthorized, "actor is not a participant of this request")
	ErrExpired         = apperr.New(apperr.KindInvalidState, "request has expired")
	ErrStale           = apperr.New(apperr.KindInvalidState, "request was modified concurrently")
	ErrBusy            = apperr.New(apperr.KindTransient, "request is busy, try again")
)
