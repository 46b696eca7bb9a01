package contact

import "github.com/aslmarket/aslmatch/internal/apperr"

// Sentinel errors for the contact service layer.
var (
	ErrQuotaExceeded = apperr.New(apperr.KindQuotaExceeded, "daily contact view limit reached")
	ErrNotFound      = apperr.New(apperr.KindNotFound, "contact not found")
)
