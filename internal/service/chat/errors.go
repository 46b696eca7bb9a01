package chat

import "github.com/aslmarket/aslmatch/internal/apperr"

// Sentinel errors for the chat service layer.
var (
	ErrNotFound       = apperr.New(apperr.KindNotFound, "conversation not found")
	ErrMessageMissing = apperr.New(apperr.KindNotFound, "message not found")
	ErrNotParticipant = apperr.New(apperr.KindNotAuthorized, "actor is not a participant of this conversation")
	ErrClosed         = apperr.New(apperr.KindConversationClosed, "conversation is closed")
)
