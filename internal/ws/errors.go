package ws

import "messaging-core/internal/models"

// opError is a single-operation failure carrying the stable wire code. It is
// fatal to the invoking operation only and surfaces as one error event to the
// connection that caused it.
type opError struct {
	code    string
	message string
}

func (e *opError) Error() string { return e.message }

func errBadPayload() *opError {
	return &opError{code: models.CodeBadPayload, message: "malformed payload"}
}

func errEmptyMessage() *opError {
	return &opError{code: models.CodeEmptyMessage, message: "message content and attachment are both empty"}
}

func errNotMember() *opError {
	return &opError{code: models.CodeNotMember, message: "not a member of this conversation"}
}

func errMessageNotFound() *opError {
	return &opError{code: models.CodeMessageNotFound, message: "message not found"}
}

func errPersistenceFailed() *opError {
	return &opError{code: models.CodePersistenceFailed, message: "storage operation failed"}
}

func errRateLimited() *opError {
	return &opError{code: models.CodeRateLimited, message: "too many operations"}
}
