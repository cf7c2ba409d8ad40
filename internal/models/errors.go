package models

// Stable error codes carried on error frames.
const (
	CodeMissingCredential = "MISSING_CREDENTIAL"
	CodeInvalidCredential = "INVALID_CREDENTIAL"
	CodeBadPayload        = "BAD_PAYLOAD"
	CodeEmptyMessage      = "EMPTY_MESSAGE"
	CodeNotMember         = "NOT_MEMBER"
	CodeMessageNotFound   = "MESSAGE_NOT_FOUND"
	CodePersistenceFailed = "PERSISTENCE_FAILED"
	CodeRateLimited       = "RATE_LIMITED"
)
