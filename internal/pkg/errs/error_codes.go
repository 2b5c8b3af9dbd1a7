package errs

// 1xxx: General Request Handling Errors
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrUnsupportedMediaType indicates an unsupported Content-Type header.
	ErrUnsupportedMediaType = 1002

	// ErrInvalidJSONFormat indicates a malformed request body.
	ErrInvalidJSONFormat = 1003

	// ErrExtraContentInBody indicates trailing content after valid JSON.
	ErrExtraContentInBody = 1004

	// ErrRateLimitExceeded indicates the caller exceeded the request rate.
	ErrRateLimitExceeded = 1005
)

// 2xxx: Conversation and Messaging Errors
const (
	// ErrConversationNotFound indicates the referenced conversation does not exist.
	ErrConversationNotFound = 2101

	// ErrNotParticipant indicates a join or send attempt by a user who is not
	// in the conversation's participant list. No state is mutated.
	ErrNotParticipant = 2102

	// ErrInvalidStatus indicates a presence status outside the enum
	// (online, hidden, busy, offline). Rejected, never stored.
	ErrInvalidStatus = 2103

	// ErrMessageTextInvalid indicates an empty or oversized message text.
	ErrMessageTextInvalid = 2201

	// ErrConversationInvalid indicates an invalid participant set at creation.
	ErrConversationInvalid = 2301
)

// 3xxx: User, Session, and Security Errors
const (
	// ErrUnauthorized indicates a missing or invalid identity token.
	ErrUnauthorized = 3001

	// ErrInvalidUsername indicates the username fails format validation.
	ErrInvalidUsername = 3002

	// ErrInvalidPassword indicates the password fails length validation.
	ErrInvalidPassword = 3003

	// ErrUserAlreadyExists indicates the username is already taken.
	ErrUserAlreadyExists = 3004

	// ErrInvalidCredentials indicates a failed username/password check.
	ErrInvalidCredentials = 3005

	// ErrUserNotFound indicates the referenced account does not exist.
	ErrUserNotFound = 3006

	// ErrAlreadyLoggedIn indicates a register/login attempt with a valid session.
	ErrAlreadyLoggedIn = 3007
)

// 4xxx: File Storage Errors
const (
	// ErrFileSizeTooLarge indicates the declared upload exceeds the size cap.
	ErrFileSizeTooLarge = 4001

	// ErrFileTypeInvalid indicates a disallowed file extension or MIME type.
	ErrFileTypeInvalid = 4002

	// ErrFileStorageFailed indicates the storage backend rejected the operation.
	ErrFileStorageFailed = 4003
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown represents an unclassified internal error.
	ErrUnknown = 5000
)
