package operations

import "errors"

type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindForbidden
	KindConflict
	KindCapacityExceeded
	KindInvalidInput
	KindUploadFailure
	KindUnauthenticated
)

const (
	ErrClassNotFound       = "class_not_found"
	ErrExerciseNotFound    = "exercise_not_found"
	ErrProfileNotFound     = "profile_not_found"
	ErrSubmissionNotFound  = "submission_not_found"
	ErrForbidden           = "forbidden"
	ErrAlreadyMember       = "already_member"
	ErrAlreadyPending      = "already_pending"
	ErrOwnerCannotJoin     = "owner_cannot_join"
	ErrCapacityExceeded    = "capacity_exceeded"
	ErrCapacityBelowRoster = "capacity_below_roster"
	ErrNotInQueue          = "not_in_queue"
	ErrNotAMember          = "not_a_member"
	ErrAlreadySubmitted    = "already_submitted"
	ErrAlreadyDeleted      = "already_deleted"
	ErrHasSubmissions      = "has_submissions"
	ErrInvalidDueDate      = "invalid_due_date"
	ErrInvalidAnswer       = "invalid_answer"
	ErrAnswerCountMismatch = "answer_count_mismatch"
	ErrMissingContent      = "missing_content"
	ErrMissingFile         = "missing_file"
	ErrPastDue             = "past_due"
	ErrExerciseClosed      = "exercise_closed"
	ErrInvalidGrade        = "invalid_grade"
	ErrUploadFailed        = "upload_failed"
	ErrInvalidRequest      = "invalid_request"
	ErrInvalidFileType     = "invalid_file_type"
	ErrFileTooLarge        = "file_too_large"
	ErrTooManyFiles        = "too_many_files"
)

// Error is an expected workflow failure. Anything that is not an *Error is
// treated as an internal fault by the transport layers.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Fields  []string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Code + ": " + e.Message
	}
	return e.Code
}

func NotFound(code string) *Error {
	return &Error{Kind: KindNotFound, Code: code}
}

func Forbidden(code string) *Error {
	return &Error{Kind: KindForbidden, Code: code}
}

func Conflict(code string) *Error {
	return &Error{Kind: KindConflict, Code: code}
}

func CapacityExceeded() *Error {
	return &Error{Kind: KindCapacityExceeded, Code: ErrCapacityExceeded}
}

func Invalid(code, message string) *Error {
	return &Error{Kind: KindInvalidInput, Code: code, Message: message}
}

// InvalidFields reports a request that failed validation on one or more
// fields. Each entry of fields is a human readable message.
func InvalidFields(fields []string) *Error {
	return &Error{Kind: KindInvalidInput, Code: ErrInvalidRequest, Message: "validation failed", Fields: fields}
}

func UploadFailure(message string) *Error {
	return &Error{Kind: KindUploadFailure, Code: ErrUploadFailed, Message: message}
}

func (e *Error) WithMessage(message string) *Error {
	out := *e
	out.Message = message
	return &out
}

// As extracts an *Error from err.
func As(err error) (*Error, bool) {
	var opErr *Error
	if errors.As(err, &opErr) {
		return opErr, true
	}
	return nil, false
}

// IsCode reports whether err is an operation error carrying code.
func IsCode(err error, code string) bool {
	opErr, ok := As(err)
	return ok && opErr.Code == code
}
