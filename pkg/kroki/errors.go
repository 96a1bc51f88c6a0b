package kroki

import "fmt"

// Error is returned for validation failures, non-2xx Kroki responses and
// transport errors. StatusCode is zero unless Kroki answered.
type Error struct {
	StatusCode int
	Message    string
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// maxErrorBody is how much of a failed response body is kept in an Error.
const maxErrorBody = 200

func httpError(status int, body []byte) *Error {
	text := []rune(string(body))
	if len(text) > maxErrorBody {
		text = text[:maxErrorBody]
	}
	return &Error{StatusCode: status, Message: fmt.Sprintf("Kroki HTTP %d: %s", status, string(text))}
}
