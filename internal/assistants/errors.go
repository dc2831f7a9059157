package assistants

import (
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// RemoteError describes a failed remote operation. StatusCode is 0 when no
// HTTP response was received.
type RemoteError struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *RemoteError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: API error [%d]: %s", e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *RemoteError) Unwrap() error { return e.Err }

func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	re := &RemoteError{Op: op, Err: err, Message: err.Error()}

	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		re.StatusCode = apiErr.HTTPStatusCode
		re.Message = apiErr.Message
	case errors.As(err, &reqErr):
		re.StatusCode = reqErr.HTTPStatusCode
		if reqErr.Err != nil {
			re.Message = reqErr.Err.Error()
		}
	}
	return re
}
