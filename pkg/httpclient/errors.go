package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// StatusError is a non-2xx response from an upstream API.
type StatusError struct {
	StatusCode int
	Name       string
	Message    string
}

func (e *StatusError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("upstream status %d (%s): %s", e.StatusCode, e.Name, e.Message)
	}
	return fmt.Sprintf("upstream status %d: %s", e.StatusCode, e.Message)
}

// Temporary reports whether the request may succeed later.
func (e *StatusError) Temporary() bool {
	return retryableStatus(e.StatusCode)
}

// upstreamError matches the {"name","message"} error bodies common to JSON
// APIs, including Resend's.
type upstreamError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

// ParseResponseError reads a non-2xx response into a *StatusError. The body is
// consumed and closed.
func ParseResponseError(resp *http.Response) error {
	defer Drain(resp)

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return &StatusError{StatusCode: resp.StatusCode, Message: "read body: " + err.Error()}
	}

	se := &StatusError{StatusCode: resp.StatusCode, Message: string(body)}
	var ue upstreamError
	if json.Unmarshal(body, &ue) == nil {
		se.Name = ue.Name
		switch {
		case ue.Message != "":
			se.Message = ue.Message
		case ue.Error != "":
			se.Message = ue.Error
		}
	}
	if se.Message == "" {
		se.Message = http.StatusText(resp.StatusCode)
	}
	return se
}
