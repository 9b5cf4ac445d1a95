package gateway

import (
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"strings"
)

// Response is a fully read HTTP answer.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	URL        string
}

func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// IsJSON reports whether the declared content type is JSON.
func (r *Response) IsJSON() bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

// Err converts the response into the error taxonomy; nil for a usable 2xx.
// A 401 here is always a session-expired condition because the gateway has
// already spent its refresh attempt.
func (r *Response) Err() error {
	if r.StatusCode == http.StatusUnauthorized {
		return &SessionExpiredError{Status: r.StatusCode}
	}
	if len(r.Body) > 0 && !r.IsJSON() {
		return fmt.Errorf("%w: status %d, content type %q", ErrUnexpectedResponseFormat, r.StatusCode, r.Header.Get("Content-Type"))
	}
	if !r.OK() {
		return newStatusError(r.StatusCode, r.Body, bodyMessage(r.Body))
	}
	return nil
}

// Decode checks Err and unmarshals the body into out. A nil out only checks status.
func (r *Response) Decode(out any) error {
	if err := r.Err(); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if len(r.Body) == 0 {
		return fmt.Errorf("%w: empty body", ErrUnexpectedResponseFormat)
	}
	if err := json.Unmarshal(r.Body, out); err != nil {
		return fmt.Errorf("%w: %v", ErrUnexpectedResponseFormat, err)
	}
	return nil
}

func bodyMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if payload.Message != "" {
		return payload.Message
	}
	return payload.Error
}
