package apiclient

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// Request describes one API call relative to the client's base URL.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any // JSON encoded when non-nil
	Header http.Header

	// Retry marks a request that has already been resent after a token
	// refresh. A 401 on a retried request is returned as is.
	Retry bool
}

// Response is a fully read 2xx response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Decode unmarshals the JSON body into v. An empty body leaves v untouched.
func (r *Response) Decode(v any) error {
	if v == nil || len(r.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
