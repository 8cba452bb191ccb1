package rest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies a successful response body.
type Kind int

const (
	KindEmpty Kind = iota
	KindJSON
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindJSON:
		return "json"
	case KindText:
		return "text"
	default:
		return "empty"
	}
}

// Response is a successful API response.
type Response struct {
	Status int
	Header http.Header
	Kind   Kind
	Body   []byte
}

// Decode unmarshals a JSON response into v.
func (r *Response) Decode(v any) error {
	if r.Kind != KindJSON {
		return fmt.Errorf("decode response: body is %s, not json", r.Kind)
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

// Text returns the body as a string.
func (r *Response) Text() string {
	return string(r.Body)
}

func classify(status int, contentLength int64, header http.Header) Kind {
	if status == http.StatusNoContent || contentLength == 0 || header.Get("Content-Length") == "0" {
		return KindEmpty
	}
	if strings.Contains(header.Get("Content-Type"), "application/json") {
		return KindJSON
	}
	return KindText
}
