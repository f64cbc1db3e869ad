package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    string
}

func NewRequest(method, requestURL string) *Request {
	return &Request{
		Method:  method,
		URL:     requestURL,
		Headers: make(map[string]string),
	}
}

// NewJSONRequest builds a request whose body is payload encoded as JSON.
// Non-ASCII text is kept as-is rather than \u-escaped.
func NewJSONRequest(method, requestURL string, payload any) (*Request, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload); err != nil {
		return nil, fmt.Errorf("encoding request body: %w", err)
	}

	r := NewRequest(method, requestURL)
	r.SetBody(strings.TrimSuffix(buf.String(), "\n"))
	r.SetHeader("Content-Type", "application/json")
	return r, nil
}

func (r *Request) SetHeader(key, value string) *Request {
	r.Headers[key] = value
	return r
}

func (r *Request) SetBody(body string) *Request {
	r.Body = body
	return r
}

// JoinURL appends path to base, keeping exactly one slash between them.
// A trailing slash on path is preserved ("/api/" stays "/api/").
func JoinURL(base, path string) string {
	if path == "" {
		return base
	}
	u, err := url.Parse(base)
	if err != nil {
		return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(path, "/")
	return u.String()
}
