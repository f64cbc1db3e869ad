package http

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Get(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GET", r.Method)
		assert.Equal(t, "/api/", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"message": "hello"}`))
	}))
	defer server.Close()

	client := NewClient()
	resp, err := client.Get(context.Background(), server.URL+"/api/", nil)

	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header("Content-Type"))
	assert.Contains(t, resp.BodyString(), "hello")
}

func TestClient_Post(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "invalid json data", string(body))
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	client := NewClient()
	resp, err := client.Post(context.Background(), server.URL, "invalid json data", map[string]string{
		"Content-Type": "application/json",
	})

	require.NoError(t, err)
	assert.Equal(t, 422, resp.StatusCode)
}

func TestClient_PostJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"nom":"Robert Côté","services":["support"]}`, string(body))
		assert.Contains(t, string(body), "Côté")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient()
	resp, err := client.PostJSON(context.Background(), server.URL, map[string]any{
		"nom":      "Robert Côté",
		"services": []string{"support"},
	})

	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}

func TestClient_WithTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(WithTimeout(50 * time.Millisecond))
	_, err := client.Get(context.Background(), server.URL, nil)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "Client.Timeout exceeded")
}

func TestClient_DefaultHeadersSentOnEveryRequest(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(WithDefaultHeaders(map[string]string{
		"Content-Type": "application/json",
		"Accept":       "application/json",
	}))
	for i := 0; i < 3; i++ {
		_, err := client.Get(context.Background(), server.URL, nil)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, calls)
}

func TestClient_RequestHeaderOverridesDefault(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "text/plain", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(WithDefaultHeaders(map[string]string{"Content-Type": "application/json"}))
	_, err := client.Post(context.Background(), server.URL, "x", map[string]string{"Content-Type": "text/plain"})
	require.NoError(t, err)
}

func TestClient_DefaultHeadersReturnsCopy(t *testing.T) {
	client := NewClient(WithDefaultHeaders(map[string]string{"Accept": "application/json"}))
	h := client.DefaultHeaders()
	h["Accept"] = "text/html"
	assert.Equal(t, "application/json", client.DefaultHeaders()["Accept"])
}

func TestClient_NoFollowRedirects(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/final", http.StatusFound)
	}))
	defer server.Close()

	client := NewClient(WithFollowRedirects(false))
	resp, err := client.Get(context.Background(), server.URL+"/redirect", nil)

	require.NoError(t, err)
	assert.Equal(t, 302, resp.StatusCode)
}

func TestClient_RateLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(WithRateLimit(20))
	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := client.Get(context.Background(), server.URL, nil)
		require.NoError(t, err)
	}
	// burst of 1: the second and third requests each wait ~50ms
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestClient_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := NewClient()
	_, err := client.Get(context.Background(), url, nil)
	assert.Error(t, err)
}

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid http URL",
			url:     "http://example.com/path",
			wantErr: false,
		},
		{
			name:    "valid https URL",
			url:     "https://example.com/path",
			wantErr: false,
		},
		{
			name:    "invalid scheme",
			url:     "ftp://example.com",
			wantErr: true,
			errMsg:  "unsupported URL scheme",
		},
		{
			name:    "missing scheme",
			url:     "example.com/path",
			wantErr: true,
			errMsg:  "unsupported URL scheme",
		},
		{
			name:    "missing host",
			url:     "http:///path",
			wantErr: true,
			errMsg:  "URL must have a host",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateURL(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestJoinURL(t *testing.T) {
	tests := []struct {
		base, path, want string
	}{
		{"https://example.com", "/api/", "https://example.com/api/"},
		{"https://example.com/", "/api/contact", "https://example.com/api/contact"},
		{"https://example.com/api", "contact", "https://example.com/api/contact"},
		{"https://example.com/api/", "/quote", "https://example.com/api/quote"},
		{"https://example.com", "", "https://example.com"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, JoinURL(tt.base, tt.path), "%s + %s", tt.base, tt.path)
	}
}

func TestResponse_StatusIn(t *testing.T) {
	resp := &Response{StatusCode: 422}
	assert.True(t, resp.StatusIn(400, 422))
	assert.False(t, resp.StatusIn(200))
	assert.False(t, resp.StatusIn())
}
