package runner

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/caugusteg/smokecheck/packages/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	started int
	names   []string
}

func (o *recordingObserver) OnStart(*RunResult) { o.started++ }

func (o *recordingObserver) OnResult(r *TestResult) { o.names = append(o.names, r.Test) }

func newRunner(baseURL string, obs Observer) *Runner {
	return NewRunner(&Config{
		BaseURL:        baseURL,
		APIPrefix:      "/api",
		RootMarker:     "CAUGUSTEG",
		FollowRedirect: true,
		ValidateSSL:    true,
		Observer:       obs,
	})
}

func mockBackend(t *testing.T, opts ...mock.Option) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(mock.NewServer(opts...).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func resultByName(t *testing.T, run *RunResult, name string) *TestResult {
	t.Helper()
	for _, r := range run.Results {
		if r.Test == name {
			return r
		}
	}
	t.Fatalf("no result named %q", name)
	return nil
}

var expectedOrder = []string{
	"API Root",
	"Contact Form Valid",
	"Contact Invalid Email",
	"Contact Missing Fields",
	"Quote Form Valid",
	"Quote Invalid Services",
	"Quote Invalid Client Type",
	"Quote Invalid Priority",
	"Phone Format 5141234567",
	"Phone Format 514-123-4567",
	"Phone Format (514) 123-4567",
	"Phone Format 514 123 4567",
	"Database Connectivity",
	"Error Handling JSON",
}

func TestNewRunner(t *testing.T) {
	t.Run("with nil config", func(t *testing.T) {
		r := NewRunner(nil)
		assert.NotNil(t, r)
		assert.NotNil(t, r.client)
		assert.Len(t, r.Cases(), 14)
	})

	t.Run("session headers", func(t *testing.T) {
		r := NewRunner(&Config{DefaultHeaders: map[string]string{"X-Smoke": "1"}})
		headers := r.client.DefaultHeaders()
		assert.Equal(t, "application/json", headers["Content-Type"])
		assert.Equal(t, "application/json", headers["Accept"])
		assert.Equal(t, "1", headers["X-Smoke"])
	})

	t.Run("api base", func(t *testing.T) {
		r := newRunner("https://example.com", nil)
		assert.Equal(t, "https://example.com/api", r.Env().APIBase)
		assert.Equal(t, "https://example.com/api/", r.Env().URL("/"))
	})
}

func TestDefaultCases_Order(t *testing.T) {
	assert.Equal(t, expectedOrder, Names(DefaultCases()))
}

func TestRunner_Run_AllPassAgainstMock(t *testing.T) {
	ts := mockBackend(t)
	obs := &recordingObserver{}

	run := newRunner(ts.URL, obs).Run(context.Background())

	require.Len(t, run.Results, 14)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, ts.URL, run.BaseURL)
	assert.Equal(t, 1, obs.started)
	assert.Equal(t, expectedOrder, obs.names)

	for _, r := range run.Results {
		assert.True(t, r.Success, "%s: %s", r.Test, r.Details)
		assert.Positive(t, r.Duration, r.Test)
	}

	summary := run.Summarize()
	assert.Equal(t, 14, summary.Total)
	assert.Equal(t, 14, summary.Passed)
	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, 100.0, summary.PassRate)
	assert.True(t, summary.AllPassed())
	assert.Equal(t, int64(14), summary.Latency.Count)

	root := resultByName(t, run, "API Root")
	assert.Equal(t, "Status: 200, message received", root.Details)

	contact := resultByName(t, run, "Contact Form Valid")
	assert.True(t, strings.HasPrefix(contact.Details, "Ticket generated: MSG-"))
	data, ok := contact.ResponseData.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, data["success"])

	email := resultByName(t, run, "Contact Invalid Email")
	assert.Equal(t, "Email validation correctly rejected", email.Details)
	assert.Nil(t, email.ResponseData)

	phone := resultByName(t, run, "Phone Format 514-123-4567")
	assert.Equal(t, "Format accepted: 514-123-4567 -> (514) 123-4567", phone.Details)
}

func TestRunner_Run_StorageDown(t *testing.T) {
	ts := mockBackend(t, mock.WithStorageDown(true))

	run := newRunner(ts.URL, nil).Run(context.Background())
	summary := run.Summarize()

	assert.Equal(t, 14, summary.Total)
	assert.Equal(t, 7, summary.Passed)
	assert.Equal(t, 7, summary.Failed)
	assert.Equal(t, 50.0, summary.PassRate)

	db := resultByName(t, run, "Database Connectivity")
	assert.False(t, db.Success)
	assert.Equal(t, "API error - possible DB problem: 500", db.Details)

	contact := resultByName(t, run, "Contact Form Valid")
	assert.Equal(t, "Status code: 500", contact.Details)
	assert.IsType(t, "", contact.ResponseData, "unexpected status keeps the raw body text")

	phone := resultByName(t, run, "Phone Format 5141234567")
	assert.Equal(t, "Format rejected for: 5141234567", phone.Details)
}

func TestRunner_Run_ConnectionRefused(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	run := newRunner(url, nil).Run(context.Background())

	require.Len(t, run.Results, 14, "a failing case must not stop the others")
	for _, r := range run.Results {
		assert.False(t, r.Success, r.Test)
		assert.Nil(t, r.ResponseData, r.Test)
	}

	assert.True(t, strings.HasPrefix(resultByName(t, run, "API Root").Details, "Connection error: "))
	assert.True(t, strings.HasPrefix(resultByName(t, run, "Database Connectivity").Details, "Connection error: "))
	assert.True(t, strings.HasPrefix(resultByName(t, run, "Contact Form Valid").Details, "Error: "))
	assert.Equal(t, 0.0, run.Summarize().PassRate)
}

func TestRunner_InvalidEmailAccepted(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success": true, "ticketNumber": "MSG-1"}`))
	}))
	defer ts.Close()

	r := newRunner(ts.URL, nil)
	r.cases = []Case{{Name: "Contact Invalid Email", Run: contactInvalidEmail}}
	run := r.Run(context.Background())

	require.Len(t, run.Results, 1)
	assert.False(t, run.Results[0].Success)
	assert.Equal(t, "Unexpected status code: 200", run.Results[0].Details)
}

func TestRunner_InvalidEmailBadRequestKeepsBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"detail": "invalid email"}`))
	}))
	defer ts.Close()

	r := newRunner(ts.URL, nil)
	r.cases = []Case{{Name: "Contact Invalid Email", Run: contactInvalidEmail}}
	res := r.Run(context.Background()).Results[0]

	assert.True(t, res.Success)
	assert.Equal(t, "Invalid email correctly rejected", res.Details)
	assert.Equal(t, map[string]any{"detail": "invalid email"}, res.ResponseData)
}

func TestRunner_QuoteFormValid(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		success bool
		details string
	}{
		{"reference with prefix", `{"success": true, "referenceNumber": "DEV-2026-001"}`, true, "Reference generated: DEV-2026-001"},
		{"wrong prefix", `{"success": true, "referenceNumber": "MSG-2026-001"}`, false, "Incorrect response structure"},
		{"success false", `{"success": false, "referenceNumber": "DEV-1"}`, false, "Incorrect response structure"},
		{"missing reference", `{"success": true}`, false, "Incorrect response structure"},
		{"reference not a string", `{"success": true, "referenceNumber": 42}`, false, "Incorrect response structure"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/quote", r.URL.Path)
				var q QuoteRequest
				require.NoError(t, json.NewDecoder(r.Body).Decode(&q))
				assert.NotEmpty(t, q.Services)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer ts.Close()

			r := newRunner(ts.URL, nil)
			r.cases = []Case{{Name: "Quote Form Valid", Run: quoteFormValid}}
			res := r.Run(context.Background()).Results[0]

			assert.Equal(t, tt.success, res.Success)
			assert.Equal(t, tt.details, res.Details)
			assert.NotNil(t, res.ResponseData)
		})
	}
}

func TestRunner_ErrorHandlingJSON(t *testing.T) {
	tests := []struct {
		status  int
		success bool
		details string
	}{
		{400, true, "Malformed JSON correctly rejected"},
		{422, true, "Malformed JSON correctly rejected"},
		{500, false, "Malformed JSON not handled correctly: 500"},
		{200, false, "Malformed JSON not handled correctly: 200"},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				body, _ := io.ReadAll(r.Body)
				assert.Equal(t, MalformedJSONBody, string(body))
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
				w.WriteHeader(tt.status)
			}))
			defer ts.Close()

			r := newRunner(ts.URL, nil)
			r.cases = []Case{{Name: "Error Handling JSON", Run: malformedJSON}}
			res := r.Run(context.Background()).Results[0]

			assert.Equal(t, tt.success, res.Success)
			assert.Equal(t, tt.details, res.Details)
		})
	}
}

func TestRunner_RootNotJSON(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>maintenance</html>"))
	}))
	defer ts.Close()

	r := newRunner(ts.URL, nil)
	r.cases = DefaultCases()[:1]
	res := r.Run(context.Background()).Results[0]

	assert.False(t, res.Success)
	assert.True(t, strings.HasPrefix(res.Details, "Connection error: response body is not valid JSON"), res.Details)
}

func TestRunner_RootWrongMessage(t *testing.T) {
	ts := mockBackend(t, mock.WithRootMessage("Welcome"))

	r := newRunner(ts.URL, nil)
	r.cases = DefaultCases()[:1]
	res := r.Run(context.Background()).Results[0]

	assert.False(t, res.Success)
	assert.Equal(t, "Incorrect message in response", res.Details)
	assert.Equal(t, map[string]any{"message": "Welcome"}, res.ResponseData)
}

func TestRunner_PanicIsolated(t *testing.T) {
	r := NewRunner(&Config{
		BaseURL: "http://127.0.0.1:1",
		Cases: []Case{
			{Name: "boom", Run: func(context.Context, *Env) (Outcome, error) { panic("kaboom") }},
			{Name: "after", Run: func(context.Context, *Env) (Outcome, error) {
				return Outcome{Success: true, Details: "still ran"}, nil
			}},
		},
	})

	run := r.Run(context.Background())
	require.Len(t, run.Results, 2)
	assert.False(t, run.Results[0].Success)
	assert.Equal(t, "Error: panic: kaboom", run.Results[0].Details)
	assert.True(t, run.Results[1].Success)
}

func TestRunner_LogResult(t *testing.T) {
	obs := &recordingObserver{}
	r := NewRunner(&Config{Observer: obs})
	fixed := time.Date(2026, 3, 4, 5, 6, 7, 891011000, time.Local)
	r.now = func() time.Time { return fixed }

	res := r.LogResult("manual", true, "ok", map[string]any{"k": "v"})

	assert.Equal(t, "2026-03-04T05:06:07.891011", res.Timestamp)
	assert.Equal(t, []string{"manual"}, obs.names)
	require.Len(t, r.Results(), 1)

	raw, err := json.Marshal(res)
	require.NoError(t, err)
	assert.JSONEq(t, `{"test":"manual","success":true,"details":"ok","timestamp":"2026-03-04T05:06:07.891011","response_data":{"k":"v"}}`, string(raw))
}

func TestRunner_ResponseDataNullInJSON(t *testing.T) {
	r := NewRunner(nil)
	res := r.LogResult("x", false, "nope", nil)

	raw, err := json.Marshal(res)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"response_data":null`)
}

func TestSummary_Empty(t *testing.T) {
	s := (&RunResult{}).Summarize()
	assert.Equal(t, 0, s.Total)
	assert.Equal(t, 0.0, s.PassRate)
	assert.True(t, s.AllPassed())
	assert.Zero(t, s.Latency.Count)
}

func TestLatencyRecorder(t *testing.T) {
	l := NewLatencyRecorder()
	for i := 1; i <= 100; i++ {
		l.Record(time.Duration(i) * time.Millisecond)
	}
	l.Record(0)
	l.Record(2 * time.Minute)

	stats := l.Stats()
	assert.Equal(t, int64(102), stats.Count)
	assert.Equal(t, time.Microsecond, stats.Min)
	assert.InDelta(t, float64(50*time.Millisecond), float64(stats.P50), float64(time.Millisecond))
	assert.GreaterOrEqual(t, stats.Max, 59*time.Second)
}

func TestRunner_LogResult_ZeroMicroseconds(t *testing.T) {
	r := NewRunner(nil)
	r.now = func() time.Time { return time.Date(2026, 3, 4, 5, 6, 7, 0, time.Local) }

	res := r.LogResult("manual", true, "ok", nil)
	assert.Equal(t, "2026-03-04T05:06:07.000000", res.Timestamp)
}

// A backend that answers 200 to everything must fail every check except the
// phone formats, which only look at the status code.
func TestRunner_PermissiveBackend(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		root       string
		submission string
		database   string
	}{
		{
			name:       "success false",
			body:       `{"success": false}`,
			root:       "Incorrect message in response",
			submission: "Incorrect response structure",
			database:   "Incomplete API response - possible DB problem",
		},
		{
			name:       "ticket missing",
			body:       `{"success": true, "message": "ok"}`,
			root:       "Incorrect message in response",
			submission: "Incorrect response structure",
			database:   "Incomplete API response - possible DB problem",
		},
		{
			name:       "message not a string",
			body:       `{"success": true, "message": ["CAUGUSTEG"], "ticketNumber": 7}`,
			root:       "Incorrect message in response",
			submission: "Incorrect response structure",
			database:   "Database reachable through API",
		},
		{
			name:       "null",
			body:       `null`,
			root:       "Incorrect message in response",
			submission: "Incorrect response structure",
			database:   "Incomplete API response - possible DB problem",
		},
		{
			name:       "array",
			body:       `[1,2]`,
			root:       "Incorrect message in response",
			submission: "Incorrect response structure",
			database:   "Incomplete API response - possible DB problem",
		},
		{
			name:       "not json",
			body:       `not json`,
			root:       `Connection error: response body is not valid JSON: "not json"`,
			submission: `Error: response body is not valid JSON: "not json"`,
			database:   `Connection error: response body is not valid JSON: "not json"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(tt.body))
			}))
			defer ts.Close()

			run := newRunner(ts.URL, nil).Run(context.Background())
			require.Len(t, run.Results, len(expectedOrder))

			check := func(name string, success bool, details string) {
				t.Helper()
				res := resultByName(t, run, name)
				assert.Equal(t, success, res.Success, name)
				assert.Equal(t, details, res.Details, name)
			}

			check("API Root", false, tt.root)
			check("Contact Form Valid", false, tt.submission)
			check("Quote Form Valid", false, tt.submission)
			check("Contact Invalid Email", false, "Unexpected status code: 200")
			for _, name := range []string{
				"Contact Missing Fields",
				"Quote Invalid Services",
				"Quote Invalid Client Type",
				"Quote Invalid Priority",
			} {
				check(name, false, "Unexpected status code: 200")
			}
			check("Phone Format 5141234567", true, "Format accepted: 5141234567 -> (514) 123-4567")
			check("Database Connectivity", tt.database == "Database reachable through API", tt.database)
			check("Error Handling JSON", false, "Malformed JSON not handled correctly: 200")
		})
	}
}
