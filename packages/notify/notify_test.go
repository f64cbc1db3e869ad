package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/caugusteg/smokecheck/packages/core/runner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNotifier struct {
	name  string
	calls []*RunSummary
	err   error
}

func (f *fakeNotifier) Name() string { return f.name }

func (f *fakeNotifier) Notify(_ context.Context, s *RunSummary) error {
	f.calls = append(f.calls, s)
	return f.err
}

func summary(failed int) *RunSummary {
	return &RunSummary{RunID: "r", BaseURL: "http://api", TotalTests: 14, PassedTests: 14 - failed, FailedTests: failed}
}

func TestParseNotifyOn(t *testing.T) {
	on, err := ParseNotifyOn("")
	require.NoError(t, err)
	assert.Equal(t, NotifyFailure, on)

	on, err = ParseNotifyOn("recovery")
	require.NoError(t, err)
	assert.Equal(t, NotifyRecovery, on)

	_, err = ParseNotifyOn("sometimes")
	assert.Error(t, err)
}

func TestSummaryFromRun(t *testing.T) {
	run := &runner.RunResult{
		ID:       "abc",
		BaseURL:  "http://api",
		Duration: time.Second,
		Results: []*runner.TestResult{
			{Test: "API Root", Success: true},
			{Test: "Quote Form Valid", Success: false, Details: "Status code: 500"},
		},
	}

	s := SummaryFromRun(run)
	assert.Equal(t, "abc", s.RunID)
	assert.Equal(t, 2, s.TotalTests)
	assert.Equal(t, 1, s.PassedTests)
	assert.Equal(t, 1, s.FailedTests)
	assert.Equal(t, 50.0, s.PassRate)
	assert.Equal(t, []FailedTest{{Name: "Quote Form Valid", Details: "Status code: 500"}}, s.FailedResults)
}

func TestManager_Policies(t *testing.T) {
	tests := []struct {
		name      string
		on        NotifyOn
		lastState bool
		failed    int
		sent      bool
		recovery  bool
	}{
		{"always on pass", NotifyAlways, true, 0, true, false},
		{"always after failure flags recovery", NotifyAlways, false, 0, true, true},
		{"failure on pass", NotifyFailure, true, 0, false, false},
		{"failure on fail", NotifyFailure, true, 2, true, false},
		{"success on pass", NotifySuccess, true, 0, true, false},
		{"success on fail", NotifySuccess, true, 1, false, false},
		{"recovery steady pass", NotifyRecovery, true, 0, false, false},
		{"recovery after failure", NotifyRecovery, false, 0, true, true},
		{"recovery on fail", NotifyRecovery, true, 3, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeNotifier{name: "fake"}
			m := NewManager(tt.on, fake)
			m.SetLastState(tt.lastState)

			s := summary(tt.failed)
			sent, err := m.Notify(context.Background(), s)
			require.NoError(t, err)
			assert.Equal(t, tt.sent, sent)
			assert.Equal(t, tt.recovery, s.IsRecovery)
			if tt.sent {
				assert.Len(t, fake.calls, 1)
			} else {
				assert.Empty(t, fake.calls)
			}
		})
	}
}

func TestManager_TracksStateAcrossRuns(t *testing.T) {
	fake := &fakeNotifier{name: "fake"}
	m := NewManager(NotifyRecovery, fake)

	_, _ = m.Notify(context.Background(), summary(1))
	sent, _ := m.Notify(context.Background(), summary(0))
	assert.True(t, sent)
	require.Len(t, fake.calls, 2)
	assert.True(t, fake.calls[1].IsRecovery)

	sent, _ = m.Notify(context.Background(), summary(0))
	assert.False(t, sent)
}

func TestManager_JoinsErrors(t *testing.T) {
	ok := &fakeNotifier{name: "ok"}
	bad := &fakeNotifier{name: "bad", err: errors.New("boom")}
	m := NewManager(NotifyAlways, bad, ok)

	sent, err := m.Notify(context.Background(), summary(0))
	assert.True(t, sent)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad: boom")
	assert.Len(t, ok.calls, 1, "a failing notifier does not stop the others")
}

func TestManager_NoNotifiers(t *testing.T) {
	m := NewManager(NotifyAlways)
	sent, err := m.Notify(context.Background(), summary(1))
	assert.False(t, sent)
	assert.NoError(t, err)
	assert.Equal(t, 0, m.Len())
}

func TestSlackNotifier(t *testing.T) {
	var got slackMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	s := summary(1)
	s.FailedResults = []FailedTest{{Name: "Quote Form Valid", Details: "Status code: 500"}}

	n := NewSlackNotifier(server.URL, WithSlackChannel("#smoke"))
	require.NoError(t, n.Notify(context.Background(), s))

	assert.Equal(t, "#smoke", got.Channel)
	assert.Equal(t, "smokecheck", got.Username)
	require.Len(t, got.Attachments, 1)
	assert.Equal(t, "danger", got.Attachments[0].Color)
	assert.Contains(t, got.Attachments[0].Title, "1 smoke test(s) failed")
	assert.Contains(t, got.Attachments[0].Text, "`Quote Form Valid`: Status code: 500")
	assert.Equal(t, "smokecheck run r", got.Attachments[0].Footer)
}

func TestSlackNotifier_Recovery(t *testing.T) {
	var got slackMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
	}))
	defer server.Close()

	s := summary(0)
	s.IsRecovery = true
	require.NoError(t, NewSlackNotifier(server.URL).Notify(context.Background(), s))
	assert.Equal(t, "good", got.Attachments[0].Color)
	assert.Contains(t, got.Attachments[0].Title, "recovered")
}

func TestSlackNotifier_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("invalid_token"))
	}))
	defer server.Close()

	err := NewSlackNotifier(server.URL).Notify(context.Background(), summary(0))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
	assert.Contains(t, err.Error(), "invalid_token")
}

func TestTeamsNotifier(t *testing.T) {
	var got teamsMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	s := summary(2)
	s.FailedResults = []FailedTest{{Name: "API Root", Details: "Incorrect status code: 503"}}

	require.NoError(t, NewTeamsNotifier(server.URL).Notify(context.Background(), s))

	assert.Equal(t, "message", got.Type)
	require.Len(t, got.Attachments, 1)
	body := got.Attachments[0].Content.Body
	assert.Equal(t, "attention", body[0].Color)
	assert.Contains(t, body[0].Text, "2 smoke test(s) failed")

	var texts []string
	for _, b := range body {
		texts = append(texts, b.Text)
	}
	assert.Contains(t, texts, "- `API Root`: Incorrect status code: 503")
}

func TestTeamsNotifier_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	err := NewTeamsNotifier(url, WithTeamsHTTPClient(&http.Client{Timeout: time.Second})).
		Notify(context.Background(), summary(0))
	assert.Error(t, err)
}
