package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// TeamsNotifier sends notifications to Microsoft Teams via webhook
type TeamsNotifier struct {
	webhookURL string
	client     *http.Client
	now        func() time.Time
}

// TeamsOption is a functional option for TeamsNotifier
type TeamsOption func(*TeamsNotifier)

// WithTeamsHTTPClient replaces the default client
func WithTeamsHTTPClient(c *http.Client) TeamsOption {
	return func(t *TeamsNotifier) {
		t.client = c
	}
}

// NewTeamsNotifier creates a new Teams notifier
func NewTeamsNotifier(webhookURL string, opts ...TeamsOption) *TeamsNotifier {
	t := &TeamsNotifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Name returns the name of the notifier
func (t *TeamsNotifier) Name() string {
	return "teams"
}

// teamsMessage represents a Microsoft Teams Adaptive Card message
type teamsMessage struct {
	Type        string      `json:"type"`
	Attachments []teamsCard `json:"attachments"`
}

// teamsCard represents an Adaptive Card
type teamsCard struct {
	ContentType string           `json:"contentType"`
	ContentURL  *string          `json:"contentUrl"`
	Content     teamsCardContent `json:"content"`
}

// teamsCardContent is the content of an Adaptive Card
type teamsCardContent struct {
	Schema  string       `json:"$schema"`
	Type    string       `json:"type"`
	Version string       `json:"version"`
	Body    []teamsBlock `json:"body"`
}

// teamsBlock represents a block in the Adaptive Card
type teamsBlock struct {
	Type      string        `json:"type"`
	Size      string        `json:"size,omitempty"`
	Weight    string        `json:"weight,omitempty"`
	Text      string        `json:"text,omitempty"`
	Color     string        `json:"color,omitempty"`
	Wrap      bool          `json:"wrap,omitempty"`
	Columns   []teamsColumn `json:"columns,omitempty"`
	Items     []teamsBlock  `json:"items,omitempty"`
	Spacing   string        `json:"spacing,omitempty"`
	Separator bool          `json:"separator,omitempty"`
}

// teamsColumn represents a column in a ColumnSet
type teamsColumn struct {
	Type  string       `json:"type"`
	Width string       `json:"width"`
	Items []teamsBlock `json:"items"`
}

func statColumn(label, value, color string) teamsColumn {
	return teamsColumn{
		Type:  "Column",
		Width: "stretch",
		Items: []teamsBlock{
			{Type: "TextBlock", Text: "**" + label + "**", Wrap: true},
			{Type: "TextBlock", Text: value, Color: color, Wrap: true},
		},
	}
}

// Notify sends a notification to Microsoft Teams
func (t *TeamsNotifier) Notify(ctx context.Context, summary *RunSummary) error {
	color := "good"
	title := "All smoke tests passed"
	emoji := "✅"

	if summary.FailedTests > 0 {
		color = "attention"
		title = fmt.Sprintf("%d smoke test(s) failed", summary.FailedTests)
		emoji = "❌"
	} else if summary.IsRecovery {
		title = "Smoke tests recovered"
		emoji = "🎉"
	}

	body := []teamsBlock{
		{
			Type:   "TextBlock",
			Size:   "Large",
			Weight: "Bolder",
			Text:   fmt.Sprintf("%s %s", emoji, title),
			Color:  color,
		},
		{
			Type: "TextBlock",
			Text: fmt.Sprintf("**Target:** %s", summary.BaseURL),
			Wrap: true,
		},
		{
			Type:      "ColumnSet",
			Separator: true,
			Spacing:   "Medium",
			Columns: []teamsColumn{
				statColumn("Total Tests", fmt.Sprintf("%d", summary.TotalTests), ""),
				statColumn("Passed", fmt.Sprintf("%d", summary.PassedTests), "good"),
				statColumn("Failed", fmt.Sprintf("%d", summary.FailedTests), "attention"),
				statColumn("Pass Rate", fmt.Sprintf("%.1f%%", summary.PassRate), ""),
				statColumn("Duration", summary.Duration.Round(time.Millisecond).String(), ""),
			},
		},
	}

	// Add failed test details if any
	if len(summary.FailedResults) > 0 {
		body = append(body, teamsBlock{
			Type:      "TextBlock",
			Text:      "**Failed Tests:**",
			Separator: true,
			Spacing:   "Medium",
		})

		for _, ft := range summary.FailedResults {
			body = append(body, teamsBlock{
				Type: "TextBlock",
				Text: fmt.Sprintf("- `%s`: %s", ft.Name, ft.Details),
				Wrap: true,
			})
		}
	}

	// Add footer
	body = append(body, teamsBlock{
		Type:      "TextBlock",
		Text:      fmt.Sprintf("_smokecheck run %s - %s_", summary.RunID, t.now().Format(time.RFC3339)),
		Separator: true,
		Spacing:   "Medium",
	})

	msg := teamsMessage{
		Type: "message",
		Attachments: []teamsCard{
			{
				ContentType: "application/vnd.microsoft.card.adaptive",
				ContentURL:  nil,
				Content: teamsCardContent{
					Schema:  "http://adaptivecards.io/schemas/adaptive-card.json",
					Type:    "AdaptiveCard",
					Version: "1.2",
					Body:    body,
				},
			},
		},
	}

	return t.send(ctx, msg)
}

func (t *TeamsNotifier) send(ctx context.Context, msg teamsMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal Teams message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.webhookURL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send Teams notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("teams API returned status %d: %s", resp.StatusCode, string(body))
	}

	return nil
}
