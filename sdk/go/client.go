package execlinesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Execline HTTP API client.
type Client struct {
	BaseURL     string
	WorkspaceID string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL, workspaceID string) *Client {
	return &Client{
		BaseURL:     baseURL,
		WorkspaceID: workspaceID,
		Timeout:     10 * time.Second,
	}
}

// Task represents the API task model (partial).
type Task struct {
	ID          string  `json:"id"`
	WorkspaceID string  `json:"workspace_id"`
	ProjectID   *string `json:"project_id,omitempty"`
	Title       string  `json:"title"`
	Type        string  `json:"type"`
	Status      string  `json:"status"`
	Priority    int     `json:"priority"`
}

// DroppedTask is a committed task no longer eligible.
type DroppedTask struct {
	TaskID string `json:"taskId"`
	Title  string `json:"title"`
	Reason string `json:"reason"`
}

// Commitment is the top focus of a day.
type Commitment struct {
	Date             string        `json:"date"`
	WorkspaceScope   string        `json:"workspaceScope"`
	Mode             string        `json:"mode"`
	Locked           bool          `json:"locked"`
	CommittedAt      *time.Time    `json:"committedAt,omitempty"`
	Note             string        `json:"note,omitempty"`
	Tasks            []Task        `json:"tasks"`
	Dropped          []DroppedTask `json:"dropped"`
	GuidedSwapNeeded bool          `json:"guidedSwapNeeded"`
	SwapProposal     []Task        `json:"swapProposal"`
}

// Stage is a maturity stage.
type Stage struct {
	ID       string  `json:"id"`
	Label    string  `json:"label"`
	MinIndex float64 `json:"minIndex"`
}

// Rule is one evaluated rule (partial).
type Rule struct {
	ID           string  `json:"id"`
	Label        string  `json:"label"`
	Current      float64 `json:"current"`
	Target       float64 `json:"target"`
	Status       string  `json:"status"`
	Contribution int     `json:"contribution"`
	Impact       int     `json:"impact"`
}

// Score is the short window execution score (partial).
type Score struct {
	Date          string `json:"date"`
	WindowDays    int    `json:"windowDays"`
	Index         int    `json:"index"`
	Stage         Stage  `json:"stage"`
	NextStage     *Stage `json:"nextStage,omitempty"`
	CriticalCount int    `json:"criticalCount"`
	WarningCount  int    `json:"warningCount"`
	Rules         []Rule `json:"rules"`
	TopLeaks      []Rule `json:"topLeaks"`
}

// Alert is one briefing flag.
type Alert struct {
	Code    string `json:"code"`
	Active  bool   `json:"active"`
	Count   int    `json:"count"`
	Message string `json:"message"`
}

// Capacity is the planned load of the day in minutes.
type Capacity struct {
	Capacity           int  `json:"capacity"`
	PlannedTaskMinutes int  `json:"plannedTaskMinutes"`
	Overload           int  `json:"overload"`
	IsUnrealistic      bool `json:"isUnrealistic"`
}

// Briefing is the daily view (partial). Lists are left raw.
type Briefing struct {
	Date       string          `json:"date"`
	StrictMode bool            `json:"strictMode"`
	OpenTasks  int             `json:"openTasks"`
	Capacity   Capacity        `json:"capacity"`
	Top3       Commitment      `json:"top3"`
	Alerts     []Alert         `json:"alerts"`
	Lists      json.RawMessage `json:"lists"`
}

// Pulse is the weekly pulse (partial).
type Pulse struct {
	Date          string  `json:"date"`
	Index         int     `json:"index"`
	PreviousIndex int     `json:"previousIndex"`
	DeltaIndex    int     `json:"deltaIndex"`
	Trend         string  `json:"trend"`
	DailyScores   []int   `json:"dailyScores"`
	TopLeaks      []Rule  `json:"topLeaks"`
	Completed     int     `json:"completed"`
	Delayed       int     `json:"delayed"`
	DeepWorkHours float64 `json:"deepWorkHours"`
}

// JournalEntry is one decision journal row (partial).
type JournalEntry struct {
	ID          string    `json:"id"`
	Source      string    `json:"source"`
	EventCode   string    `json:"eventCode,omitempty"`
	Title       string    `json:"title"`
	Signal      string    `json:"signal"`
	ImpactScore int       `json:"impactScore"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Journal is the decision journal of the evolution window.
type Journal struct {
	Date                 string         `json:"date"`
	Entries              []JournalEntry `json:"entries"`
	ExecutiveCount       int            `json:"executiveCount"`
	RiskCount            int            `json:"riskCount"`
	NeutralCount         int            `json:"neutralCount"`
	DecisionQualityScore int            `json:"decisionQualityScore"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Briefing returns the daily view. An empty date means today on the server.
func (c *Client) Briefing(ctx context.Context, date string, strict bool) (Briefing, error) {
	var resp Briefing
	q := c.query(date)
	if strict {
		q.Set("strict", "true")
	}
	err := c.do(ctx, http.MethodGet, c.path("briefing", q), nil, &resp)
	return resp, err
}

// Top3 returns the top focus of the day.
func (c *Client) Top3(ctx context.Context, date string) (Commitment, error) {
	var resp Commitment
	err := c.do(ctx, http.MethodGet, c.path("top3", c.query(date)), nil, &resp)
	return resp, err
}

// CommitTop3 locks the given tasks as the top focus of the day.
func (c *Client) CommitTop3(ctx context.Context, date string, taskIDs []string, note string) (Commitment, error) {
	body := map[string]any{
		"taskIds": taskIDs,
		"note":    note,
	}
	var resp Commitment
	err := c.do(ctx, http.MethodPost, c.path("top3/commit", c.query(date)), body, &resp)
	return resp, err
}

// ClearTop3 unlocks the day.
func (c *Client) ClearTop3(ctx context.Context, date string) (Commitment, error) {
	var resp Commitment
	err := c.do(ctx, http.MethodPost, c.path("top3/clear", c.query(date)), nil, &resp)
	return resp, err
}

func (c *Client) Score(ctx context.Context, date string) (Score, error) {
	var resp Score
	err := c.do(ctx, http.MethodGet, c.path("score", c.query(date)), nil, &resp)
	return resp, err
}

// Evolution returns the raw evolution report.
func (c *Client) Evolution(ctx context.Context, date string) (map[string]any, error) {
	var resp map[string]any
	err := c.do(ctx, http.MethodGet, c.path("evolution", c.query(date)), nil, &resp)
	return resp, err
}

func (c *Client) Pulse(ctx context.Context, date string) (Pulse, error) {
	var resp Pulse
	err := c.do(ctx, http.MethodGet, c.path("pulse", c.query(date)), nil, &resp)
	return resp, err
}

func (c *Client) Journal(ctx context.Context, date string) (Journal, error) {
	var resp Journal
	err := c.do(ctx, http.MethodGet, c.path("journal", c.query(date)), nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) query(date string) url.Values {
	q := url.Values{}
	if date != "" {
		q.Set("date", date)
	}
	if c.WorkspaceID != "" {
		q.Set("workspace_id", c.WorkspaceID)
	}
	return q
}

func (c *Client) path(p string, q url.Values) string {
	endpoint := "v0/" + strings.TrimLeft(p, "/")
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	return endpoint
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
