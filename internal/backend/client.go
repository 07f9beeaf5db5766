package backend

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

// Client dispatches mutation and query intents to the PatternIQ backend.
// Each intent is exactly one request: no retry, no caching, no optimistic
// local patching. Consistency after a mutation is re-established only by
// the caller re-reading the owning collection.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a Client. A zero timeout leaves requests unbounded, which
// preserves the documented pending-forever behavior of the original
// design; pass a positive timeout to cap each call.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// EnsureProfile creates the user's profile on first sign-in, or fetches
// the existing record. The returned profile is nil for a brand-new user;
// the caller then reads the authoritative record from the profile feed.
func (c *Client) EnsureProfile(ctx context.Context, req ProfileRequest) (*UserProfile, error) {
	var resp profileResponse
	if err := c.post(ctx, "/api/users/profile", req, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// RunBacktest executes a strategy backtest on the backend.
func (c *Client) RunBacktest(ctx context.Context, req BacktestRequest) (*BacktestResult, error) {
	var result BacktestResult
	if err := c.post(ctx, "/api/backtest", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// TriggerScan fires the anomaly scan. Results never come back on this
// call; they arrive through the alerts feed.
func (c *Client) TriggerScan(ctx context.Context) error {
	var resp ScanResponse
	return c.get(ctx, "/api/scan-anomalies", &resp)
}

// DailyQuiz fetches today's question set for a level. A nil quiz with a
// nil error means no quiz is available yet: an informational state, not
// a failure.
func (c *Client) DailyQuiz(ctx context.Context, level int) (*Quiz, error) {
	var quiz Quiz
	err := c.get(ctx, fmt.Sprintf("/api/arena/daily-quiz/%d", level), &quiz)
	if err != nil {
		if be, ok := AsError(err); ok && be.Status == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}
	if len(quiz.Questions) == 0 {
		return nil, nil
	}
	return &quiz, nil
}

// SubmitQuiz sends the user's answers for grading.
func (c *Client) SubmitQuiz(ctx context.Context, sub QuizSubmission) (*QuizResult, error) {
	var result QuizResult
	if err := c.post(ctx, "/api/arena/submit-quiz", sub, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Leaderboard returns the top players in server order.
func (c *Client) Leaderboard(ctx context.Context) ([]LeaderboardEntry, error) {
	var entries []LeaderboardEntry
	if err := c.get(ctx, "/api/arena/leaderboard", &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// ArenaProfile looks up another player's public profile.
func (c *Client) ArenaProfile(ctx context.Context, userID string) (*ArenaProfile, error) {
	var profile ArenaProfile
	if err := c.get(ctx, "/api/arena/profile/"+url.PathEscape(userID), &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// SystemEvents returns the backend-generated calendar entries.
func (c *Client) SystemEvents(ctx context.Context) ([]SystemEvent, error) {
	var events []SystemEvent
	if err := c.get(ctx, "/api/calendar/ai-events", &events); err != nil {
		return nil, err
	}
	return events, nil
}

// UserEvents returns all of the user's own calendar entries.
func (c *Client) UserEvents(ctx context.Context, userID string) ([]UserEvent, error) {
	var events []UserEvent
	if err := c.get(ctx, "/api/calendar/user-events/"+url.PathEscape(userID), &events); err != nil {
		return nil, err
	}
	return events, nil
}

// CreateUserEvent stores a new user-owned event; the store assigns its id.
func (c *Client) CreateUserEvent(ctx context.Context, req UserEventRequest) (*UserEvent, error) {
	var created UserEvent
	if err := c.post(ctx, "/api/calendar/user-event", req, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateUserEvent replaces the date/title/type of an existing event.
func (c *Client) UpdateUserEvent(ctx context.Context, userID, eventID string, req UserEventRequest) (*UserEvent, error) {
	var updated UserEvent
	path := "/api/calendar/user-event/" + url.PathEscape(userID) + "/" + url.PathEscape(eventID)
	if err := c.do(ctx, http.MethodPut, path, req, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteUserEvent removes a user-owned event.
func (c *Client) DeleteUserEvent(ctx context.Context, userID, eventID string) error {
	path := "/api/calendar/user-event/" + url.PathEscape(userID) + "/" + url.PathEscape(eventID)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// FetchPortfolio returns the broker portfolio snapshot.
func (c *Client) FetchPortfolio(ctx context.Context) (*Portfolio, error) {
	var p Portfolio
	if err := c.get(ctx, "/api/get-portfolio", &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return networkErr(fmt.Errorf("encode request: %w", err))
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return networkErr(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return networkErr(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var detail struct {
			Detail string `json:"detail"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&detail)
		return serverErr(resp.StatusCode, detail.Detail)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return networkErr(fmt.Errorf("decode response: %w", err))
	}
	return nil
}
