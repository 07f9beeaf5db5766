package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/patterniq/patterniq-client/internal/arena"
	"github.com/patterniq/patterniq-client/internal/backend"
	"github.com/patterniq/patterniq-client/internal/telegramtmpl"
)

// Notifier sends alerts to a Telegram chat via the Bot API.
type Notifier struct {
	botToken   string
	chatID     string
	httpClient *http.Client
	enabled    bool
	baseURL    string // overridable for testing; defaults to Telegram API
}

// NewNotifier creates a Notifier. Notifications are enabled only when both
// botToken and chatID are non-empty.
func NewNotifier(botToken, chatID string) *Notifier {
	return &Notifier{
		botToken:   botToken,
		chatID:     chatID,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		enabled:    botToken != "" && chatID != "",
	}
}

// Enabled reports whether the notifier is active.
func (n *Notifier) Enabled() bool { return n.enabled }

// Send posts a message to the configured Telegram chat.
func (n *Notifier) Send(ctx context.Context, msg string) error {
	if !n.enabled {
		return nil
	}

	endpoint := n.baseURL
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", n.botToken)
	}
	vals := url.Values{
		"chat_id":    {n.chatID},
		"text":       {msg},
		"parse_mode": {"HTML"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return fmt.Errorf("notify: build request: %w", err)
	}
	req.URL.RawQuery = vals.Encode()

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("notify: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var body struct {
			Description string `json:"description"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&body)
		return fmt.Errorf("notify: telegram %d: %s", resp.StatusCode, body.Description)
	}
	return nil
}

// NotifyAlert sends one anomaly-scanner finding.
func (n *Notifier) NotifyAlert(ctx context.Context, alert backend.Alert) error {
	msg := fmt.Sprintf("<b>Anomaly Alert</b>\nSymbol: <code>%s</code>\n%s", alert.Symbol, alert.Message)
	return n.Send(ctx, msg)
}

// NotifyQuizResult sends the graded daily-quiz outcome as a rendered
// arena summary.
func (n *Notifier) NotifyQuizResult(ctx context.Context, g arena.GradedResult) error {
	html := telegramtmpl.RenderArenaSummaryHTML(telegramtmpl.ArenaSummaryData{
		DisplayName: g.DisplayName,
		Score:       g.Score,
		Gained:      g.Gained,
		Level:       g.Level,
		Tier:        g.Tier,
		Correct:     g.Correct,
		Total:       g.Total,
	})
	return n.NotifyArenaSummaryTemplate(ctx, html)
}

// NotifyAlertDigest sends one rendered digest covering a batch of new
// scanner findings.
func (n *Notifier) NotifyAlertDigest(ctx context.Context, alerts []backend.Alert) error {
	d := telegramtmpl.BuildAlertDigestData("", alerts)
	return n.NotifyAlertDigestTemplate(ctx, telegramtmpl.RenderAlertDigestHTML(d))
}

// NotifyAlertDigestTemplate sends a pre-rendered alert digest template.
func (n *Notifier) NotifyAlertDigestTemplate(ctx context.Context, textHTML string) error {
	return n.Send(ctx, textHTML)
}

// NotifyArenaSummaryTemplate sends a pre-rendered daily arena summary template.
func (n *Notifier) NotifyArenaSummaryTemplate(ctx context.Context, textHTML string) error {
	return n.Send(ctx, textHTML)
}
