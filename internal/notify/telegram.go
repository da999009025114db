package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

// Telegram sends alerts to a Telegram chat via the Bot API.
type Telegram struct {
	botToken   string
	chatID     string
	httpClient *http.Client
	limiter    *rate.Limiter
	enabled    bool
	baseURL    string // overridable for testing; defaults to Telegram API
}

// NewTelegram creates a Telegram notifier. Delivery is enabled only when
// both botToken and chatID are non-empty.
func NewTelegram(botToken, chatID string) *Telegram {
	return &Telegram{
		botToken:   botToken,
		chatID:     chatID,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		// Bot API flood control allows roughly one message per second
		// per chat, with short bursts.
		limiter: rate.NewLimiter(rate.Every(time.Second), 5),
		enabled: botToken != "" && chatID != "",
	}
}

// Enabled reports whether the notifier is active.
func (t *Telegram) Enabled() bool { return t.enabled }

// Notify posts the event to the configured Telegram chat.
func (t *Telegram) Notify(ctx context.Context, ev Event) error {
	if !t.enabled {
		return nil
	}

	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("notify: rate limit: %w", err)
	}

	endpoint := t.baseURL
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.botToken)
	}
	vals := url.Values{
		"chat_id":    {t.chatID},
		"text":       {renderHTML(ev)},
		"parse_mode": {"HTML"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return fmt.Errorf("notify: build request: %w", err)
	}
	req.URL.RawQuery = vals.Encode()

	resp, err := t.httpClient.Do(req)
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

// renderHTML formats an event for the Bot API HTML parse mode.
func renderHTML(ev Event) string {
	title := ev.Title
	if ev.Severity == SeverityCritical {
		title = "CRITICAL: " + title
	}
	if ev.Body == "" {
		return fmt.Sprintf("<b>%s</b>", title)
	}
	return fmt.Sprintf("<b>%s</b>\n%s", title, ev.Body)
}
