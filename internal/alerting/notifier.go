package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Notification carries a device health alert.
type Notification struct {
	At       time.Time
	Device   string
	Summary  string
	Detail   string
	Failures int
}

// Notifier delivers health alerts to the operator.
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// TelegramNotifier pushes alerts through the Telegram Bot API.
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier constructs a Telegram notifier.
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// Notify calls the sendMessage API.
func (n *TelegramNotifier) Notify(ctx context.Context, note Notification) error {
	payload := map[string]string{
		"chat_id": n.chatID,
		"text":    renderMessage(note),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram responded with status %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram returned ok=false")
		}
	}

	n.logger.Info().Str("device", note.Device).Str("summary", note.Summary).Msg("health alert sent")
	return nil
}

func renderMessage(note Notification) string {
	builder := strings.Builder{}
	builder.WriteString("[Heartbeat Beacon Alert]\n")
	builder.WriteString(fmt.Sprintf("Device: %s\n", note.Device))
	builder.WriteString(fmt.Sprintf("At: %s UTC\n", note.At.UTC().Format(time.RFC3339)))
	builder.WriteString(fmt.Sprintf("Summary: %s\n", note.Summary))
	if note.Failures > 0 {
		builder.WriteString(fmt.Sprintf("Consecutive failures: %d\n", note.Failures))
	}
	if note.Detail != "" {
		builder.WriteString(fmt.Sprintf("Detail: %s\n", note.Detail))
	}
	return builder.String()
}

var _ Notifier = (*TelegramNotifier)(nil)

// Cooled wraps a notifier with a cooldown so a flapping RPC does not spam
// the operator. The first notification always passes.
type Cooled struct {
	inner    Notifier
	cooldown time.Duration
	last     time.Time
}

// NewCooled wraps a notifier with a cooldown window.
func NewCooled(inner Notifier, cooldown time.Duration) *Cooled {
	return &Cooled{inner: inner, cooldown: cooldown}
}

// Notify forwards the notification unless one was sent within the window.
func (c *Cooled) Notify(ctx context.Context, note Notification) error {
	if !c.last.IsZero() && note.At.Sub(c.last) < c.cooldown {
		return nil
	}
	if err := c.inner.Notify(ctx, note); err != nil {
		return err
	}
	c.last = note.At
	return nil
}

var _ Notifier = (*Cooled)(nil)
