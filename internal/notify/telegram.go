// Package notify delivers scan output: Telegram messages for humans and
// Redis stream events for downstream consumers.
package notify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/maxfraid/cs2crap/logger"
	"github.com/maxfraid/cs2crap/pkg/errors"
)

const (
	telegramAPIBase = "https://api.telegram.org"
	// sendAttempts bounds delivery retries; alerts are advisory and a
	// dropped one must never stall the scan
	sendAttempts = 3
	sendTimeout  = 1 * time.Second
)

// Notifier sends Markdown messages to a single Telegram chat
type Notifier struct {
	token  string
	chatID string
	apiURL string
	client *http.Client
	log    *logger.Logger
}

// NewNotifier creates a notifier for the given bot token and chat
func NewNotifier(token, chatID string) *Notifier {
	return &Notifier{
		token:  token,
		chatID: chatID,
		apiURL: telegramAPIBase,
		client: &http.Client{Timeout: sendTimeout},
		log:    logger.ForNotifier(),
	}
}

// Send delivers one Markdown message, retrying up to sendAttempts times.
// The returned error reports delivery exhaustion; callers treat it as
// advisory and keep going.
func (n *Notifier) Send(ctx context.Context, text string) error {
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", n.apiURL, n.token)

	form := url.Values{}
	form.Set("chat_id", n.chatID)
	form.Set("text", text)
	form.Set("parse_mode", "Markdown")
	body := form.Encode()

	var lastErr error
	for attempt := 1; attempt <= sendAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, "POST", endpoint, strings.NewReader(body))
		if err != nil {
			return errors.NewConfiguration("invalid telegram endpoint", err)
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := n.client.Do(req)
		if err != nil {
			lastErr = err
			n.log.Debug().Int("attempt", attempt).Err(err).Msg("Telegram send failed")
			continue
		}
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}
		lastErr = fmt.Errorf("telegram returned %d", resp.StatusCode)
		n.log.Debug().Int("attempt", attempt).Int("status", resp.StatusCode).Msg("Telegram send rejected")
	}

	return errors.NewNotify("notify", "message delivery failed", lastErr)
}

// Status formats and sends a plain status line
func (n *Notifier) Status(ctx context.Context, format string, args ...interface{}) {
	if err := n.Send(ctx, fmt.Sprintf(format, args...)); err != nil {
		n.log.Warn().Err(err).Msg("Status message dropped")
	}
}
